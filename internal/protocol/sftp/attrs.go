package sftp

import (
	"io/fs"
	"time"
)

// Attribute presence flags (SSH_FILEXFER_ATTR_*).
const (
	AttrSize        uint32 = 0x00000001
	AttrUIDGID      uint32 = 0x00000002
	AttrPermissions uint32 = 0x00000004
	AttrACModTime   uint32 = 0x00000008
	AttrExtended    uint32 = 0x80000000
)

// POSIX file type bits within Permissions.
const (
	ModeTypeMask uint32 = 0o170000
	ModeDir      uint32 = 0o040000
	ModeRegular  uint32 = 0o100000
	ModeSymlink  uint32 = 0o120000
)

// ExtendedAttr is one name/value pair of the extended attribute list.
type ExtendedAttr struct {
	Type string
	Data string
}

// Attributes is the ATTRS structure. Flags says which fields are populated;
// a field whose flag is clear must hold its zero value and is not encoded.
type Attributes struct {
	Flags       uint32
	Size        uint64
	UID         uint32
	GID         uint32
	Permissions uint32
	Atime       uint32
	Mtime       uint32
	Extended    []ExtendedAttr
}

func (a *Attributes) Has(flag uint32) bool { return a.Flags&flag != 0 }

func (a *Attributes) SetSize(n uint64) {
	a.Flags |= AttrSize
	a.Size = n
}

func (a *Attributes) SetOwner(uid, gid uint32) {
	a.Flags |= AttrUIDGID
	a.UID, a.GID = uid, gid
}

func (a *Attributes) SetPermissions(mode uint32) {
	a.Flags |= AttrPermissions
	a.Permissions = mode
}

// SetTimes stores atime and mtime as seconds since the epoch, clamped to uint32.
func (a *Attributes) SetTimes(atime, mtime time.Time) {
	a.Flags |= AttrACModTime
	a.Atime = epoch32(atime)
	a.Mtime = epoch32(mtime)
}

func (a *Attributes) AddExtended(typ, data string) {
	a.Flags |= AttrExtended
	a.Extended = append(a.Extended, ExtendedAttr{Type: typ, Data: data})
}

// IsDir reports whether the permission bits mark a directory.
func (a *Attributes) IsDir() bool {
	return a.Has(AttrPermissions) && a.Permissions&ModeTypeMask == ModeDir
}

// ModTime returns Mtime as a time, or the zero time when absent.
func (a *Attributes) ModTime() time.Time {
	if !a.Has(AttrACModTime) {
		return time.Time{}
	}
	return time.Unix(int64(a.Mtime), 0)
}

// FileMode converts the POSIX permission bits to an fs.FileMode.
func (a *Attributes) FileMode() fs.FileMode {
	m := fs.FileMode(a.Permissions & 0o777)
	switch a.Permissions & ModeTypeMask {
	case ModeDir:
		m |= fs.ModeDir
	case ModeSymlink:
		m |= fs.ModeSymlink
	}
	return m
}

func epoch32(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	s := t.Unix()
	switch {
	case s < 0:
		return 0
	case s > int64(^uint32(0)):
		return ^uint32(0)
	}
	return uint32(s)
}

func (r *reader) attrs() Attributes {
	var a Attributes
	a.Flags = r.uint32()
	if a.Has(AttrSize) {
		a.Size = r.uint64()
	}
	if a.Has(AttrUIDGID) {
		a.UID = r.uint32()
		a.GID = r.uint32()
	}
	if a.Has(AttrPermissions) {
		a.Permissions = r.uint32()
	}
	if a.Has(AttrACModTime) {
		a.Atime = r.uint32()
		a.Mtime = r.uint32()
	}
	if a.Has(AttrExtended) {
		n := r.count(8)
		if n > 0 {
			a.Extended = make([]ExtendedAttr, 0, n)
		}
		for i := 0; i < n && r.err == nil; i++ {
			a.Extended = append(a.Extended, ExtendedAttr{Type: r.string(), Data: r.string()})
		}
	}
	return a
}

func (w *writer) attrs(a *Attributes) {
	w.uint32(a.Flags)
	if a.Has(AttrSize) {
		w.uint64(a.Size)
	}
	if a.Has(AttrUIDGID) {
		w.uint32(a.UID)
		w.uint32(a.GID)
	}
	if a.Has(AttrPermissions) {
		w.uint32(a.Permissions)
	}
	if a.Has(AttrACModTime) {
		w.uint32(a.Atime)
		w.uint32(a.Mtime)
	}
	if a.Has(AttrExtended) {
		w.uint32(uint32(len(a.Extended)))
		for _, e := range a.Extended {
			w.string(e.Type)
			w.string(e.Data)
		}
	}
}
