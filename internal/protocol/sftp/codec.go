package sftp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxPacketSize bounds the declared length of an incoming frame.
// OpenSSH clients never exceed 256 KiB; the slack covers headers.
const DefaultMaxPacketSize = 256*1024 + 1024

// Encode serializes p into a complete frame including the length prefix.
// Encode is total: every well-formed Packet has an encoding.
func Encode(p Packet) []byte {
	w := writer{buf: make([]byte, 4, 64)}
	w.byte(byte(p.Type()))
	p.encodePayload(&w)
	binary.BigEndian.PutUint32(w.buf, uint32(len(w.buf)-4))
	return w.buf
}

// Decode parses one complete frame.
//
// Parameters:
//   - frame: length prefix, type byte and payload, exactly as read from the wire
//
// Returns:
//   - Packet: the decoded message
//   - error: *ProtocolError when the declared length disagrees with len(frame),
//     the type is unknown, or a field would read past the payload
func Decode(frame []byte) (Packet, error) {
	if len(frame) < 5 {
		return nil, malformed(0, "frame of %d bytes is shorter than header", len(frame))
	}
	declared := binary.BigEndian.Uint32(frame)
	if uint64(declared) != uint64(len(frame)-4) {
		return nil, malformed(0, "declared length %d, have %d bytes", declared, len(frame)-4)
	}
	return decodePayload(PacketType(frame[4]), frame[5:])
}

// ReadFrame reads one frame from r. A clean end of stream before any byte of
// the header yields io.EOF; a frame cut short yields io.ErrUnexpectedEOF.
// Declared lengths of zero or above maxSize are protocol errors.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 {
		return nil, malformed(0, "zero-length frame")
	}
	if maxSize > 0 && n > maxSize {
		return nil, malformed(0, "frame length %d exceeds limit %d", n, maxSize)
	}

	frame := make([]byte, 4+int(n))
	copy(frame, hdr[:])
	if _, err := io.ReadFull(r, frame[4:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return frame, nil
}

// WriteFrame encodes p and writes it to w in a single call.
func WriteFrame(w io.Writer, p Packet) error {
	_, err := w.Write(Encode(p))
	return err
}

func decodePayload(t PacketType, payload []byte) (Packet, error) {
	r := &reader{t: t, buf: payload}

	var p Packet
	switch t {
	case TypeInit:
		p = &InitPacket{Version: r.uint32(), Extensions: r.extensions()}
	case TypeVersion:
		p = &VersionPacket{Version: r.uint32(), Extensions: r.extensions()}
	case TypeOpen:
		p = &OpenPacket{ID: r.uint32(), Filename: r.string(), PFlags: r.uint32(), Attrs: r.attrs()}
	case TypeClose:
		p = &ClosePacket{ID: r.uint32(), Handle: r.string()}
	case TypeRead:
		p = &ReadPacket{ID: r.uint32(), Handle: r.string(), Offset: r.uint64(), Length: r.uint32()}
	case TypeWrite:
		p = &WritePacket{ID: r.uint32(), Handle: r.string(), Offset: r.uint64(), Data: r.bytes()}
	case TypeLstat:
		p = &LstatPacket{ID: r.uint32(), Path: r.string()}
	case TypeStat:
		p = &StatPacket{ID: r.uint32(), Path: r.string()}
	case TypeFstat:
		p = &FstatPacket{ID: r.uint32(), Handle: r.string()}
	case TypeSetstat:
		p = &SetstatPacket{ID: r.uint32(), Path: r.string(), Attrs: r.attrs()}
	case TypeFsetstat:
		p = &FsetstatPacket{ID: r.uint32(), Handle: r.string(), Attrs: r.attrs()}
	case TypeOpendir:
		p = &OpendirPacket{ID: r.uint32(), Path: r.string()}
	case TypeReaddir:
		p = &ReaddirPacket{ID: r.uint32(), Handle: r.string()}
	case TypeRemove:
		p = &RemovePacket{ID: r.uint32(), Filename: r.string()}
	case TypeMkdir:
		p = &MkdirPacket{ID: r.uint32(), Path: r.string(), Attrs: r.attrs()}
	case TypeRmdir:
		p = &RmdirPacket{ID: r.uint32(), Path: r.string()}
	case TypeRealpath:
		p = &RealpathPacket{ID: r.uint32(), Path: r.string()}
	case TypeRename:
		p = &RenamePacket{ID: r.uint32(), OldPath: r.string(), NewPath: r.string()}
	case TypeReadlink:
		p = &ReadlinkPacket{ID: r.uint32(), Path: r.string()}
	case TypeSymlink:
		p = &SymlinkPacket{ID: r.uint32(), LinkPath: r.string(), TargetPath: r.string()}
	case TypeStatus:
		p = &StatusPacket{ID: r.uint32(), Code: StatusCode(r.uint32()), Message: r.string(), Language: r.string()}
	case TypeHandle:
		p = &HandlePacket{ID: r.uint32(), Handle: r.string()}
	case TypeData:
		p = &DataPacket{ID: r.uint32(), Data: r.bytes()}
	case TypeName:
		p = r.name()
	case TypeAttrs:
		p = &AttrsPacket{ID: r.uint32(), Attrs: r.attrs()}
	case TypeExtended:
		p = &ExtendedPacket{ID: r.uint32(), Request: r.string(), Data: r.rest()}
	case TypeExtendedReply:
		p = &ExtendedReplyPacket{ID: r.uint32(), Data: r.rest()}
	default:
		pe := &ProtocolError{Type: t, Reason: "unknown packet type", Unknown: true}
		if len(payload) >= 4 {
			pe.RequestID = binary.BigEndian.Uint32(payload)
			pe.HasID = true
		}
		return nil, pe
	}

	if err := r.done(); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *reader) extensions() []Extension {
	var out []Extension
	for r.err == nil && r.remaining() > 0 {
		out = append(out, Extension{Name: r.string(), Data: r.string()})
	}
	return out
}

// rest consumes the remainder of the payload.
func (r *reader) rest() []byte {
	if r.err != nil || len(r.buf) == 0 {
		return nil
	}
	out := make([]byte, len(r.buf))
	copy(out, r.buf)
	r.buf = nil
	return out
}

func (r *reader) name() *NamePacket {
	p := &NamePacket{ID: r.uint32()}
	n := r.count(12)
	if n > 0 {
		p.Entries = make([]NameEntry, 0, n)
	}
	for i := 0; i < n && r.err == nil; i++ {
		p.Entries = append(p.Entries, NameEntry{Filename: r.string(), Longname: r.string(), Attrs: r.attrs()})
	}
	return p
}

func (w *writer) extensions(exts []Extension) {
	for _, e := range exts {
		w.string(e.Name)
		w.string(e.Data)
	}
}

func (p *InitPacket) encodePayload(w *writer) {
	w.uint32(p.Version)
	w.extensions(p.Extensions)
}

func (p *VersionPacket) encodePayload(w *writer) {
	w.uint32(p.Version)
	w.extensions(p.Extensions)
}

func (p *OpenPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Filename)
	w.uint32(p.PFlags)
	w.attrs(&p.Attrs)
}

func (p *ClosePacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Handle)
}

func (p *ReadPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Handle)
	w.uint64(p.Offset)
	w.uint32(p.Length)
}

func (p *WritePacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Handle)
	w.uint64(p.Offset)
	w.bytes(p.Data)
}

func (p *LstatPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Path)
}

func (p *StatPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Path)
}

func (p *FstatPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Handle)
}

func (p *SetstatPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Path)
	w.attrs(&p.Attrs)
}

func (p *FsetstatPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Handle)
	w.attrs(&p.Attrs)
}

func (p *OpendirPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Path)
}

func (p *ReaddirPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Handle)
}

func (p *RemovePacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Filename)
}

func (p *MkdirPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Path)
	w.attrs(&p.Attrs)
}

func (p *RmdirPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Path)
}

func (p *RealpathPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Path)
}

func (p *RenamePacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.OldPath)
	w.string(p.NewPath)
}

func (p *ReadlinkPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Path)
}

func (p *SymlinkPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.LinkPath)
	w.string(p.TargetPath)
}

func (p *StatusPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.uint32(uint32(p.Code))
	w.string(p.Message)
	w.string(p.Language)
}

func (p *HandlePacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Handle)
}

func (p *DataPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.bytes(p.Data)
}

func (p *NamePacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.uint32(uint32(len(p.Entries)))
	for i := range p.Entries {
		w.string(p.Entries[i].Filename)
		w.string(p.Entries[i].Longname)
		w.attrs(&p.Entries[i].Attrs)
	}
}

func (p *AttrsPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.attrs(&p.Attrs)
}

func (p *ExtendedPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.string(p.Request)
	w.raw(p.Data)
}

func (p *ExtendedReplyPacket) encodePayload(w *writer) {
	w.uint32(p.ID)
	w.raw(p.Data)
}
