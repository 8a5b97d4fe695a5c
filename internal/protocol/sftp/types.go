// Package sftp implements the SSH File Transfer Protocol version 3 wire format.
//
// Per draft-ietf-secsh-filexfer-02 every packet is framed as:
//
//	uint32 length   (covers type and payload, big-endian)
//	byte   type
//	byte[] payload  (type-specific)
//
// Strings are uint32 length-prefixed byte sequences without terminators.
// The codec performs no semantic validation; that belongs to the dispatcher.
package sftp

import "fmt"

// ProtocolVersion is the only version this package speaks.
const ProtocolVersion uint32 = 3

// PacketType is the one-byte message tag following the length prefix.
type PacketType uint8

const (
	TypeInit          PacketType = 1
	TypeVersion       PacketType = 2
	TypeOpen          PacketType = 3
	TypeClose         PacketType = 4
	TypeRead          PacketType = 5
	TypeWrite         PacketType = 6
	TypeLstat         PacketType = 7
	TypeFstat         PacketType = 8
	TypeSetstat       PacketType = 9
	TypeFsetstat      PacketType = 10
	TypeOpendir       PacketType = 11
	TypeReaddir       PacketType = 12
	TypeRemove        PacketType = 13
	TypeMkdir         PacketType = 14
	TypeRmdir         PacketType = 15
	TypeRealpath      PacketType = 16
	TypeStat          PacketType = 17
	TypeRename        PacketType = 18
	TypeReadlink      PacketType = 19
	TypeSymlink       PacketType = 20
	TypeStatus        PacketType = 101
	TypeHandle        PacketType = 102
	TypeData          PacketType = 103
	TypeName          PacketType = 104
	TypeAttrs         PacketType = 105
	TypeExtended      PacketType = 200
	TypeExtendedReply PacketType = 201
)

var typeNames = map[PacketType]string{
	TypeInit:          "INIT",
	TypeVersion:       "VERSION",
	TypeOpen:          "OPEN",
	TypeClose:         "CLOSE",
	TypeRead:          "READ",
	TypeWrite:         "WRITE",
	TypeLstat:         "LSTAT",
	TypeFstat:         "FSTAT",
	TypeSetstat:       "SETSTAT",
	TypeFsetstat:      "FSETSTAT",
	TypeOpendir:       "OPENDIR",
	TypeReaddir:       "READDIR",
	TypeRemove:        "REMOVE",
	TypeMkdir:         "MKDIR",
	TypeRmdir:         "RMDIR",
	TypeRealpath:      "REALPATH",
	TypeStat:          "STAT",
	TypeRename:        "RENAME",
	TypeReadlink:      "READLINK",
	TypeSymlink:       "SYMLINK",
	TypeStatus:        "STATUS",
	TypeHandle:        "HANDLE",
	TypeData:          "DATA",
	TypeName:          "NAME",
	TypeAttrs:         "ATTRS",
	TypeExtended:      "EXTENDED",
	TypeExtendedReply: "EXTENDED_REPLY",
}

func (t PacketType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
}

// Known reports whether t is a version 3 packet type.
func (t PacketType) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// StatusCode is the SSH_FX_* error/status code carried by STATUS.
type StatusCode uint32

const (
	StatusOK               StatusCode = 0
	StatusEOF              StatusCode = 1
	StatusNoSuchFile       StatusCode = 2
	StatusPermissionDenied StatusCode = 3
	StatusFailure          StatusCode = 4
	StatusBadMessage       StatusCode = 5
	StatusNoConnection     StatusCode = 6
	StatusConnectionLost   StatusCode = 7
	StatusOpUnsupported    StatusCode = 8
)

var statusNames = [...]string{
	StatusOK:               "ok",
	StatusEOF:              "eof",
	StatusNoSuchFile:       "no such file",
	StatusPermissionDenied: "permission denied",
	StatusFailure:          "failure",
	StatusBadMessage:       "bad message",
	StatusNoConnection:     "no connection",
	StatusConnectionLost:   "connection lost",
	StatusOpUnsupported:    "operation unsupported",
}

func (c StatusCode) String() string {
	if int(c) < len(statusNames) {
		return statusNames[c]
	}
	return fmt.Sprintf("status(%d)", uint32(c))
}

// Open flags (SSH_FXF_*) carried in OPEN pflags.
const (
	FlagRead   uint32 = 0x00000001
	FlagWrite  uint32 = 0x00000002
	FlagAppend uint32 = 0x00000004
	FlagCreate uint32 = 0x00000008
	FlagTrunc  uint32 = 0x00000010
	FlagExcl   uint32 = 0x00000020
)

// DefaultLanguage is the language tag sent in STATUS responses.
const DefaultLanguage = "en-US"
