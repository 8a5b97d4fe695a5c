package sftp

// Packet is one decoded SFTP message.
type Packet interface {
	Type() PacketType
	encodePayload(w *writer)
}

// Request is a packet that carries a request id. Every packet except INIT
// and VERSION is a Request; responses echo the id of their request.
type Request interface {
	Packet
	RequestID() uint32
}

// HandleRequest is a request addressed to an open handle.
type HandleRequest interface {
	Request
	HandleID() string
}

// Extension is a name/data pair from INIT or VERSION.
type Extension struct {
	Name string
	Data string
}

// NameEntry is one element of a NAME response.
type NameEntry struct {
	Filename string
	Longname string
	Attrs    Attributes
}

type InitPacket struct {
	Version    uint32
	Extensions []Extension
}

type VersionPacket struct {
	Version    uint32
	Extensions []Extension
}

type OpenPacket struct {
	ID       uint32
	Filename string
	PFlags   uint32
	Attrs    Attributes
}

type ClosePacket struct {
	ID     uint32
	Handle string
}

type ReadPacket struct {
	ID     uint32
	Handle string
	Offset uint64
	Length uint32
}

type WritePacket struct {
	ID     uint32
	Handle string
	Offset uint64
	Data   []byte
}

type LstatPacket struct {
	ID   uint32
	Path string
}

type StatPacket struct {
	ID   uint32
	Path string
}

type FstatPacket struct {
	ID     uint32
	Handle string
}

type SetstatPacket struct {
	ID    uint32
	Path  string
	Attrs Attributes
}

type FsetstatPacket struct {
	ID     uint32
	Handle string
	Attrs  Attributes
}

type OpendirPacket struct {
	ID   uint32
	Path string
}

type ReaddirPacket struct {
	ID     uint32
	Handle string
}

type RemovePacket struct {
	ID       uint32
	Filename string
}

type MkdirPacket struct {
	ID    uint32
	Path  string
	Attrs Attributes
}

type RmdirPacket struct {
	ID   uint32
	Path string
}

type RealpathPacket struct {
	ID   uint32
	Path string
}

type RenamePacket struct {
	ID      uint32
	OldPath string
	NewPath string
}

type ReadlinkPacket struct {
	ID   uint32
	Path string
}

// SymlinkPacket follows the draft field order (linkpath, targetpath).
// OpenSSH sends the two reversed; the server never implements SYMLINK so
// the distinction only matters for logging.
type SymlinkPacket struct {
	ID         uint32
	LinkPath   string
	TargetPath string
}

type StatusPacket struct {
	ID       uint32
	Code     StatusCode
	Message  string
	Language string
}

type HandlePacket struct {
	ID     uint32
	Handle string
}

type DataPacket struct {
	ID   uint32
	Data []byte
}

type NamePacket struct {
	ID      uint32
	Entries []NameEntry
}

type AttrsPacket struct {
	ID    uint32
	Attrs Attributes
}

// ExtendedPacket carries a vendor request; Data is the unparsed remainder.
type ExtendedPacket struct {
	ID      uint32
	Request string
	Data    []byte
}

type ExtendedReplyPacket struct {
	ID   uint32
	Data []byte
}

func (*InitPacket) Type() PacketType          { return TypeInit }
func (*VersionPacket) Type() PacketType       { return TypeVersion }
func (*OpenPacket) Type() PacketType          { return TypeOpen }
func (*ClosePacket) Type() PacketType         { return TypeClose }
func (*ReadPacket) Type() PacketType          { return TypeRead }
func (*WritePacket) Type() PacketType         { return TypeWrite }
func (*LstatPacket) Type() PacketType         { return TypeLstat }
func (*StatPacket) Type() PacketType          { return TypeStat }
func (*FstatPacket) Type() PacketType         { return TypeFstat }
func (*SetstatPacket) Type() PacketType       { return TypeSetstat }
func (*FsetstatPacket) Type() PacketType      { return TypeFsetstat }
func (*OpendirPacket) Type() PacketType       { return TypeOpendir }
func (*ReaddirPacket) Type() PacketType       { return TypeReaddir }
func (*RemovePacket) Type() PacketType        { return TypeRemove }
func (*MkdirPacket) Type() PacketType         { return TypeMkdir }
func (*RmdirPacket) Type() PacketType         { return TypeRmdir }
func (*RealpathPacket) Type() PacketType      { return TypeRealpath }
func (*RenamePacket) Type() PacketType        { return TypeRename }
func (*ReadlinkPacket) Type() PacketType      { return TypeReadlink }
func (*SymlinkPacket) Type() PacketType       { return TypeSymlink }
func (*StatusPacket) Type() PacketType        { return TypeStatus }
func (*HandlePacket) Type() PacketType        { return TypeHandle }
func (*DataPacket) Type() PacketType          { return TypeData }
func (*NamePacket) Type() PacketType          { return TypeName }
func (*AttrsPacket) Type() PacketType         { return TypeAttrs }
func (*ExtendedPacket) Type() PacketType      { return TypeExtended }
func (*ExtendedReplyPacket) Type() PacketType { return TypeExtendedReply }

func (p *OpenPacket) RequestID() uint32          { return p.ID }
func (p *ClosePacket) RequestID() uint32         { return p.ID }
func (p *ReadPacket) RequestID() uint32          { return p.ID }
func (p *WritePacket) RequestID() uint32         { return p.ID }
func (p *LstatPacket) RequestID() uint32         { return p.ID }
func (p *StatPacket) RequestID() uint32          { return p.ID }
func (p *FstatPacket) RequestID() uint32         { return p.ID }
func (p *SetstatPacket) RequestID() uint32       { return p.ID }
func (p *FsetstatPacket) RequestID() uint32      { return p.ID }
func (p *OpendirPacket) RequestID() uint32       { return p.ID }
func (p *ReaddirPacket) RequestID() uint32       { return p.ID }
func (p *RemovePacket) RequestID() uint32        { return p.ID }
func (p *MkdirPacket) RequestID() uint32         { return p.ID }
func (p *RmdirPacket) RequestID() uint32         { return p.ID }
func (p *RealpathPacket) RequestID() uint32      { return p.ID }
func (p *RenamePacket) RequestID() uint32        { return p.ID }
func (p *ReadlinkPacket) RequestID() uint32      { return p.ID }
func (p *SymlinkPacket) RequestID() uint32       { return p.ID }
func (p *StatusPacket) RequestID() uint32        { return p.ID }
func (p *HandlePacket) RequestID() uint32        { return p.ID }
func (p *DataPacket) RequestID() uint32          { return p.ID }
func (p *NamePacket) RequestID() uint32          { return p.ID }
func (p *AttrsPacket) RequestID() uint32         { return p.ID }
func (p *ExtendedPacket) RequestID() uint32      { return p.ID }
func (p *ExtendedReplyPacket) RequestID() uint32 { return p.ID }

func (p *ClosePacket) HandleID() string    { return p.Handle }
func (p *ReadPacket) HandleID() string     { return p.Handle }
func (p *WritePacket) HandleID() string    { return p.Handle }
func (p *FstatPacket) HandleID() string    { return p.Handle }
func (p *FsetstatPacket) HandleID() string { return p.Handle }
func (p *ReaddirPacket) HandleID() string  { return p.Handle }

// NewStatus builds a STATUS response for id. An empty message is replaced
// by the code's text.
func NewStatus(id uint32, code StatusCode, msg string) *StatusPacket {
	if msg == "" {
		msg = code.String()
	}
	return &StatusPacket{ID: id, Code: code, Message: msg, Language: DefaultLanguage}
}
