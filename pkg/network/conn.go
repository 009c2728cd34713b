package network

// FrameType distinguishes JSON control frames from binary schema frames.
type FrameType int

const (
	FrameText FrameType = iota + 1
	FrameBinary
)

func (f FrameType) String() string {
	switch f {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Conn is a message-oriented duplex transport. ReadMessage is called from a
// single goroutine; WriteMessage from a single goroutine; WritePing and
// CloseWithCode may be called concurrently with either.
type Conn interface {
	ReadMessage() (FrameType, []byte, error)
	WriteMessage(frame FrameType, data []byte) error
	WritePing() error
	SetPongHandler(h func())
	// SetReadLimit bounds how much of a single frame is buffered. Frames
	// longer than limit are returned truncated to limit+1 bytes.
	SetReadLimit(limit int)
	CloseWithCode(code int, reason string) error
	Close() error
	RemoteAddr() string
}
