package messages

import (
	"fmt"
	"math"

	"github.com/cbodonnell/arena/pkg/kinematic"
	flatbuffers "github.com/google/flatbuffers/go"
)

// All binary messages are little-endian and start with a 4-byte schema id.
const (
	SchemaIDSize = flatbuffers.SizeUint32

	inputPayloadSize = flatbuffers.SizeUint32 + 2*flatbuffers.SizeInt8
	// InputMessageSize is the full encoded size of an InputMessage
	InputMessageSize = SchemaIDSize + inputPayloadSize

	snapshotHeaderSize = SchemaIDSize + 2*flatbuffers.SizeUint32 + flatbuffers.SizeUint16
	playerStateSize    = flatbuffers.SizeUint8 + 2*flatbuffers.SizeFloat32

	// MaxSnapshotPlayers is the largest player count a snapshot can carry
	MaxSnapshotPlayers = math.MaxUint16
)

// Direction is the value of one input axis.
type Direction int8

const (
	DirectionNone Direction = 0
	// Left on the horizontal axis, up on the vertical axis
	DirectionNegative Direction = -1
	// Right on the horizontal axis, down on the vertical axis
	DirectionPositive Direction = 1
)

func (d Direction) Valid() bool {
	return d >= DirectionNegative && d <= DirectionPositive
}

type InputMessage struct {
	Sequence   uint32    `json:"sequence"`
	Horizontal Direction `json:"horizontal"`
	Vertical   Direction `json:"vertical"`
}

// HasDirection reports whether the input moves the player at all.
func (m *InputMessage) HasDirection() bool {
	return m.Horizontal != DirectionNone || m.Vertical != DirectionNone
}

// Velocity returns the linear velocity the input asks for at the given speed.
func (m *InputMessage) Velocity(speed float64) kinematic.Vector {
	return kinematic.NewVector(float64(m.Horizontal)*speed, float64(m.Vertical)*speed)
}

type PlayerState struct {
	ID uint8   `json:"id"`
	X  float32 `json:"x"`
	Y  float32 `json:"y"`
}

type SnapshotMessage struct {
	AcknowledgedSequence uint32        `json:"acknowledgedSequence"`
	Tick                 uint32        `json:"tick"`
	Players              []PlayerState `json:"players"`
}

// Player returns the entry for id, if present.
func (m *SnapshotMessage) Player(id uint8) (PlayerState, bool) {
	for _, p := range m.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerState{}, false
}

// EncodeInput encodes an InputMessage into its fixed 10-byte layout.
func EncodeInput(m *InputMessage) []byte {
	b := make([]byte, InputMessageSize)
	flatbuffers.WriteUint32(b, InputSchemaID)
	flatbuffers.WriteUint32(b[4:], m.Sequence)
	flatbuffers.WriteInt8(b[8:], int8(m.Horizontal))
	flatbuffers.WriteInt8(b[9:], int8(m.Vertical))
	return b
}

// DecodeInput decodes an InputMessage, rejecting any buffer that is not
// exactly one well-formed input.
func DecodeInput(b []byte) (*InputMessage, error) {
	if err := expectSchema(b, InputSchema); err != nil {
		return nil, err
	}
	if len(b) != InputMessageSize {
		return nil, decodeErrorf(InputSchema.Name, "expected %d bytes, got %d", InputMessageSize, len(b))
	}

	m := &InputMessage{
		Sequence:   flatbuffers.GetUint32(b[4:]),
		Horizontal: Direction(flatbuffers.GetInt8(b[8:])),
		Vertical:   Direction(flatbuffers.GetInt8(b[9:])),
	}
	if !m.Horizontal.Valid() || !m.Vertical.Valid() {
		return nil, decodeErrorf(InputSchema.Name, "invalid direction (%d, %d)", m.Horizontal, m.Vertical)
	}
	return m, nil
}

// EncodeSnapshot encodes a SnapshotMessage. The player array is prefixed
// with its uint16 length.
func EncodeSnapshot(m *SnapshotMessage) ([]byte, error) {
	if len(m.Players) > MaxSnapshotPlayers {
		return nil, fmt.Errorf("failed to encode snapshot: %d players exceeds %d", len(m.Players), MaxSnapshotPlayers)
	}

	b := make([]byte, snapshotHeaderSize+len(m.Players)*playerStateSize)
	flatbuffers.WriteUint32(b, SnapshotSchemaID)
	flatbuffers.WriteUint32(b[4:], m.AcknowledgedSequence)
	flatbuffers.WriteUint32(b[8:], m.Tick)
	flatbuffers.WriteUint16(b[12:], uint16(len(m.Players)))

	offset := snapshotHeaderSize
	for _, p := range m.Players {
		flatbuffers.WriteUint8(b[offset:], p.ID)
		flatbuffers.WriteFloat32(b[offset+1:], p.X)
		flatbuffers.WriteFloat32(b[offset+5:], p.Y)
		offset += playerStateSize
	}
	return b, nil
}

func DecodeSnapshot(b []byte) (*SnapshotMessage, error) {
	if err := expectSchema(b, SnapshotSchema); err != nil {
		return nil, err
	}
	if len(b) < snapshotHeaderSize {
		return nil, decodeErrorf(SnapshotSchema.Name, "header needs %d bytes, got %d", snapshotHeaderSize, len(b))
	}

	count := int(flatbuffers.GetUint16(b[12:]))
	want := snapshotHeaderSize + count*playerStateSize
	if len(b) != want {
		return nil, decodeErrorf(SnapshotSchema.Name, "%d players need %d bytes, got %d", count, want, len(b))
	}

	m := &SnapshotMessage{
		AcknowledgedSequence: flatbuffers.GetUint32(b[4:]),
		Tick:                 flatbuffers.GetUint32(b[8:]),
	}
	if count > 0 {
		m.Players = make([]PlayerState, count)
	}
	offset := snapshotHeaderSize
	for i := 0; i < count; i++ {
		m.Players[i] = PlayerState{
			ID: flatbuffers.GetUint8(b[offset:]),
			X:  flatbuffers.GetFloat32(b[offset+1:]),
			Y:  flatbuffers.GetFloat32(b[offset+5:]),
		}
		offset += playerStateSize
	}
	return m, nil
}

// Identify returns the schema id of an encoded message without decoding it.
func Identify(b []byte) (uint32, error) {
	if len(b) < SchemaIDSize {
		return 0, decodeErrorf("message", "need %d bytes for schema id, got %d", SchemaIDSize, len(b))
	}
	return flatbuffers.GetUint32(b), nil
}

// Decode dispatches on the schema id and returns *InputMessage or *SnapshotMessage.
func Decode(b []byte) (interface{}, error) {
	id, err := Identify(b)
	if err != nil {
		return nil, err
	}
	switch id {
	case InputSchemaID:
		return DecodeInput(b)
	case SnapshotSchemaID:
		return DecodeSnapshot(b)
	default:
		return nil, decodeErrorf("message", "unknown schema id %#08x", id)
	}
}

// KindForSchema maps a binary schema id to its message kind.
func KindForSchema(id uint32) Kind {
	switch id {
	case InputSchemaID:
		return KindInput
	case SnapshotSchemaID:
		return KindSnapshot
	default:
		return KindUnknown
	}
}

func expectSchema(b []byte, s Schema) error {
	id, err := Identify(b)
	if err != nil {
		return decodeErrorf(s.Name, "%v", err)
	}
	if id != s.ID() {
		return decodeErrorf(s.Name, "schema id %#08x does not match %#08x", id, s.ID())
	}
	return nil
}
