package messages

import (
	"hash/fnv"
	"strings"
)

// Field types used in schema shapes.
const (
	TypeUint8   = "uint8"
	TypeInt8    = "int8"
	TypeUint16  = "uint16"
	TypeUint32  = "uint32"
	TypeFloat32 = "float32"
)

type Field struct {
	Name string
	Type string
}

// Schema describes the shape of a binary message. Its ID is derived from the
// shape alone so independently built peers agree on it.
type Schema struct {
	Name   string
	Fields []Field
}

// String returns the canonical shape, e.g. "input{sequence:uint32,horizontal:int8,vertical:int8}".
func (s Schema) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('{')
	for i, f := range s.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(f.Type)
	}
	b.WriteByte('}')
	return b.String()
}

// ID is the 32-bit FNV-1a hash of the canonical shape.
func (s Schema) ID() uint32 {
	h := fnv.New32a()
	h.Write([]byte(s.String()))
	return h.Sum32()
}

// ArrayOf returns the field type of a length-prefixed array of s.
func ArrayOf(s Schema) string {
	return "[]" + s.String()
}

var (
	PlayerStateSchema = Schema{
		Name: "playerState",
		Fields: []Field{
			{Name: "id", Type: TypeUint8},
			{Name: "x", Type: TypeFloat32},
			{Name: "y", Type: TypeFloat32},
		},
	}

	InputSchema = Schema{
		Name: "input",
		Fields: []Field{
			{Name: "sequence", Type: TypeUint32},
			{Name: "horizontal", Type: TypeInt8},
			{Name: "vertical", Type: TypeInt8},
		},
	}

	SnapshotSchema = Schema{
		Name: "snapshot",
		Fields: []Field{
			{Name: "acknowledgedSequence", Type: TypeUint32},
			{Name: "tick", Type: TypeUint32},
			{Name: "players", Type: ArrayOf(PlayerStateSchema)},
		},
	}

	InputSchemaID    = InputSchema.ID()
	SnapshotSchemaID = SnapshotSchema.ID()
)
