package replay

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/cbodonnell/arena/pkg/messages"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

// Each frame is stored as [tick u32][length u32][encoded snapshot].
const frameHeaderSize = 2 * flatbuffers.SizeUint32

// Frame is one recorded world snapshot.
type Frame struct {
	Tick     uint32
	Snapshot *messages.SnapshotMessage
}

// Recorder accumulates encoded snapshots for the duration of a match.
type Recorder struct {
	lock   sync.Mutex
	buf    []byte
	frames int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a snapshot of the world at tick.
func (r *Recorder) Record(tick uint32, snapshot *messages.SnapshotMessage) error {
	b, err := messages.EncodeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode frame %d: %v", tick, err)
	}

	header := make([]byte, frameHeaderSize)
	flatbuffers.WriteUint32(header, tick)
	flatbuffers.WriteUint32(header[flatbuffers.SizeUint32:], uint32(len(b)))

	r.lock.Lock()
	defer r.lock.Unlock()
	r.buf = append(r.buf, header...)
	r.buf = append(r.buf, b...)
	r.frames++
	return nil
}

// Frames returns the number of recorded frames.
func (r *Recorder) Frames() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.frames
}

// Compress returns the recorded frames as a zstd blob.
func (r *Recorder) Compress() ([]byte, error) {
	r.lock.Lock()
	raw := append([]byte(nil), r.buf...)
	r.lock.Unlock()

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress replay: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

// Decompress restores the frames of a blob produced by Compress.
func Decompress(blob []byte) ([]Frame, error) {
	compReader, err := zstd.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer compReader.Close()

	b, err := io.ReadAll(compReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed replay: %v", err)
	}

	var frames []Frame
	for offset := 0; offset < len(b); {
		if len(b)-offset < frameHeaderSize {
			return nil, fmt.Errorf("truncated frame header at offset %d", offset)
		}
		tick := flatbuffers.GetUint32(b[offset:])
		length := int(flatbuffers.GetUint32(b[offset+flatbuffers.SizeUint32:]))
		offset += frameHeaderSize

		if len(b)-offset < length {
			return nil, fmt.Errorf("frame %d needs %d bytes, %d left", tick, length, len(b)-offset)
		}
		snapshot, err := messages.DecodeSnapshot(b[offset : offset+length])
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %v", tick, err)
		}
		frames = append(frames, Frame{Tick: tick, Snapshot: snapshot})
		offset += length
	}

	return frames, nil
}
