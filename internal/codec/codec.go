// Package codec implements the on-disk frame format: a fixed 9-byte
// header (payload size, type flag, CRC-32 checksum) followed by a
// variable-length payload. It is pure encode/decode with no I/O
// concerns of its own beyond reading from an io.Reader.
//
// Format (little-endian): payload_size uint32 | type_flag byte |
// checksum uint32 | payload.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"io"
	"unicode/utf8"

	"github.com/duralog/duralog/internal/record"
)

// HeaderSize is the fixed size, in bytes, of a frame header.
const HeaderSize = 9

const (
	typeMap  byte = 0x01
	typeText byte = 0x02
)

// maxPayloadSize bounds how large a single frame's payload is allowed
// to claim to be, guarding Decode against allocating gigabytes for a
// corrupted header.
const maxPayloadSize = 1 << 30

// Encode serializes v into a framed byte sequence: header ++ payload.
func Encode(v record.Value) ([]byte, error) {
	var payload []byte
	var typeFlag byte

	switch v.Kind {
	case record.KindMap:
		b, err := json.Marshal(v.Map)
		if err != nil {
			return nil, err
		}
		payload = b
		typeFlag = typeMap
	case record.KindText:
		payload = []byte(v.Text)
		typeFlag = typeText
	default:
		return nil, record.ErrUnsupportedValueType
	}

	frame := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	frame[4] = typeFlag
	binary.LittleEndian.PutUint32(frame[5:9], crc32.ChecksumIEEE(payload))
	copy(frame[HeaderSize:], payload)

	return frame, nil
}

// AppendEncoded encodes v and appends the result to dst, returning the
// extended slice. It exists so the committer can accumulate a whole
// batch into one buffer before issuing a single write syscall.
func AppendEncoded(dst []byte, v record.Value) ([]byte, error) {
	frame, err := Encode(v)
	if err != nil {
		return dst, err
	}
	return append(dst, frame...), nil
}

// Decode reads exactly one frame from r, starting at the reader's
// current position, and returns the decoded value. offset is the
// absolute file position of the frame's first byte and is used only to
// annotate CorruptionError; path is likewise carried for the same
// reason.
//
// On a CorruptionError, the reader's position is left wherever the
// failed read or the checksum mismatch left it -- Decode never rewinds.
// Callers that want to make forward progress after a corrupt frame (the
// replay reader) rely on this: the header read, even when it fails to
// validate, has already consumed bytes from the stream.
func Decode(r io.Reader, path string, offset int64) (record.Value, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return record.Value{}, record.NewCorruptionError(path, offset, "incomplete header")
	}

	payloadSize := binary.LittleEndian.Uint32(header[0:4])
	typeFlag := header[4]
	checksum := binary.LittleEndian.Uint32(header[5:9])

	// A corrupted header can claim an enormous payload size; refuse to
	// allocate for it rather than risk exhausting memory on garbage.
	if payloadSize > maxPayloadSize {
		return record.Value{}, record.NewCorruptionError(path, offset, "payload size exceeds maximum")
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return record.Value{}, record.NewCorruptionError(path, offset, "short payload")
	}

	if crc32.ChecksumIEEE(payload) != checksum {
		return record.Value{}, record.NewCorruptionError(path, offset, "checksum mismatch")
	}

	switch typeFlag {
	case typeMap:
		var m map[string]any
		if err := json.Unmarshal(payload, &m); err != nil {
			return record.Value{}, record.NewCorruptionError(path, offset, "invalid JSON")
		}
		return record.NewMapValue(m), nil
	case typeText:
		if !utf8.Valid(payload) {
			return record.Value{}, record.NewCorruptionError(path, offset, "invalid UTF-8")
		}
		return record.NewTextValue(string(payload)), nil
	default:
		return record.Value{}, record.NewCorruptionError(path, offset, "unknown type flag")
	}
}
