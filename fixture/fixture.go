// Package fixture reads and writes KV tensor dumps. A dump is a cbor
// envelope of named rank-4 tensors; payloads may be stored as float32,
// float16 or bfloat16 and are always decoded to float32.
package fixture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/d4l3k/go-bfloat16"
	"github.com/fxamacker/cbor/v2"
	"github.com/x448/float16"

	"github.com/jmorganca/pyramidkv/ml"
)

const (
	DTypeF32  = "F32"
	DTypeF16  = "F16"
	DTypeBF16 = "BF16"
)

type tensorEntry struct {
	Name  string `cbor:"name"`
	DType string `cbor:"dtype"`
	Shape []int  `cbor:"shape"`
	Data  []byte `cbor:"data"`
}

type envelope struct {
	Tensors []tensorEntry `cbor:"tensors"`
}

// Encode writes the tensors to w with the given storage dtype. Entries are
// sorted by name so output is deterministic.
func Encode(w io.Writer, tensors map[string]*ml.Tensor, dtype string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	slices.Sort(names)

	var env envelope
	for _, name := range names {
		t := tensors[name]
		data, err := encodePayload(t.Floats(), dtype)
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}

		env.Tensors = append(env.Tensors, tensorEntry{
			Name:  name,
			DType: dtype,
			Shape: t.Shape(),
			Data:  data,
		})
	}

	out, err := cbor.Marshal(env)
	if err != nil {
		return err
	}

	_, err = w.Write(out)
	return err
}

// Decode reads a dump and returns its tensors as float32.
func Decode(r io.Reader) (map[string]*ml.Tensor, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	tensors := make(map[string]*ml.Tensor, len(env.Tensors))
	for _, entry := range env.Tensors {
		if len(entry.Shape) != 4 {
			return nil, fmt.Errorf("tensor %q: expected rank 4, got shape %v", entry.Name, entry.Shape)
		}

		f32s, err := decodePayload(entry.Data, entry.DType)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", entry.Name, err)
		}

		t, err := ml.New(entry.Shape[0], entry.Shape[1], entry.Shape[2], entry.Shape[3], f32s)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", entry.Name, err)
		}

		tensors[entry.Name] = t
	}

	return tensors, nil
}

func encodePayload(f32s []float32, dtype string) ([]byte, error) {
	switch dtype {
	case DTypeF32:
		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, f32s); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case DTypeF16:
		u16s := make([]uint16, len(f32s))
		for i := range f32s {
			u16s[i] = float16.Fromfloat32(f32s[i]).Bits()
		}

		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.LittleEndian, u16s); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case DTypeBF16:
		return bfloat16.EncodeFloat32(f32s), nil

	default:
		return nil, fmt.Errorf("unknown data type: %s", dtype)
	}
}

func decodePayload(data []byte, dtype string) ([]float32, error) {
	switch dtype {
	case DTypeF32:
		f32s := make([]float32, len(data)/4)
		if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, f32s); err != nil {
			return nil, err
		}
		return f32s, nil

	case DTypeF16:
		u16s := make([]uint16, len(data)/2)
		if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, u16s); err != nil {
			return nil, err
		}

		f32s := make([]float32, len(u16s))
		for i := range u16s {
			f32s[i] = float16.Frombits(u16s[i]).Float32()
		}
		return f32s, nil

	case DTypeBF16:
		return bfloat16.DecodeFloat32(data), nil

	default:
		return nil, fmt.Errorf("unknown data type: %s", dtype)
	}
}
