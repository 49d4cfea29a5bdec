package protos

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Low-level field consumers shared by the message decoders. Repeated numeric
// fields accept both packed and unpacked encodings, as required by the proto
// wire spec regardless of the [packed] annotation in the schema.

var errWrongWireType = errors.New("unexpected wire type")

func consumeString(data []byte, typ protowire.Type) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, errWrongWireType
	}
	b, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return "", 0, protowire.ParseError(n)
	}
	return string(b), n, nil
}

func consumeVarint(data []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, errWrongWireType
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeUint32Ptr(data []byte, typ protowire.Type) (*uint32, int, error) {
	v, n, err := consumeVarint(data, typ)
	if err != nil {
		return nil, 0, err
	}
	u := uint32(v)
	return &u, n, nil
}

func consumeInt32Ptr(data []byte, typ protowire.Type) (*int32, int, error) {
	v, n, err := consumeVarint(data, typ)
	if err != nil {
		return nil, 0, err
	}
	i := int32(v)
	return &i, n, nil
}

func consumeBoolPtr(data []byte, typ protowire.Type) (*bool, int, error) {
	v, n, err := consumeVarint(data, typ)
	if err != nil {
		return nil, 0, err
	}
	b := v != 0
	return &b, n, nil
}

func consumeFloatPtr(data []byte, typ protowire.Type) (*float32, int, error) {
	if typ != protowire.Fixed32Type {
		return nil, 0, errWrongWireType
	}
	v, n := protowire.ConsumeFixed32(data)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	f := math.Float32frombits(v)
	return &f, n, nil
}

func appendUint32s(dst []uint32, data []byte, typ protowire.Type) ([]uint32, int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return dst, 0, protowire.ParseError(n)
		}
		return append(dst, uint32(v)), n, nil
	case protowire.BytesType:
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return dst, 0, protowire.ParseError(n)
		}
		for len(b) > 0 {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return dst, 0, protowire.ParseError(m)
			}
			dst = append(dst, uint32(v))
			b = b[m:]
		}
		return dst, n, nil
	default:
		return dst, 0, errWrongWireType
	}
}

func appendInt32s(dst []int32, data []byte, typ protowire.Type) ([]int32, int, error) {
	u, n, err := appendUint32s(nil, data, typ)
	if err != nil {
		return dst, 0, err
	}
	for _, v := range u {
		dst = append(dst, int32(v))
	}
	return dst, n, nil
}

func appendInt64s(dst []int64, data []byte, typ protowire.Type) ([]int64, int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return dst, 0, protowire.ParseError(n)
		}
		return append(dst, int64(v)), n, nil
	case protowire.BytesType:
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return dst, 0, protowire.ParseError(n)
		}
		for len(b) > 0 {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return dst, 0, protowire.ParseError(m)
			}
			dst = append(dst, int64(v))
			b = b[m:]
		}
		return dst, n, nil
	default:
		return dst, 0, errWrongWireType
	}
}

func appendFloats(dst []float32, data []byte, typ protowire.Type) ([]float32, int, error) {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(data)
		if n < 0 {
			return dst, 0, protowire.ParseError(n)
		}
		return append(dst, math.Float32frombits(v)), n, nil
	case protowire.BytesType:
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return dst, 0, protowire.ParseError(n)
		}
		if len(b)%4 != 0 {
			return dst, 0, errors.Errorf("packed float field has %d bytes, not a multiple of 4", len(b))
		}
		for len(b) > 0 {
			v, m := protowire.ConsumeFixed32(b)
			if m < 0 {
				return dst, 0, protowire.ParseError(m)
			}
			dst = append(dst, math.Float32frombits(v))
			b = b[m:]
		}
		return dst, n, nil
	default:
		return dst, 0, errWrongWireType
	}
}
