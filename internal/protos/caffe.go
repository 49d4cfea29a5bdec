// Package protos holds the subset of the Caffe NetParameter schema consumed
// by the converter, with proto2 field-presence semantics: optional scalar
// fields are pointers, and Get* accessors return the schema default when the
// field was not set on the wire.
//
// The decoder is hand-maintained on top of the protowire low-level API. The
// schema is small and frozen (upstream caffe.proto has not changed these
// field numbers in years), so there is no generated code to keep in sync.
package protos

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// PoolingParameter_PoolMethod is the Caffe pooling mode enum.
type PoolingParameter_PoolMethod int32

const (
	PoolingParameter_MAX        PoolingParameter_PoolMethod = 0
	PoolingParameter_AVE        PoolingParameter_PoolMethod = 1
	PoolingParameter_STOCHASTIC PoolingParameter_PoolMethod = 2
)

// NetParameter is the top-level Caffe model message.
type NetParameter struct {
	Name     string            // field 1
	Input    []string          // field 3
	InputDim []int32           // field 4 (deprecated 4-D input shape)
	Layer    []*LayerParameter // field 100
}

// LayerParameter describes one layer: its type, the blobs it reads (bottom)
// and writes (top), its trained blobs, and the per-type parameter block.
type LayerParameter struct {
	Name   string       // field 1
	Type   string       // field 2
	Bottom []string     // field 3
	Top    []string     // field 4
	Blobs  []*BlobProto // field 7

	ConcatParam       *ConcatParameter       // field 104
	ConvolutionParam  *ConvolutionParameter  // field 106
	DropoutParam      *DropoutParameter      // field 108
	EltwiseParam      *EltwiseParameter      // field 110
	InnerProductParam *InnerProductParameter // field 117
	LrnParam          *LRNParameter          // field 118
	PoolingParam      *PoolingParameter      // field 121
	ReluParam         *ReLUParameter         // field 123
	BatchNormParam    *BatchNormParameter    // field 139
	ScaleParam        *ScaleParameter        // field 142
}

// BlobProto carries a trained parameter blob as a flat float list.
type BlobProto struct {
	Shape    *BlobShape // field 7
	Data     []float32  // field 5, packed
	Num      *int32     // field 1 (legacy 4-D shape)
	Channels *int32     // field 2
	Height   *int32     // field 3
	Width    *int32     // field 4
}

// BlobShape is the dimension list of a blob.
type BlobShape struct {
	Dim []int64 // field 1, packed
}

// ConvolutionParameter is shared by Convolution and Deconvolution layers.
type ConvolutionParameter struct {
	NumOutput  *uint32  // field 1
	BiasTerm   *bool    // field 2, default true
	Pad        []uint32 // field 3
	KernelSize []uint32 // field 4
	Group      *uint32  // field 5, default 1
	Stride     []uint32 // field 6
	PadH       *uint32  // field 9
	PadW       *uint32  // field 10
	KernelH    *uint32  // field 11
	KernelW    *uint32  // field 12
	StrideH    *uint32  // field 13
	StrideW    *uint32  // field 14
	Dilation   []uint32 // field 18
}

func (c *ConvolutionParameter) GetNumOutput() uint32 {
	if c != nil && c.NumOutput != nil {
		return *c.NumOutput
	}
	return 0
}

func (c *ConvolutionParameter) GetBiasTerm() bool {
	if c != nil && c.BiasTerm != nil {
		return *c.BiasTerm
	}
	return true
}

func (c *ConvolutionParameter) GetGroup() uint32 {
	if c != nil && c.Group != nil {
		return *c.Group
	}
	return 1
}

// PoolingParameter configures Pooling layers. Unlike convolution, the
// scalar pad/stride/kernel_size fields are shared by both spatial axes.
type PoolingParameter struct {
	Pool          *PoolingParameter_PoolMethod // field 1, default MAX
	KernelSize    *uint32                      // field 2
	Stride        *uint32                      // field 3, default 1
	Pad           *uint32                      // field 4, default 0
	KernelH       *uint32                      // field 5
	KernelW       *uint32                      // field 6
	StrideH       *uint32                      // field 7
	StrideW       *uint32                      // field 8
	PadH          *uint32                      // field 9
	PadW          *uint32                      // field 10
	GlobalPooling *bool                        // field 12, default false
}

func (p *PoolingParameter) GetPool() PoolingParameter_PoolMethod {
	if p != nil && p.Pool != nil {
		return *p.Pool
	}
	return PoolingParameter_MAX
}

func (p *PoolingParameter) GetKernelSize() uint32 {
	if p != nil && p.KernelSize != nil {
		return *p.KernelSize
	}
	return 0
}

func (p *PoolingParameter) GetStride() uint32 {
	if p != nil && p.Stride != nil {
		return *p.Stride
	}
	return 1
}

func (p *PoolingParameter) GetPad() uint32 {
	if p != nil && p.Pad != nil {
		return *p.Pad
	}
	return 0
}

func (p *PoolingParameter) GetGlobalPooling() bool {
	if p != nil && p.GlobalPooling != nil {
		return *p.GlobalPooling
	}
	return false
}

// LRNParameter configures local response normalization.
type LRNParameter struct {
	LocalSize *uint32  // field 1, default 5
	Alpha     *float32 // field 2, default 1
	Beta      *float32 // field 3, default 0.75
	K         *float32 // field 5, default 1
}

func (l *LRNParameter) GetLocalSize() uint32 {
	if l != nil && l.LocalSize != nil {
		return *l.LocalSize
	}
	return 5
}

func (l *LRNParameter) GetAlpha() float32 {
	if l != nil && l.Alpha != nil {
		return *l.Alpha
	}
	return 1
}

func (l *LRNParameter) GetBeta() float32 {
	if l != nil && l.Beta != nil {
		return *l.Beta
	}
	return 0.75
}

func (l *LRNParameter) GetK() float32 {
	if l != nil && l.K != nil {
		return *l.K
	}
	return 1
}

// InnerProductParameter configures fully-connected layers.
type InnerProductParameter struct {
	NumOutput *uint32 // field 1
	BiasTerm  *bool   // field 2, default true
}

func (ip *InnerProductParameter) GetNumOutput() uint32 {
	if ip != nil && ip.NumOutput != nil {
		return *ip.NumOutput
	}
	return 0
}

func (ip *InnerProductParameter) GetBiasTerm() bool {
	if ip != nil && ip.BiasTerm != nil {
		return *ip.BiasTerm
	}
	return true
}

// BatchNormParameter configures BatchNorm layers.
type BatchNormParameter struct {
	UseGlobalStats *bool    // field 1
	Eps            *float32 // field 3, default 1e-5
}

func (bn *BatchNormParameter) GetEps() float32 {
	if bn != nil && bn.Eps != nil {
		return *bn.Eps
	}
	return 1e-5
}

// ReLUParameter configures ReLU layers.
type ReLUParameter struct {
	NegativeSlope *float32 // field 1, default 0
}

func (r *ReLUParameter) GetNegativeSlope() float32 {
	if r != nil && r.NegativeSlope != nil {
		return *r.NegativeSlope
	}
	return 0
}

// DropoutParameter configures Dropout layers. The ratio is irrelevant for
// inference but decoded for completeness.
type DropoutParameter struct {
	DropoutRatio *float32 // field 1, default 0.5
}

// EltwiseParameter configures Eltwise layers.
type EltwiseParameter struct {
	Operation *int32    // field 1, default SUM(1)
	Coeff     []float32 // field 2
}

// ConcatParameter configures Concat layers.
type ConcatParameter struct {
	Axis *int32 // field 2, default 1
}

// ScaleParameter configures Scale layers.
type ScaleParameter struct {
	Axis     *int32 // field 1, default 1
	BiasTerm *bool  // field 4, default false
}

// Unmarshal decodes a serialized NetParameter (.caffemodel contents).
func Unmarshal(data []byte, net *NetParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding NetParameter tag")
		}
		data = data[n:]
		switch num {
		case 1:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return errors.WithMessage(err, "NetParameter.name")
			}
			net.Name = s
			data = data[n:]
		case 3:
			s, n, err := consumeString(data, typ)
			if err != nil {
				return errors.WithMessage(err, "NetParameter.input")
			}
			net.Input = append(net.Input, s)
			data = data[n:]
		case 4:
			var n int
			var err error
			net.InputDim, n, err = appendInt32s(net.InputDim, data, typ)
			if err != nil {
				return errors.WithMessage(err, "NetParameter.input_dim")
			}
			data = data[n:]
		case 100:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "NetParameter.layer")
			}
			layer := &LayerParameter{}
			if err := unmarshalLayer(b, layer); err != nil {
				return err
			}
			net.Layer = append(net.Layer, layer)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return errors.Wrapf(protowire.ParseError(n), "skipping NetParameter field %d", num)
			}
			data = data[n:]
		}
	}
	return nil
}

func unmarshalLayer(data []byte, layer *LayerParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding LayerParameter tag")
		}
		data = data[n:]

		// Length-delimited sub-message fields share the decode preamble.
		subMessage := func(name string, fn func([]byte) error) error {
			b, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return errors.Wrapf(protowire.ParseError(m), "LayerParameter.%s", name)
			}
			if err := fn(b); err != nil {
				return errors.WithMessagef(err, "LayerParameter.%s", name)
			}
			data = data[m:]
			return nil
		}

		var err error
		switch num {
		case 1:
			layer.Name, n, err = consumeString(data, typ)
			data = data[n:]
		case 2:
			layer.Type, n, err = consumeString(data, typ)
			data = data[n:]
		case 3:
			var s string
			s, n, err = consumeString(data, typ)
			layer.Bottom = append(layer.Bottom, s)
			data = data[n:]
		case 4:
			var s string
			s, n, err = consumeString(data, typ)
			layer.Top = append(layer.Top, s)
			data = data[n:]
		case 7:
			err = subMessage("blobs", func(b []byte) error {
				blob := &BlobProto{}
				if err := unmarshalBlob(b, blob); err != nil {
					return err
				}
				layer.Blobs = append(layer.Blobs, blob)
				return nil
			})
		case 104:
			layer.ConcatParam = &ConcatParameter{}
			err = subMessage("concat_param", func(b []byte) error {
				return unmarshalConcat(b, layer.ConcatParam)
			})
		case 106:
			layer.ConvolutionParam = &ConvolutionParameter{}
			err = subMessage("convolution_param", func(b []byte) error {
				return unmarshalConvolution(b, layer.ConvolutionParam)
			})
		case 108:
			layer.DropoutParam = &DropoutParameter{}
			err = subMessage("dropout_param", func(b []byte) error {
				return unmarshalDropout(b, layer.DropoutParam)
			})
		case 110:
			layer.EltwiseParam = &EltwiseParameter{}
			err = subMessage("eltwise_param", func(b []byte) error {
				return unmarshalEltwise(b, layer.EltwiseParam)
			})
		case 117:
			layer.InnerProductParam = &InnerProductParameter{}
			err = subMessage("inner_product_param", func(b []byte) error {
				return unmarshalInnerProduct(b, layer.InnerProductParam)
			})
		case 118:
			layer.LrnParam = &LRNParameter{}
			err = subMessage("lrn_param", func(b []byte) error {
				return unmarshalLRN(b, layer.LrnParam)
			})
		case 121:
			layer.PoolingParam = &PoolingParameter{}
			err = subMessage("pooling_param", func(b []byte) error {
				return unmarshalPooling(b, layer.PoolingParam)
			})
		case 123:
			layer.ReluParam = &ReLUParameter{}
			err = subMessage("relu_param", func(b []byte) error {
				return unmarshalReLU(b, layer.ReluParam)
			})
		case 139:
			layer.BatchNormParam = &BatchNormParameter{}
			err = subMessage("batch_norm_param", func(b []byte) error {
				return unmarshalBatchNorm(b, layer.BatchNormParam)
			})
		case 142:
			layer.ScaleParam = &ScaleParameter{}
			err = subMessage("scale_param", func(b []byte) error {
				return unmarshalScale(b, layer.ScaleParam)
			})
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = errors.Wrapf(protowire.ParseError(n), "skipping LayerParameter field %d", num)
			}
			data = data[n:]
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func unmarshalBlob(data []byte, blob *BlobProto) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding BlobProto tag")
		}
		data = data[n:]
		var err error
		switch num {
		case 1:
			blob.Num, n, err = consumeInt32Ptr(data, typ)
			data = data[n:]
		case 2:
			blob.Channels, n, err = consumeInt32Ptr(data, typ)
			data = data[n:]
		case 3:
			blob.Height, n, err = consumeInt32Ptr(data, typ)
			data = data[n:]
		case 4:
			blob.Width, n, err = consumeInt32Ptr(data, typ)
			data = data[n:]
		case 5:
			blob.Data, n, err = appendFloats(blob.Data, data, typ)
			data = data[n:]
		case 7:
			var b []byte
			b, n = protowire.ConsumeBytes(data)
			if n < 0 {
				err = errors.Wrap(protowire.ParseError(n), "BlobProto.shape")
				break
			}
			blob.Shape = &BlobShape{}
			err = unmarshalBlobShape(b, blob.Shape)
			data = data[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = errors.Wrapf(protowire.ParseError(n), "skipping BlobProto field %d", num)
			}
			data = data[n:]
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func unmarshalBlobShape(data []byte, shape *BlobShape) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding BlobShape tag")
		}
		data = data[n:]
		if num != 1 {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return errors.Wrapf(protowire.ParseError(n), "skipping BlobShape field %d", num)
			}
			data = data[n:]
			continue
		}
		var err error
		shape.Dim, n, err = appendInt64s(shape.Dim, data, typ)
		if err != nil {
			return errors.WithMessage(err, "BlobShape.dim")
		}
		data = data[n:]
	}
	return nil
}

func unmarshalConvolution(data []byte, conv *ConvolutionParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding ConvolutionParameter tag")
		}
		data = data[n:]
		var err error
		switch num {
		case 1:
			conv.NumOutput, n, err = consumeUint32Ptr(data, typ)
		case 2:
			conv.BiasTerm, n, err = consumeBoolPtr(data, typ)
		case 3:
			conv.Pad, n, err = appendUint32s(conv.Pad, data, typ)
		case 4:
			conv.KernelSize, n, err = appendUint32s(conv.KernelSize, data, typ)
		case 5:
			conv.Group, n, err = consumeUint32Ptr(data, typ)
		case 6:
			conv.Stride, n, err = appendUint32s(conv.Stride, data, typ)
		case 9:
			conv.PadH, n, err = consumeUint32Ptr(data, typ)
		case 10:
			conv.PadW, n, err = consumeUint32Ptr(data, typ)
		case 11:
			conv.KernelH, n, err = consumeUint32Ptr(data, typ)
		case 12:
			conv.KernelW, n, err = consumeUint32Ptr(data, typ)
		case 13:
			conv.StrideH, n, err = consumeUint32Ptr(data, typ)
		case 14:
			conv.StrideW, n, err = consumeUint32Ptr(data, typ)
		case 18:
			conv.Dilation, n, err = appendUint32s(conv.Dilation, data, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "ConvolutionParameter field %d", num)
		}
		data = data[n:]
	}
	return nil
}

func unmarshalPooling(data []byte, pool *PoolingParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding PoolingParameter tag")
		}
		data = data[n:]
		var err error
		switch num {
		case 1:
			var v *int32
			v, n, err = consumeInt32Ptr(data, typ)
			if v != nil {
				mode := PoolingParameter_PoolMethod(*v)
				pool.Pool = &mode
			}
		case 2:
			pool.KernelSize, n, err = consumeUint32Ptr(data, typ)
		case 3:
			pool.Stride, n, err = consumeUint32Ptr(data, typ)
		case 4:
			pool.Pad, n, err = consumeUint32Ptr(data, typ)
		case 5:
			pool.KernelH, n, err = consumeUint32Ptr(data, typ)
		case 6:
			pool.KernelW, n, err = consumeUint32Ptr(data, typ)
		case 7:
			pool.StrideH, n, err = consumeUint32Ptr(data, typ)
		case 8:
			pool.StrideW, n, err = consumeUint32Ptr(data, typ)
		case 9:
			pool.PadH, n, err = consumeUint32Ptr(data, typ)
		case 10:
			pool.PadW, n, err = consumeUint32Ptr(data, typ)
		case 12:
			pool.GlobalPooling, n, err = consumeBoolPtr(data, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "PoolingParameter field %d", num)
		}
		data = data[n:]
	}
	return nil
}

func unmarshalLRN(data []byte, lrn *LRNParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding LRNParameter tag")
		}
		data = data[n:]
		var err error
		switch num {
		case 1:
			lrn.LocalSize, n, err = consumeUint32Ptr(data, typ)
		case 2:
			lrn.Alpha, n, err = consumeFloatPtr(data, typ)
		case 3:
			lrn.Beta, n, err = consumeFloatPtr(data, typ)
		case 5:
			lrn.K, n, err = consumeFloatPtr(data, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "LRNParameter field %d", num)
		}
		data = data[n:]
	}
	return nil
}

func unmarshalInnerProduct(data []byte, ip *InnerProductParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding InnerProductParameter tag")
		}
		data = data[n:]
		var err error
		switch num {
		case 1:
			ip.NumOutput, n, err = consumeUint32Ptr(data, typ)
		case 2:
			ip.BiasTerm, n, err = consumeBoolPtr(data, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "InnerProductParameter field %d", num)
		}
		data = data[n:]
	}
	return nil
}

func unmarshalBatchNorm(data []byte, bn *BatchNormParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding BatchNormParameter tag")
		}
		data = data[n:]
		var err error
		switch num {
		case 1:
			bn.UseGlobalStats, n, err = consumeBoolPtr(data, typ)
		case 3:
			bn.Eps, n, err = consumeFloatPtr(data, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "BatchNormParameter field %d", num)
		}
		data = data[n:]
	}
	return nil
}

func unmarshalReLU(data []byte, relu *ReLUParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding ReLUParameter tag")
		}
		data = data[n:]
		var err error
		switch num {
		case 1:
			relu.NegativeSlope, n, err = consumeFloatPtr(data, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "ReLUParameter field %d", num)
		}
		data = data[n:]
	}
	return nil
}

func unmarshalDropout(data []byte, dp *DropoutParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding DropoutParameter tag")
		}
		data = data[n:]
		var err error
		switch num {
		case 1:
			dp.DropoutRatio, n, err = consumeFloatPtr(data, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "DropoutParameter field %d", num)
		}
		data = data[n:]
	}
	return nil
}

func unmarshalEltwise(data []byte, ew *EltwiseParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding EltwiseParameter tag")
		}
		data = data[n:]
		var err error
		switch num {
		case 1:
			ew.Operation, n, err = consumeInt32Ptr(data, typ)
		case 2:
			ew.Coeff, n, err = appendFloats(ew.Coeff, data, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "EltwiseParameter field %d", num)
		}
		data = data[n:]
	}
	return nil
}

func unmarshalConcat(data []byte, cc *ConcatParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding ConcatParameter tag")
		}
		data = data[n:]
		var err error
		switch num {
		case 2:
			cc.Axis, n, err = consumeInt32Ptr(data, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "ConcatParameter field %d", num)
		}
		data = data[n:]
	}
	return nil
}

func unmarshalScale(data []byte, sc *ScaleParameter) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decoding ScaleParameter tag")
		}
		data = data[n:]
		var err error
		switch num {
		case 1:
			sc.Axis, n, err = consumeInt32Ptr(data, typ)
		case 4:
			sc.BiasTerm, n, err = consumeBoolPtr(data, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				err = protowire.ParseError(n)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "ScaleParameter field %d", num)
		}
		data = data[n:]
	}
	return nil
}
