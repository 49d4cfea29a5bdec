package caffe

import (
	"testing"

	"github.com/gonnir/caffe2nnir/internal/protos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32(v uint32) *uint32   { return &v }
func f32(v float32) *float32 { return &v }
func boolPtr(v bool) *bool   { return &v }

func TestConvolutionAttrs(t *testing.T) {
	// Explicit per-axis fields win over the array fields.
	layer := &protos.LayerParameter{
		Name: "conv1",
		Type: "Convolution",
		ConvolutionParam: &protos.ConvolutionParameter{
			NumOutput:  u32(64),
			Pad:        []uint32{3},
			KernelSize: []uint32{7},
			Stride:     []uint32{2},
			StrideW:    u32(1),
		},
	}
	attrs := extractAttrs(layer)
	assert.Equal(t, []int{1, 2}, attrs.Ints("strides")) // [w, h]: explicit stride_w, array stride_h
	assert.Equal(t, []int{7, 7}, attrs.Ints("kernel_shape"))
	assert.Equal(t, []int{3, 3, 3, 3}, attrs.Ints("pads"))
	assert.Equal(t, []int{1, 1}, attrs.Ints("dilations"))
	assert.Equal(t, 1, attrs.Int("group"))
}

func TestConvolutionAttrDefaults(t *testing.T) {
	layer := &protos.LayerParameter{
		Name:             "conv",
		Type:             "Convolution",
		ConvolutionParam: &protos.ConvolutionParameter{NumOutput: u32(8)},
	}
	attrs := extractAttrs(layer)
	assert.Equal(t, []int{1, 1}, attrs.Ints("strides"))
	assert.Equal(t, []int{0, 0}, attrs.Ints("kernel_shape"))
	assert.Equal(t, []int{0, 0, 0, 0}, attrs.Ints("pads"))
}

func TestConvolutionPerAxisArrays(t *testing.T) {
	// A 2-element array sets h from element 0 and w from element 1; a
	// 1-element array makes w default to the resolved h value.
	layer := &protos.LayerParameter{
		Name: "conv",
		Type: "Convolution",
		ConvolutionParam: &protos.ConvolutionParameter{
			NumOutput:  u32(8),
			Pad:        []uint32{1, 2},
			KernelSize: []uint32{3},
			Dilation:   []uint32{2},
			Group:      u32(4),
		},
	}
	attrs := extractAttrs(layer)
	assert.Equal(t, []int{2, 1, 2, 1}, attrs.Ints("pads")) // [pad_w, pad_h, pad_w, pad_h]
	assert.Equal(t, []int{3, 3}, attrs.Ints("kernel_shape"))
	assert.Equal(t, []int{2, 2}, attrs.Ints("dilations"))
	assert.Equal(t, 4, attrs.Int("group"))
}

func TestPoolingAttrs(t *testing.T) {
	// Scalar fallbacks are shared across axes for pooling.
	layer := &protos.LayerParameter{
		Name: "pool1",
		Type: "Pooling",
		PoolingParam: &protos.PoolingParameter{
			KernelSize: u32(3),
			Stride:     u32(2),
			Pad:        u32(1),
			StrideH:    u32(3),
		},
	}
	attrs := extractAttrs(layer)
	assert.Equal(t, []int{2, 3}, attrs.Ints("strides"))
	assert.Equal(t, []int{3, 3}, attrs.Ints("kernel_shape"))
	assert.Equal(t, []int{1, 1, 1, 1}, attrs.Ints("pads"))
	mode, ok := attrs.Get("dim_round_mode")
	require.True(t, ok)
	assert.Equal(t, "ceil", mode.Str())
}

func TestLRNAttrs(t *testing.T) {
	layer := &protos.LayerParameter{
		Name: "norm1",
		Type: "LRN",
		LrnParam: &protos.LRNParameter{
			LocalSize: u32(5),
			Alpha:     f32(0.0001),
			Beta:      f32(0.75),
			K:         f32(2),
		},
	}
	attrs := extractAttrs(layer)
	assert.Equal(t, float32(0.0001), attrs.Float("alpha"))
	assert.Equal(t, float32(0.75), attrs.Float("beta"))
	assert.Equal(t, 5, attrs.Int("size"))
	assert.Equal(t, float32(2), attrs.Float("bias"))
}

func TestBatchNormAndInnerProductAttrs(t *testing.T) {
	bn := &protos.LayerParameter{
		Name:           "bn1",
		Type:           "BatchNorm",
		BatchNormParam: &protos.BatchNormParameter{Eps: f32(1e-3)},
	}
	attrs := extractAttrs(bn)
	assert.Equal(t, float32(1e-3), attrs.Float("epsilon"))

	// Defaulted epsilon.
	bn.BatchNormParam = nil
	attrs = extractAttrs(bn)
	assert.Equal(t, float32(1e-5), attrs.Float("epsilon"))

	ip := &protos.LayerParameter{Name: "fc6", Type: "InnerProduct"}
	attrs = extractAttrs(ip)
	assert.Equal(t, 1, attrs.Int("broadcast"))
	assert.Equal(t, 1, attrs.Int("transB"))
}

func TestReLUAttrs(t *testing.T) {
	relu := &protos.LayerParameter{Name: "relu1", Type: "ReLU"}
	assert.Equal(t, float32(0), extractAttrs(relu).Float("alpha"))

	relu.ReluParam = &protos.ReLUParameter{NegativeSlope: f32(0.1)}
	assert.Equal(t, float32(0.1), extractAttrs(relu).Float("alpha"))
}

func TestNoAttrTypes(t *testing.T) {
	for _, layerType := range []string{"Eltwise", "Concat", "Softmax", "Scale", "Dropout", "Split"} {
		layer := &protos.LayerParameter{Name: "x", Type: layerType}
		assert.Equal(t, 0, extractAttrs(layer).Len(), "type %s", layerType)
	}
}
