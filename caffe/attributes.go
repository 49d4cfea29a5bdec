package caffe

import (
	"github.com/gonnir/caffe2nnir/internal/protos"
	"github.com/gonnir/caffe2nnir/nnir"
)

// This file derives the flat IR attribute mapping from a layer's typed
// parameter block.

// uint32Or dereferences an optional field, falling back to the value resolved
// for the other axis (or the scalar default).
func uint32Or(field *uint32, fallback int) int {
	if field != nil {
		return int(*field)
	}
	return fallback
}

// axisPair resolves an (h, w) pair of convolution-style parameters: the
// explicit per-axis field wins, then the corresponding element of the array
// field, then the default. The w axis falls back to the resolved h value
// when the array has fewer than two elements.
func axisPair(hField, wField *uint32, array []uint32, def int) (h, w int) {
	h = def
	if len(array) > 0 {
		h = int(array[0])
	}
	h = uint32Or(hField, h)
	w = h
	if len(array) > 1 {
		w = int(array[1])
	}
	w = uint32Or(wField, w)
	return
}

// extractAttrs maps a layer's parameters to IR attributes, per operator type.
// Types not listed produce an empty mapping.
func extractAttrs(layer *protos.LayerParameter) *nnir.Attrs {
	attrs := nnir.NewAttrs()
	switch layer.Type {
	case "Convolution", "Deconvolution":
		conv := layer.ConvolutionParam
		if conv == nil {
			conv = &protos.ConvolutionParameter{}
		}
		padH, padW := axisPair(conv.PadH, conv.PadW, conv.Pad, 0)
		strideH, strideW := axisPair(conv.StrideH, conv.StrideW, conv.Stride, 1)
		kernelH, kernelW := axisPair(conv.KernelH, conv.KernelW, conv.KernelSize, 0)
		dilationH := 1
		if len(conv.Dilation) > 0 {
			dilationH = int(conv.Dilation[0])
		}
		dilationW := dilationH
		if len(conv.Dilation) > 1 {
			dilationW = int(conv.Dilation[1])
		}
		attrs.Set("strides", []int{strideW, strideH})
		attrs.Set("kernel_shape", []int{kernelW, kernelH})
		attrs.Set("group", int(conv.GetGroup()))
		attrs.Set("pads", []int{padW, padH, padW, padH})
		attrs.Set("dilations", []int{dilationW, dilationH})

	case "Pooling":
		// The scalar fallback fields are shared by both axes here, unlike
		// convolution where the w axis can default off the h axis.
		pool := layer.PoolingParam
		if pool == nil {
			pool = &protos.PoolingParameter{}
		}
		padH := uint32Or(pool.PadH, int(pool.GetPad()))
		padW := uint32Or(pool.PadW, int(pool.GetPad()))
		strideH := uint32Or(pool.StrideH, int(pool.GetStride()))
		strideW := uint32Or(pool.StrideW, int(pool.GetStride()))
		kernelH := uint32Or(pool.KernelH, int(pool.GetKernelSize()))
		kernelW := uint32Or(pool.KernelW, int(pool.GetKernelSize()))
		attrs.Set("strides", []int{strideW, strideH})
		attrs.Set("kernel_shape", []int{kernelW, kernelH})
		attrs.Set("pads", []int{padW, padH, padW, padH})
		attrs.Set("dim_round_mode", "ceil")

	case "LRN":
		lrn := layer.LrnParam
		attrs.Set("alpha", lrn.GetAlpha())
		attrs.Set("beta", lrn.GetBeta())
		attrs.Set("size", int(lrn.GetLocalSize()))
		attrs.Set("bias", lrn.GetK())

	case "BatchNorm":
		attrs.Set("epsilon", layer.BatchNormParam.GetEps())

	case "InnerProduct":
		attrs.Set("broadcast", 1)
		attrs.Set("transB", 1)

	case "ReLU":
		attrs.Set("alpha", layer.ReluParam.GetNegativeSlope())
	}
	return attrs
}
