package caffe

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gonnir/caffe2nnir/internal/protos"
	"github.com/gonnir/caffe2nnir/nnir"
)

// Shape is the (batch, channels, height, width) extent of an activation
// tensor. Every operator in this core preserves the batch dimension.
type Shape [4]int

// Dims returns the shape as a dimension list for nnir tensors.
func (s Shape) Dims() []int {
	return []int{s[0], s[1], s[2], s[3]}
}

// String implements fmt.Stringer.
func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%dx%d", s[0], s[1], s[2], s[3])
}

// shapeMap is an insertion-ordered name→Shape mapping; the order of a
// record's primary inputs is the order they resolve in.
type shapeMap struct {
	names  []string
	shapes map[string]Shape
}

func newShapeMap() *shapeMap {
	return &shapeMap{shapes: make(map[string]Shape)}
}

func (m *shapeMap) add(name string, s Shape) {
	if _, exists := m.shapes[name]; !exists {
		m.names = append(m.names, name)
	}
	m.shapes[name] = s
}

func (m *shapeMap) get(name string) (Shape, bool) {
	s, ok := m.shapes[name]
	return s, ok
}

func (m *shapeMap) first() Shape {
	return m.shapes[m.names[0]]
}

func (m *shapeMap) len() int { return len(m.names) }

// tensorDims is the result of shape inference for one layer: the single
// output shape, plus parameter shapes when the operator has parameters.
type tensorDims struct {
	output  Shape
	weights []int // nil when the layer has no weight tensor
	bias    []int // nil when the layer has no bias tensor
}

// floorDiv divides rounding toward negative infinity. The convolution
// numerator goes negative on inputs smaller than the kernel, and those
// degenerate dimensions must still floor rather than truncate.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// inferDims computes the output and parameter shapes of a layer from its
// resolved input shapes and extracted attributes.
//
// Pooling with global_pooling rewrites kernel_shape/pads/strides in attrs to
// the full input extent before the output formula runs, so the emitted node
// carries the effective values.
func inferDims(layer *protos.LayerParameter, inputs *shapeMap, attrs *nnir.Attrs) tensorDims {
	var d tensorDims
	in := inputs.first()

	switch layer.Type {
	case "Convolution":
		strides := attrs.Ints("strides")
		pads := attrs.Ints("pads")
		dilations := attrs.Ints("dilations")
		kernel := attrs.Ints("kernel_shape")
		numOutput := int(layer.ConvolutionParam.GetNumOutput())

		d.output[3] = floorDiv(in[3]+2*pads[0]-kernel[0]-(kernel[0]-1)*(dilations[0]-1), strides[0]) + 1
		d.output[2] = floorDiv(in[2]+2*pads[1]-kernel[1]-(kernel[1]-1)*(dilations[1]-1), strides[1]) + 1
		d.output[1] = numOutput
		d.output[0] = in[0]

		d.weights = []int{numOutput, in[1], kernel[1], kernel[0]}
		if layer.ConvolutionParam.GetBiasTerm() {
			d.bias = []int{numOutput}
		}

	case "Deconvolution":
		strides := attrs.Ints("strides")
		pads := attrs.Ints("pads")
		dilations := attrs.Ints("dilations")
		kernel := attrs.Ints("kernel_shape")
		numOutput := int(layer.ConvolutionParam.GetNumOutput())

		d.output[3] = strides[0]*(in[3]-1) + dilations[0]*(kernel[0]-1) + 1 - 2*pads[0]
		d.output[2] = strides[1]*(in[2]-1) + dilations[1]*(kernel[1]-1) + 1 - 2*pads[1]
		d.output[1] = numOutput
		d.output[0] = in[0]

		d.weights = []int{numOutput, in[1], kernel[1], kernel[0]}
		if layer.ConvolutionParam.GetBiasTerm() {
			d.bias = []int{numOutput}
		}

	case "Pooling":
		strides := attrs.Ints("strides")
		pads := attrs.Ints("pads")
		kernel := attrs.Ints("kernel_shape")

		if layer.PoolingParam.GetGlobalPooling() {
			kernel[1] = in[2]
			kernel[0] = in[3]
			pads[0] = 0
			pads[1] = 0
			strides[0] = 1
			strides[1] = 1
		}

		d.output[3] = int(math32.Ceil(float32(in[3]+2*pads[0]+strides[0]-kernel[0]) / float32(strides[0])))
		d.output[2] = int(math32.Ceil(float32(in[2]+2*pads[1]+strides[1]-kernel[1]) / float32(strides[1])))
		// Drop windows that start entirely inside the padding region.
		if pads[1] > 0 && (d.output[2]-1)*strides[1] >= in[2]+pads[1] {
			d.output[2]--
		}
		if pads[0] > 0 && (d.output[3]-1)*strides[0] >= in[3]+pads[0] {
			d.output[3]--
		}
		d.output[1] = in[1]
		d.output[0] = in[0]

	case "InnerProduct":
		numOutput := int(layer.InnerProductParam.GetNumOutput())
		d.output = Shape{in[0], numOutput, 1, 1}
		d.weights = []int{numOutput, in[1], in[2], in[3]}
		if layer.InnerProductParam.GetBiasTerm() {
			d.bias = []int{numOutput}
		}

	case "Concat":
		for _, name := range inputs.names {
			s := inputs.shapes[name]
			d.output[1] += s[1]
		}
		d.output[0] = in[0]
		d.output[2] = in[2]
		d.output[3] = in[3]

	case "BatchNorm", "Scale":
		d.output = in
		if len(layer.Blobs) > 0 {
			d.weights = []int{d.output[1]}
		}
		if len(layer.Blobs) > 1 {
			d.bias = []int{d.output[1]}
		}

	default:
		d.output = in
	}
	return d
}
