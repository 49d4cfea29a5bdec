package caffe

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gonnir/caffe2nnir/internal/protos"
	"github.com/gonnir/caffe2nnir/nnir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// This file implements the conversion pass: a single forward fold over the
// layer list that emits nodes, variables and binaries to the nnir graph.

// caffeOpType maps Caffe layer types with a fixed IR operator. Pooling maps
// to max_pool or avg_pool by its mode flag; Scale fuses into a preceding
// batch_norm, or becomes mul/muladd.
var caffeOpType = map[string]string{
	"Convolution":     "conv",
	"Deconvolution":   "conv_transpose",
	"BatchNorm":       "batch_norm",
	"InnerProduct":    "gemm",
	"ReLU":            "relu",
	"LRN":             "lrn",
	"Eltwise":         "sum",
	"Concat":          "concat",
	"Softmax":         "softmax",
	"SoftmaxWithLoss": "softmax",
}

// layerRecord is the bookkeeping for one emitted node: the canonical layer
// identity, its resolved input shapes, its single output, and the parameter
// tensors attached to it.
type layerRecord struct {
	name        string
	opType      string
	inputs      *shapeMap
	outputName  string
	outputShape Shape
	attrs       *nnir.Attrs

	weightName string
	biasName   string

	// Set only when a Scale layer was fused into this (batch_norm) record.
	scaleWeightName string
	scaleBiasName   string
}

// node builds the IR node for the record. The input name order is: primary
// inputs, fused scale weight, fused scale bias, own weights, own biases.
func (r *layerRecord) node() *nnir.Node {
	inputs := slices.Clone(r.inputs.names)
	for _, name := range []string{r.scaleWeightName, r.scaleBiasName, r.weightName, r.biasName} {
		if name != "" {
			inputs = append(inputs, name)
		}
	}
	return &nnir.Node{
		Type:    r.opType,
		Inputs:  inputs,
		Outputs: []string{r.outputName},
		Attrs:   r.attrs,
	}
}

// graphBuilder owns all mutable state of one conversion pass. Nothing here
// survives the pass; the nnir graph owns the result.
type graphBuilder struct {
	net       *protos.NetParameter
	graph     *nnir.Graph
	inputDims Shape

	records    []*layerRecord
	outputsMap map[string]Shape // every output produced so far
	inputsMap  map[string]Shape // every input consumed so far

	// Alias tables: names of eliminated or renamed producers.
	dropoutAlias map[string]string
	splitAlias   map[string]string
	outputRename map[string]string // declared output name → canonical layer name

	// pending marks the last record as a batch_norm held back from emission
	// because the next layer is a Scale that may fuse into it.
	pending bool

	networkInputs map[string]Shape
}

// ConvertToNNIR runs the conversion pass over the model and returns the
// resulting IR graph. inputDims is the declared network input shape; the
// model file itself does not carry it.
//
// All conversion failures (unsupported operators, unresolvable inputs,
// malformed attributes, missing boundaries) abort the pass and are returned
// as an error; nothing is written on failure.
func (m *Model) ConvertToNNIR(inputDims Shape) (*nnir.Graph, error) {
	if len(m.Proto.Layer) == 0 {
		return nil, errors.New("model has no layers to convert")
	}
	b := &graphBuilder{
		net:          &m.Proto,
		graph:        nnir.NewGraph(m.Proto.Name),
		inputDims:    inputDims,
		outputsMap:   make(map[string]Shape),
		inputsMap:    make(map[string]Shape),
		dropoutAlias: make(map[string]string),
		splitAlias:   make(map[string]string),
		outputRename: make(map[string]string),
	}
	err := exceptions.TryCatch[error](func() { b.run() })
	if err != nil {
		return nil, err
	}
	return b.graph, nil
}

func (b *graphBuilder) run() {
	b.extractInput()
	b.convertLayers()
	b.extractOutput()
	b.graph.UpdateLocals()
}

// extractInput determines the single declared network input before the main
// pass: the model's explicit top-level input if present, else the first
// layer's output when it is an input-placeholder layer, else the first
// layer's first input (or, lacking one, its first output).
func (b *graphBuilder) extractInput() {
	var inputName string
	first := b.net.Layer[0]
	switch {
	case len(b.net.Input) > 0:
		inputName = IRName(b.net.Input[0])
	case first.Type == "Data" || first.Type == "Input" || first.Type == "ImageData":
		if len(first.Top) == 0 {
			inputName = IRName(first.Name)
		} else {
			inputName = IRName(first.Top[0])
		}
	default:
		if len(first.Bottom) > 0 {
			inputName = IRName(first.Bottom[0])
		} else if len(first.Top) > 0 {
			inputName = IRName(first.Top[0])
		} else {
			exceptions.Panicf("unable to determine the network input: layer %q declares no blobs", first.Name)
		}
	}
	b.networkInputs = map[string]Shape{inputName: b.inputDims}
	b.graph.AddInput(nnir.NewTensor(inputName, b.inputDims.Dims()))
	klog.V(1).Infof("network input %s %s", inputName, b.inputDims)
}

// extractOutput declares the last emitted record's output as the network
// output, after the main pass.
func (b *graphBuilder) extractOutput() {
	if len(b.records) == 0 {
		exceptions.Panicf("no nodes were emitted, cannot determine the network output")
	}
	last := b.records[len(b.records)-1]
	b.graph.AddOutput(nnir.NewTensor(last.outputName, last.outputShape.Dims()))
	klog.V(1).Infof("network output %s %s", last.outputName, last.outputShape)
}

func (b *graphBuilder) lastRecord() *layerRecord {
	if len(b.records) == 0 {
		return nil
	}
	return b.records[len(b.records)-1]
}

// renamed resolves a producer name through outputRename.
func (b *graphBuilder) renamed(name string) string {
	if alias, ok := b.outputRename[name]; ok {
		return alias
	}
	return name
}

func (b *graphBuilder) convertLayers() {
	layers := b.net.Layer
	for i, layer := range layers {
		layerName := IRName(layer.Name)

		switch layer.Type {
		case "Data", "ImageData", "Input":
			// The network input was already extracted before the pass.
			continue
		case "Dropout":
			// A copy layer in inference: alias its output to its source.
			in := b.renamed(IRName(layer.Bottom[0]))
			b.dropoutAlias[IRName(layer.Top[0])] = in
			klog.V(1).Infof("dropped dropout layer %s, %s aliases %s", layerName, IRName(layer.Top[0]), in)
			continue
		case "Split":
			// One source fans out to every split output.
			in := b.renamed(IRName(layer.Bottom[0]))
			for _, top := range layer.Top {
				b.splitAlias[IRName(top)] = in
			}
			klog.V(1).Infof("dropped split layer %s, outputs alias %s", layerName, in)
			continue
		}

		opType, ok := caffeOpType[layer.Type]
		if !ok {
			switch layer.Type {
			case "Pooling":
				if layer.PoolingParam.GetPool() == protos.PoolingParameter_MAX {
					opType = "max_pool"
				} else {
					opType = "avg_pool"
				}
			case "Scale":
				if prev := b.lastRecord(); prev != nil && prev.opType == "batch_norm" {
					b.fuseScale(layer, layerName, prev)
					continue
				}
				if len(layer.Blobs) == 1 {
					opType = "mul"
				} else {
					opType = "muladd"
				}
				klog.V(1).Infof("converting scale layer %s to %s", layerName, opType)
			default:
				exceptions.Panicf("caffe operation %q is not supported (layer %q)", layer.Type, layerName)
			}
		}

		attrs := extractAttrs(layer)
		if layer.Type == "ReLU" && attrs.Float("alpha") != 0 {
			opType = "leaky_relu"
		}

		inputs := b.resolveInputs(layer, layerName)
		for _, name := range inputs.names {
			b.inputsMap[name] = inputs.shapes[name]
		}

		d := inferDims(layer, inputs, attrs)
		if len(layer.Top) > 0 && layerName != IRName(layer.Top[0]) {
			b.outputRename[IRName(layer.Top[0])] = layerName
		}
		b.outputsMap[layerName] = d.output

		rec := &layerRecord{
			name:        layerName,
			opType:      opType,
			inputs:      inputs,
			outputName:  layerName,
			outputShape: d.output,
			attrs:       attrs,
		}

		b.extractBinary(layer, layerName)
		if d.weights != nil {
			rec.weightName = layerName + "_w"
			b.graph.AddVariable(nnir.NewTensor(rec.weightName, d.weights))
		}
		if d.bias != nil {
			rec.biasName = layerName + "_b"
			b.graph.AddVariable(nnir.NewTensor(rec.biasName, d.bias))
		}

		b.records = append(b.records, rec)
		klog.V(1).Infof("layer %d: %s %s inputs=%v output=%s %s",
			i, rec.opType, rec.name, rec.inputs.names, rec.outputName, rec.outputShape)

		// A batch_norm immediately followed by a Scale layer may absorb it;
		// hold its emission until the Scale is seen.
		if rec.opType == "batch_norm" && i+1 < len(layers) && layers[i+1].Type == "Scale" {
			b.pending = true
			continue
		}
		b.graph.AddNode(rec.node())
	}
}

// fuseScale absorbs a Scale layer into the preceding batch_norm record: the
// scale blobs become extra inputs of the batch_norm node, and the record's
// identity transfers to the Scale layer's name so that later references to
// either resolve correctly.
func (b *graphBuilder) fuseScale(layer *protos.LayerParameter, layerName string, prev *layerRecord) {
	b.extractBinary(layer, layerName)

	// Recomputing from the record's own inputs/attributes is idempotent for
	// batch_norm: the output shape equals the input shape either way.
	d := inferDims(layer, prev.inputs, prev.attrs)
	prev.outputName = layerName
	prev.outputShape = d.output
	b.outputsMap[layerName] = d.output

	if d.weights != nil {
		prev.scaleWeightName = layerName + "_w"
		b.graph.AddVariable(nnir.NewTensor(prev.scaleWeightName, d.weights))
	}
	if d.bias != nil {
		prev.scaleBiasName = layerName + "_b"
		b.graph.AddVariable(nnir.NewTensor(prev.scaleBiasName, d.bias))
	}
	if len(layer.Top) > 0 && layerName != IRName(layer.Top[0]) {
		b.outputRename[IRName(layer.Top[0])] = layerName
	}
	prev.name = layerName

	if b.pending {
		b.graph.AddNode(prev.node())
		b.pending = false
	} else {
		// The batch_norm node went out before this Scale was seen (e.g. an
		// eliminated layer sat between them); swap it for the fused node.
		b.graph.ReplaceLastNode(prev.node())
	}
	klog.V(1).Infof("fused scale layer %s into batch_norm", layerName)
}

// resolveInputs maps each declared input of a layer to a known producer and
// its shape. Resolution order per name: outputRename, then splitAlias, then
// dropoutAlias rewrites, then membership in the previous record's output,
// the global outputs, and the global inputs. A Softmax label input (any
// input past the first) is optional and stops resolution for the layer.
func (b *graphBuilder) resolveInputs(layer *protos.LayerParameter, layerName string) *shapeMap {
	inputs := newShapeMap()

	// The first emitted layer resolves directly against the network input.
	if len(b.records) == 0 {
		for _, bottom := range layer.Bottom {
			name := IRName(bottom)
			shape, ok := b.networkInputs[name]
			if !ok {
				exceptions.Panicf("unable to get the input dimensions for layer %q", layerName)
			}
			inputs.add(name, shape)
		}
		return inputs
	}

	prev := b.records[len(b.records)-1]
	for k, bottom := range layer.Bottom {
		name := IRName(bottom)
		if alias, ok := b.outputRename[name]; ok {
			name = alias
		}
		if alias, ok := b.splitAlias[name]; ok {
			name = alias
		}
		if alias, ok := b.dropoutAlias[name]; ok {
			name = alias
		}

		if name == prev.outputName {
			inputs.add(name, prev.outputShape)
		} else if shape, ok := b.outputsMap[name]; ok {
			inputs.add(name, shape)
		} else if shape, ok := b.inputsMap[name]; ok {
			inputs.add(name, shape)
		} else if (layer.Type == "Softmax" || layer.Type == "SoftmaxWithLoss") && k != 0 {
			// Trailing label input, ignored for inference.
			break
		} else if alias, ok := b.outputRename[name]; ok && alias == prev.outputName {
			inputs.add(alias, prev.outputShape)
		} else {
			exceptions.Panicf("unknown dimensions for input %q in layer %q", name, layerName)
		}
	}
	return inputs
}

// extractBinary registers the layer's raw float payloads with the graph:
// the first blob is the weight payload (<name>_w), the second the bias
// payload (<name>_b). No-op for layers without blobs.
func (b *graphBuilder) extractBinary(layer *protos.LayerParameter, layerName string) {
	if len(layer.Blobs) == 0 {
		return
	}
	klog.V(1).Infof("extracting binaries from %s", layerName)
	b.graph.AddBinary(layerName+"_w", floatsToBytes(layer.Blobs[0].Data))
	if len(layer.Blobs) > 1 {
		b.graph.AddBinary(layerName+"_b", floatsToBytes(layer.Blobs[1].Data))
	}
}

// floatsToBytes packs a float payload as a flat little-endian float32 array,
// with no header or shape metadata.
func floatsToBytes(values []float32) []byte {
	buf := make([]byte, 0, len(values)*4)
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}
