// Package caffe converts trained Caffe models to the normalized NNIR graph.
//
//   - Parse: converts a serialized Caffe NetParameter to a Model.
//   - ReadFile: reads a .caffemodel file and calls Parse. It returns a Model.
//   - Model.ConvertToNNIR: runs the conversion pass, producing a *nnir.Graph
//     ready to be persisted with Graph.ToFile.
//
// The conversion is a single forward pass over the layer list: it
// canonicalizes names, infers output and parameter shapes per operator,
// eliminates inference no-ops (Dropout, Split), fuses Scale layers into a
// preceding BatchNorm, and resolves the resulting name aliases into a linear
// node sequence.
package caffe

import (
	"os"

	"github.com/gonnir/caffe2nnir/internal/protos"
	"github.com/pkg/errors"
)

// Model represents a parsed Caffe model.
type Model struct {
	Proto protos.NetParameter
}

// Parse parses a serialized NetParameter into a Model.
func Parse(contents []byte) (*Model, error) {
	m := &Model{}
	if err := protos.Unmarshal(contents, &m.Proto); err != nil {
		return nil, errors.Wrap(err, "failed to parse Caffe model proto")
	}
	return m, nil
}

// ReadFile parses a Caffe model file into a Model.
func ReadFile(filePath string) (*Model, error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read Caffe model file in %s", filePath)
	}
	return Parse(contents)
}
