package caffe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// serializeTestNet hand-encodes a two-layer NetParameter the way a
// .caffemodel file carries it.
func serializeTestNet() []byte {
	appendStr := func(dst []byte, num protowire.Number, s string) []byte {
		dst = protowire.AppendTag(dst, num, protowire.BytesType)
		return protowire.AppendString(dst, s)
	}
	appendMsg := func(dst []byte, num protowire.Number, body []byte) []byte {
		dst = protowire.AppendTag(dst, num, protowire.BytesType)
		return protowire.AppendBytes(dst, body)
	}

	var conv []byte
	conv = protowire.AppendTag(conv, 1, protowire.VarintType) // num_output
	conv = protowire.AppendVarint(conv, 8)
	conv = protowire.AppendTag(conv, 4, protowire.VarintType) // kernel_size
	conv = protowire.AppendVarint(conv, 1)

	var convLayer []byte
	convLayer = appendStr(convLayer, 1, "conv1")
	convLayer = appendStr(convLayer, 2, "Convolution")
	convLayer = appendStr(convLayer, 3, "data")
	convLayer = appendStr(convLayer, 4, "conv1")
	convLayer = appendMsg(convLayer, 106, conv)

	var reluLayer []byte
	reluLayer = appendStr(reluLayer, 1, "relu1")
	reluLayer = appendStr(reluLayer, 2, "ReLU")
	reluLayer = appendStr(reluLayer, 3, "conv1")
	reluLayer = appendStr(reluLayer, 4, "relu1")

	var net []byte
	net = appendStr(net, 1, "twolayers")
	net = appendStr(net, 3, "data")
	net = appendMsg(net, 100, convLayer)
	net = appendMsg(net, 100, reluLayer)
	return net
}

func TestParse(t *testing.T) {
	m := must.M1(Parse(serializeTestNet()))
	assert.Equal(t, "twolayers", m.Proto.Name)
	require.Len(t, m.Proto.Layer, 2)
	assert.Equal(t, "Convolution", m.Proto.Layer[0].Type)
	assert.Equal(t, uint32(8), m.Proto.Layer[0].ConvolutionParam.GetNumOutput())

	_, err := Parse([]byte{0xFF, 0xFF})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Caffe model proto")
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twolayers.caffemodel")
	require.NoError(t, os.WriteFile(path, serializeTestNet(), 0644))

	m := must.M1(ReadFile(path))
	assert.Equal(t, "twolayers", m.Proto.Name)

	// The parsed model converts end to end.
	graph := must.M1(m.ConvertToNNIR(Shape{1, 3, 8, 8}))
	assert.Len(t, graph.Nodes(), 2)

	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.caffemodel"))
	require.Error(t, err)
}

func TestModelString(t *testing.T) {
	m := must.M1(Parse(serializeTestNet()))
	s := m.String()
	assert.Contains(t, s, "Name:\ttwolayers")
	assert.Contains(t, s, "# layers:\t2")
	assert.Contains(t, s, "Convolution x1")
	assert.Contains(t, s, "ReLU x1")
}
