package nnir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestGraph() *Graph {
	g := NewGraph("testnet")
	g.AddInput(NewTensor("data", []int{1, 3, 8, 8}))
	g.AddOutput(NewTensor("relu1", []int{1, 8, 8, 8}))
	g.AddVariable(NewTensor("conv1_w", []int{8, 3, 3, 3}))
	g.AddBinary("conv1_w", make([]byte, 8*3*3*3*4))

	convAttrs := NewAttrs()
	convAttrs.Set("strides", []int{1, 1})
	convAttrs.Set("kernel_shape", []int{3, 3})
	g.AddNode(&Node{
		Type:    "conv",
		Inputs:  []string{"data", "conv1_w"},
		Outputs: []string{"conv1"},
		Attrs:   convAttrs,
	})
	g.AddNode(&Node{
		Type:    "relu",
		Inputs:  []string{"conv1"},
		Outputs: []string{"relu1"},
		Attrs:   NewAttrs(),
	})
	return g
}

func TestUpdateLocals(t *testing.T) {
	g := buildTestGraph()
	g.UpdateLocals()

	// conv1 is produced and consumed internally; data/relu1/conv1_w are
	// declared and must not be classified as locals.
	assert.Equal(t, []string{"conv1"}, g.Locals())

	// Idempotent.
	g.UpdateLocals()
	assert.Equal(t, []string{"conv1"}, g.Locals())
}

func TestAddBinaryOrderAndOverwrite(t *testing.T) {
	g := NewGraph("")
	g.AddBinary("b_w", []byte{1})
	g.AddBinary("a_w", []byte{2})
	g.AddBinary("b_w", []byte{3, 4})

	assert.Equal(t, []string{"b_w", "a_w"}, g.BinaryNames())
	payload, ok := g.Binary("b_w")
	require.True(t, ok)
	assert.Equal(t, []byte{3, 4}, payload)

	_, ok = g.Binary("missing")
	assert.False(t, ok)
}

func TestReplaceLastNode(t *testing.T) {
	g := NewGraph("")
	g.AddNode(&Node{Type: "conv", Attrs: NewAttrs()})
	g.AddNode(&Node{Type: "batch_norm", Attrs: NewAttrs()})

	fused := &Node{Type: "batch_norm", Outputs: []string{"scale1"}, Attrs: NewAttrs()}
	g.ReplaceLastNode(fused)
	require.Len(t, g.Nodes(), 2)
	assert.Same(t, fused, g.Nodes()[1])

	empty := NewGraph("")
	empty.ReplaceLastNode(fused)
	require.Len(t, empty.Nodes(), 1)
}

func TestToFileNodeWithoutAttrs(t *testing.T) {
	g := NewGraph("")
	g.AddInput(NewTensor("a", []int{1}))
	g.AddOutput(NewTensor("b", []int{1}))
	g.AddNode(&Node{Type: "relu", Inputs: []string{"a"}, Outputs: []string{"b"}})
	g.UpdateLocals()

	dir := t.TempDir()
	require.NoError(t, g.ToFile(dir))
	contents, err := os.ReadFile(filepath.Join(dir, "graph.nnir"))
	require.NoError(t, err)
	assert.Contains(t, string(contents), "node relu a b\n")
}

func TestToFile(t *testing.T) {
	g := buildTestGraph()
	g.UpdateLocals()

	dir := t.TempDir()
	require.NoError(t, g.ToFile(dir))

	contents, err := os.ReadFile(filepath.Join(dir, "graph.nnir"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
	assert.Equal(t, []string{
		"#nnir graph",
		"name testnet",
		"input data F032 1,3,8,8",
		"output relu1 F032 1,8,8,8",
		"variable conv1_w F032 8,3,3,3",
		"local conv1",
		"node conv data,conv1_w conv1 strides=1,1 kernel_shape=3,3",
		"node relu conv1 relu1",
	}, lines)

	payload, err := os.ReadFile(filepath.Join(dir, "binary", "conv1_w.f32"))
	require.NoError(t, err)
	assert.Len(t, payload, 8*3*3*3*4)
}
