// Package nnir models the normalized IR graph emitted by the converters:
// a linear node list plus declared input/output tensors, named parameter
// tensors (variables) and their raw binary payloads.
//
// The graph is write-only from the converter's point of view: nodes,
// tensors and binaries are appended during a conversion pass, UpdateLocals
// finalizes the tensor classification, and ToFile persists everything.
package nnir

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Tensor is a named tensor declaration: graph input, graph output, or a
// parameter (variable). Element type is fixed to 32-bit floats ("F032")
// for every tensor this core produces.
type Tensor struct {
	Name  string
	DType string
	Dims  []int
}

// NewTensor declares an F032 tensor with the given dimensions.
func NewTensor(name string, dims []int) Tensor {
	return Tensor{Name: name, DType: "F032", Dims: dims}
}

// Node is one operator in the IR graph.
type Node struct {
	Type    string
	Inputs  []string
	Outputs []string
	Attrs   *Attrs
}

// Graph accumulates the IR during a conversion pass and owns the result.
type Graph struct {
	Name string

	inputs    []Tensor
	outputs   []Tensor
	variables []Tensor
	nodes     []*Node

	binaryNames []string
	binaries    map[string][]byte

	// locals are intermediate tensor names, classified by UpdateLocals.
	locals []string
}

// NewGraph returns an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{Name: name, binaries: make(map[string][]byte)}
}

// AddInput declares a network input tensor.
func (g *Graph) AddInput(t Tensor) {
	g.inputs = append(g.inputs, t)
}

// AddOutput declares a network output tensor.
func (g *Graph) AddOutput(t Tensor) {
	g.outputs = append(g.outputs, t)
}

// AddVariable declares a named parameter tensor.
func (g *Graph) AddVariable(t Tensor) {
	g.variables = append(g.variables, t)
}

// AddBinary registers the raw payload for a named variable. Registering the
// same name again overwrites the payload.
func (g *Graph) AddBinary(name string, data []byte) {
	if _, exists := g.binaries[name]; !exists {
		g.binaryNames = append(g.binaryNames, name)
	}
	g.binaries[name] = data
}

// AddNode appends an operator node.
func (g *Graph) AddNode(node *Node) {
	g.nodes = append(g.nodes, node)
}

// ReplaceLastNode swaps the most recently appended node. Used when a fusion
// retroactively absorbs a following layer into an already-emitted node.
func (g *Graph) ReplaceLastNode(node *Node) {
	if len(g.nodes) == 0 {
		g.nodes = []*Node{node}
		return
	}
	g.nodes[len(g.nodes)-1] = node
}

// Inputs returns the declared network input tensors.
func (g *Graph) Inputs() []Tensor { return g.inputs }

// Outputs returns the declared network output tensors.
func (g *Graph) Outputs() []Tensor { return g.outputs }

// Variables returns the declared parameter tensors.
func (g *Graph) Variables() []Tensor { return g.variables }

// Nodes returns the node list in emission order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Binary returns the registered payload for name.
func (g *Graph) Binary(name string) ([]byte, bool) {
	b, ok := g.binaries[name]
	return b, ok
}

// BinaryNames returns the registered binary names in registration order.
func (g *Graph) BinaryNames() []string { return g.binaryNames }

// Locals returns the intermediate tensor names found by UpdateLocals.
func (g *Graph) Locals() []string { return g.locals }

// UpdateLocals classifies every name referenced by a node: names that are
// neither declared inputs/outputs nor variables are intermediate (local)
// tensors. Call it once, after the last node was added.
func (g *Graph) UpdateLocals() {
	declared := make(map[string]bool)
	for _, t := range g.inputs {
		declared[t.Name] = true
	}
	for _, t := range g.outputs {
		declared[t.Name] = true
	}
	for _, t := range g.variables {
		declared[t.Name] = true
	}
	g.locals = g.locals[:0]
	seen := make(map[string]bool)
	for _, node := range g.nodes {
		for _, name := range node.Outputs {
			if declared[name] || seen[name] {
				continue
			}
			seen[name] = true
			g.locals = append(g.locals, name)
		}
	}
}

// ToFile persists the graph under dir: a text description in graph.nnir and
// one raw file per registered binary under binary/<name>.f32.
func (g *Graph) ToFile(dir string) error {
	binDir := filepath.Join(dir, "binary")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return errors.Wrapf(err, "creating output folder %s", dir)
	}

	var buf bytes.Buffer
	w := func(format string, args ...any) {
		fmt.Fprintf(&buf, format, args...)
	}
	w("#nnir graph\n")
	if g.Name != "" {
		w("name %s\n", g.Name)
	}
	for _, t := range g.inputs {
		w("input %s\n", tensorLine(t))
	}
	for _, t := range g.outputs {
		w("output %s\n", tensorLine(t))
	}
	for _, t := range g.variables {
		w("variable %s\n", tensorLine(t))
	}
	for _, name := range g.locals {
		w("local %s\n", name)
	}
	for _, node := range g.nodes {
		w("node %s %s %s", node.Type, strings.Join(node.Inputs, ","), strings.Join(node.Outputs, ","))
		for _, attrName := range node.Attrs.Names() {
			v, _ := node.Attrs.Get(attrName)
			w(" %s=%s", attrName, v)
		}
		w("\n")
	}
	graphFile := filepath.Join(dir, "graph.nnir")
	if err := os.WriteFile(graphFile, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", graphFile)
	}

	for _, name := range g.binaryNames {
		path := filepath.Join(binDir, name+".f32")
		if err := os.WriteFile(path, g.binaries[name], 0644); err != nil {
			return errors.Wrapf(err, "writing binary %s", path)
		}
	}
	return nil
}

func tensorLine(t Tensor) string {
	dims := make([]string, len(t.Dims))
	for i, d := range t.Dims {
		dims[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("%s %s %s", t.Name, t.DType, strings.Join(dims, ","))
}
