package caffe

import (
	"bytes"
	"fmt"
	"slices"
)

// String implements fmt.Stringer, and pretty prints model information.
func (m *Model) String() string {
	var buf bytes.Buffer
	w := func(format string, args ...any) {
		if len(args) == 0 {
			buf.WriteString(format)
		} else {
			buf.WriteString(fmt.Sprintf(format, args...))
		}
	}
	w("Caffe Model:\n")
	if m.Proto.Name != "" {
		w("\tName:\t%s\n", m.Proto.Name)
	}
	if len(m.Proto.Input) > 0 {
		w("\tDeclared inputs:\t%v\n", m.Proto.Input)
	}
	w("\t# layers:\t%d\n", len(m.Proto.Layer))

	layerTypes := make(map[string]int)
	blobs := 0
	for _, layer := range m.Proto.Layer {
		layerTypes[layer.Type]++
		blobs += len(layer.Blobs)
	}
	w("\tLayer types:\t[")
	sortedLayerTypes := make([]string, 0, len(layerTypes))
	for layerType := range layerTypes {
		sortedLayerTypes = append(sortedLayerTypes, layerType)
	}
	slices.Sort(sortedLayerTypes)
	for ii, layerType := range sortedLayerTypes {
		if ii > 0 {
			w(", ")
		}
		w("%s x%d", layerType, layerTypes[layerType])
	}
	w("]\n")
	if blobs > 0 {
		w("\t# trained blobs:\t%d\n", blobs)
	}
	return buf.String()
}
