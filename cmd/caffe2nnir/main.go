// caffe2nnir converts a trained Caffe model to an NNIR graph folder.
//
// Usage:
//
//	caffe2nnir <model.caffemodel> <outputFolder> --input-dims n,c,h,w [-v 1]
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gonnir/caffe2nnir/caffe"
	"k8s.io/klog/v2"
)

var flagInputDims = flag.String("input-dims", "", "comma-separated network input dimensions, as n,c,h,w")

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <model.caffemodel> <outputFolder> --input-dims n,c,h,w [-v 1]\n", os.Args[0])
		flag.PrintDefaults()
	}
	modelPath, outputFolder, ok := parseArgs(flag.CommandLine, os.Args[1:])
	if !ok || *flagInputDims == "" {
		flag.Usage()
		os.Exit(1)
	}

	inputDims, err := parseInputDims(*flagInputDims)
	if err != nil {
		klog.Exitf("invalid --input-dims %q: %v", *flagInputDims, err)
	}

	if _, err := os.Stat(modelPath); err != nil {
		klog.Exitf("unable to open %s: %v", modelPath, err)
	}
	model, err := caffe.ReadFile(modelPath)
	if err != nil {
		klog.Exitf("reading %s: %v", modelPath, err)
	}
	klog.V(1).Info(model)

	graph, err := model.ConvertToNNIR(inputDims)
	if err != nil {
		klog.Exitf("converting %s: %v", modelPath, err)
	}
	if err := graph.ToFile(outputFolder); err != nil {
		klog.Exitf("writing NNIR graph to %s: %v", outputFolder, err)
	}
	fmt.Printf("OK: NNIR graph written to %s\n", outputFolder)
}

// parseArgs extracts the two positional arguments, accepting flags before or
// after them: flag parsing stops at the first non-flag argument, so the
// remainder past the positionals is parsed again.
func parseArgs(fs *flag.FlagSet, args []string) (modelPath, outputFolder string, ok bool) {
	if err := fs.Parse(args); err != nil {
		return "", "", false
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return "", "", false
	}
	modelPath, outputFolder = rest[0], rest[1]
	if err := fs.Parse(rest[2:]); err != nil {
		return "", "", false
	}
	return modelPath, outputFolder, fs.NArg() == 0
}

func parseInputDims(s string) (caffe.Shape, error) {
	var dims caffe.Shape
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return dims, fmt.Errorf("expected 4 dimensions, got %d", len(parts))
	}
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return dims, err
		}
		if v < 0 {
			return dims, fmt.Errorf("dimension %d is negative", i)
		}
		dims[i] = v
	}
	return dims, nil
}
