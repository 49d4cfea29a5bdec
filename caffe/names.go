package caffe

import "strings"

// IRName converts a Caffe blob or layer name to its IR form by replacing
// every "/" and "-" with "_". It is idempotent, and it is applied to every
// name before it is stored or compared anywhere in the conversion pass.
func IRName(caffeName string) (irName string) {
	return strings.ReplaceAll(strings.ReplaceAll(caffeName, "/", "_"), "-", "_")
}
