package nnir

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
)

// AttrKind enumerates the value kinds an attribute may carry.
type AttrKind int

const (
	AttrInt AttrKind = iota
	AttrFloat
	AttrString
	AttrInts
	AttrFloats
)

// AttrValue is a tagged union over the five attribute kinds. Consumers must
// match on Kind before reading the typed accessor.
type AttrValue struct {
	kind   AttrKind
	i      int
	f      float32
	s      string
	ints   []int
	floats []float32
}

func (v AttrValue) Kind() AttrKind { return v.kind }

func (v AttrValue) Int() int {
	v.assertKind(AttrInt)
	return v.i
}

func (v AttrValue) Float() float32 {
	v.assertKind(AttrFloat)
	return v.f
}

func (v AttrValue) Str() string {
	v.assertKind(AttrString)
	return v.s
}

func (v AttrValue) Ints() []int {
	v.assertKind(AttrInts)
	return v.ints
}

func (v AttrValue) Floats() []float32 {
	v.assertKind(AttrFloats)
	return v.floats
}

func (v AttrValue) assertKind(kind AttrKind) {
	if v.kind != kind {
		exceptions.Panicf("attribute value holds kind %d, accessed as kind %d", v.kind, kind)
	}
}

// String implements fmt.Stringer, in the form used by Graph.ToFile.
func (v AttrValue) String() string {
	switch v.kind {
	case AttrInt:
		return fmt.Sprintf("%d", v.i)
	case AttrFloat:
		return fmt.Sprintf("%g", v.f)
	case AttrString:
		return v.s
	case AttrInts:
		parts := make([]string, len(v.ints))
		for i, x := range v.ints {
			parts[i] = fmt.Sprintf("%d", x)
		}
		return strings.Join(parts, ",")
	case AttrFloats:
		parts := make([]string, len(v.floats))
		for i, x := range v.floats {
			parts[i] = fmt.Sprintf("%g", x)
		}
		return strings.Join(parts, ",")
	}
	return "?"
}

// Attrs is an insertion-ordered attribute mapping.
type Attrs struct {
	names  []string
	values map[string]AttrValue
}

func NewAttrs() *Attrs {
	return &Attrs{values: make(map[string]AttrValue)}
}

// Set stores an attribute. Recognized value types are int, float32, string,
// []int, []float32, and []any whose elements are all int or all float32.
// Anything else panics (with an exception) as an unsupported attribute type.
func (a *Attrs) Set(name string, value any) {
	var v AttrValue
	switch x := value.(type) {
	case int:
		v = AttrValue{kind: AttrInt, i: x}
	case float32:
		v = AttrValue{kind: AttrFloat, f: x}
	case string:
		v = AttrValue{kind: AttrString, s: x}
	case []int:
		v = AttrValue{kind: AttrInts, ints: x}
	case []float32:
		v = AttrValue{kind: AttrFloats, floats: x}
	case []any:
		v = listAttr(name, x)
	default:
		exceptions.Panicf("unsupported type %T of attribute %q", value, name)
	}
	if _, exists := a.values[name]; !exists {
		a.names = append(a.names, name)
	}
	a.values[name] = v
}

// listAttr converts an untyped list: the first element decides between an
// integer and a float list, and every element must agree.
func listAttr(name string, list []any) AttrValue {
	if len(list) == 0 {
		exceptions.Panicf("empty untyped list for attribute %q", name)
	}
	switch list[0].(type) {
	case int:
		ints := make([]int, len(list))
		for i, e := range list {
			x, ok := e.(int)
			if !ok {
				exceptions.Panicf("mixed-type list for attribute %q: element %d is %T", name, i, e)
			}
			ints[i] = x
		}
		return AttrValue{kind: AttrInts, ints: ints}
	case float32:
		floats := make([]float32, len(list))
		for i, e := range list {
			x, ok := e.(float32)
			if !ok {
				exceptions.Panicf("mixed-type list for attribute %q: element %d is %T", name, i, e)
			}
			floats[i] = x
		}
		return AttrValue{kind: AttrFloats, floats: floats}
	default:
		exceptions.Panicf("unsupported list attribute %q: element type %T", name, list[0])
	}
	return AttrValue{}
}

// Get returns the value for name.
func (a *Attrs) Get(name string) (AttrValue, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Ints returns the integer-list attribute name, or nil if absent.
func (a *Attrs) Ints(name string) []int {
	v, ok := a.values[name]
	if !ok {
		return nil
	}
	return v.Ints()
}

// Int returns the integer attribute name, or 0 if absent.
func (a *Attrs) Int(name string) int {
	v, ok := a.values[name]
	if !ok {
		return 0
	}
	return v.Int()
}

// Float returns the float attribute name, or 0 if absent.
func (a *Attrs) Float(name string) float32 {
	v, ok := a.values[name]
	if !ok {
		return 0
	}
	return v.Float()
}

// Names returns the attribute names in insertion order. Safe on a nil
// receiver, like Len, so nodes without attributes need no empty mapping.
func (a *Attrs) Names() []string {
	if a == nil {
		return nil
	}
	return a.names
}

func (a *Attrs) Len() int {
	if a == nil {
		return 0
	}
	return len(a.names)
}
