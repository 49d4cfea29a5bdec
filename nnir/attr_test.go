package nnir

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrsSetAndGet(t *testing.T) {
	a := NewAttrs()
	a.Set("group", 2)
	a.Set("epsilon", float32(1e-5))
	a.Set("mode", "ceil")
	a.Set("pads", []int{1, 1, 1, 1})
	a.Set("coeffs", []float32{0.5, 0.5})

	assert.Equal(t, 2, a.Int("group"))
	assert.Equal(t, float32(1e-5), a.Float("epsilon"))
	assert.Equal(t, []int{1, 1, 1, 1}, a.Ints("pads"))

	v, ok := a.Get("mode")
	require.True(t, ok)
	assert.Equal(t, AttrString, v.Kind())
	assert.Equal(t, "ceil", v.Str())

	v, ok = a.Get("coeffs")
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, 0.5}, v.Floats())

	_, ok = a.Get("absent")
	assert.False(t, ok)
	assert.Equal(t, 0, a.Int("absent"))
	assert.Nil(t, a.Ints("absent"))
}

func TestAttrsInsertionOrder(t *testing.T) {
	a := NewAttrs()
	a.Set("strides", []int{2, 2})
	a.Set("kernel_shape", []int{3, 3})
	a.Set("pads", []int{0, 0, 0, 0})
	assert.Equal(t, []string{"strides", "kernel_shape", "pads"}, a.Names())

	// Overwriting keeps the original position.
	a.Set("strides", []int{1, 1})
	assert.Equal(t, []string{"strides", "kernel_shape", "pads"}, a.Names())
	assert.Equal(t, []int{1, 1}, a.Ints("strides"))
	assert.Equal(t, 3, a.Len())
}

func TestAttrsUntypedList(t *testing.T) {
	a := NewAttrs()
	a.Set("dims", []any{7, 7})
	assert.Equal(t, []int{7, 7}, a.Ints("dims"))

	a.Set("scales", []any{float32(1), float32(2)})
	v, _ := a.Get("scales")
	assert.Equal(t, []float32{1, 2}, v.Floats())
}

func TestAttrsRejectsBadValues(t *testing.T) {
	a := NewAttrs()
	err := exceptions.TryCatch[error](func() { a.Set("x", int64(1)) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")

	err = exceptions.TryCatch[error](func() { a.Set("x", []any{1, float32(2)}) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mixed-type list")

	err = exceptions.TryCatch[error](func() { a.Set("x", []any{}) })
	require.Error(t, err)
}

func TestAttrValueKindMismatch(t *testing.T) {
	a := NewAttrs()
	a.Set("epsilon", float32(1e-5))
	err := exceptions.TryCatch[error](func() { a.Int("epsilon") })
	require.Error(t, err)
}

func TestAttrValueString(t *testing.T) {
	a := NewAttrs()
	a.Set("group", 2)
	a.Set("alpha", float32(0.25))
	a.Set("mode", "ceil")
	a.Set("pads", []int{3, 3, 3, 3})

	for name, want := range map[string]string{
		"group": "2",
		"alpha": "0.25",
		"mode":  "ceil",
		"pads":  "3,3,3,3",
	} {
		v, _ := a.Get(name)
		assert.Equal(t, want, v.String(), "attribute %s", name)
	}
}
