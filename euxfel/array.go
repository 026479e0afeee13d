package euxfel

import (
	"fmt"
	"math"
	"reflect"
)

// Array is a dense n-dimensional array: a shape plus a flat, row-major typed
// slice. A rank-0 Array holds a single scalar. Values extracted from a
// container and values produced by stacking are both Arrays.
//
// Row and SliceRows return views sharing the backing slice; MoveAxis returns
// a fresh copy.
type Array struct {
	shape []int
	data  interface{}
}

// NewArray wraps a flat slice as an Array with the given shape. The slice
// length must equal the product of the dimensions (one, for a scalar with no
// dimensions).
func NewArray(data interface{}, shape ...int) (*Array, error) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("array data must be a slice, got %T", data)
	}
	size := 1
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("negative dimension %d in shape %v", dim, shape)
		}
		size *= dim
	}
	if v.Len() != size {
		return nil, fmt.Errorf("shape %v needs %d elements, slice has %d", shape, size, v.Len())
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Array{shape: s, data: data}, nil
}

// Shape returns a copy of the array's dimensions. A scalar has no dimensions.
func (a *Array) Shape() []int {
	s := make([]int, len(a.shape))
	copy(s, a.shape)
	return s
}

// Rank returns the number of dimensions.
func (a *Array) Rank() int {
	return len(a.shape)
}

// Size returns the total number of elements.
func (a *Array) Size() int {
	size := 1
	for _, dim := range a.shape {
		size *= dim
	}
	return size
}

// IsEmpty reports whether any dimension is zero. A scalar is never empty.
func (a *Array) IsEmpty() bool {
	for _, dim := range a.shape {
		if dim == 0 {
			return true
		}
	}
	return false
}

// Data returns the flat backing slice ([]float32, []uint64, ...).
func (a *Array) Data() interface{} {
	return a.data
}

// Dtype returns the element type.
func (a *Array) Dtype() reflect.Type {
	return reflect.TypeOf(a.data).Elem()
}

// Scalar returns the value of a rank-0 array. ok is false for rank >= 1.
func (a *Array) Scalar() (interface{}, bool) {
	if len(a.shape) != 0 {
		return nil, false
	}
	return reflect.ValueOf(a.data).Index(0).Interface(), true
}

// Row returns the rank-reduced sub-array at position i along the leading
// axis. For a 1-D array this yields a scalar.
func (a *Array) Row(i int) (*Array, error) {
	if len(a.shape) == 0 {
		return nil, fmt.Errorf("cannot index a scalar: %w", ErrOutOfRange)
	}
	if i < 0 || i >= a.shape[0] {
		return nil, fmt.Errorf("row %d of %d: %w", i, a.shape[0], ErrOutOfRange)
	}
	stride := a.Size() / a.shape[0]
	v := reflect.ValueOf(a.data)
	return &Array{
		shape: a.shape[1:],
		data:  v.Slice(i*stride, (i+1)*stride).Interface(),
	}, nil
}

// SliceRows returns rows [first, last] (inclusive) along the leading axis.
func (a *Array) SliceRows(first, last int) (*Array, error) {
	if len(a.shape) == 0 {
		return nil, fmt.Errorf("cannot slice a scalar: %w", ErrOutOfRange)
	}
	if first < 0 || last < first || last >= a.shape[0] {
		return nil, fmt.Errorf("rows [%d, %d] of %d: %w", first, last, a.shape[0], ErrOutOfRange)
	}
	stride := a.Size() / a.shape[0]
	v := reflect.ValueOf(a.data)
	shape := make([]int, len(a.shape))
	copy(shape, a.shape)
	shape[0] = last - first + 1
	return &Array{
		shape: shape,
		data:  v.Slice(first*stride, (last+1)*stride).Interface(),
	}, nil
}

// MoveAxis returns a copy with axis src moved to position dst, other axes
// keeping their relative order. Negative positions count from the end.
func (a *Array) MoveAxis(src, dst int) (*Array, error) {
	r := len(a.shape)
	src, err := normalizeAxis(src, r)
	if err != nil {
		return nil, err
	}
	dst, err = normalizeAxis(dst, r)
	if err != nil {
		return nil, err
	}
	if src == dst {
		return a.clone(), nil
	}
	perm := make([]int, 0, r)
	for ax := 0; ax < r; ax++ {
		if ax != src {
			perm = append(perm, ax)
		}
	}
	perm = append(perm[:dst], append([]int{src}, perm[dst:]...)...)
	return a.transpose(perm), nil
}

// Equal reports whether two arrays have the same shape, dtype and elements.
// NaN elements compare unequal, as usual.
func (a *Array) Equal(b *Array) bool {
	if b == nil || len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return reflect.DeepEqual(a.data, b.data)
}

func (a *Array) clone() *Array {
	v := reflect.ValueOf(a.data)
	out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	reflect.Copy(out, v)
	shape := make([]int, len(a.shape))
	copy(shape, a.shape)
	return &Array{shape: shape, data: out.Interface()}
}

func normalizeAxis(ax, rank int) (int, error) {
	orig := ax
	if ax < 0 {
		ax += rank
	}
	if ax < 0 || ax >= rank {
		return 0, fmt.Errorf("axis %d for rank %d: %w", orig, rank, ErrOutOfRange)
	}
	return ax, nil
}

// transpose rearranges axes so that output axis i is input axis perm[i].
// Trailing axes that keep their position are copied as contiguous chunks.
func (a *Array) transpose(perm []int) *Array {
	r := len(a.shape)
	outShape := make([]int, r)
	for i, p := range perm {
		outShape[i] = a.shape[p]
	}
	src := reflect.ValueOf(a.data)
	out := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
	result := &Array{shape: outShape, data: out.Interface()}
	if src.Len() == 0 {
		return result
	}

	strides := make([]int, r)
	s := 1
	for i := r - 1; i >= 0; i-- {
		strides[i] = s
		s *= a.shape[i]
	}

	fixed := r
	for fixed > 0 && perm[fixed-1] == fixed-1 {
		fixed--
	}
	chunk := 1
	for i := fixed; i < r; i++ {
		chunk *= a.shape[i]
	}

	idx := make([]int, fixed)
	dstOff := 0
	for {
		srcOff := 0
		for k := 0; k < fixed; k++ {
			srcOff += idx[k] * strides[perm[k]]
		}
		reflect.Copy(out.Slice(dstOff, dstOff+chunk), src.Slice(srcOff, srcOff+chunk))
		dstOff += chunk

		k := fixed - 1
		for ; k >= 0; k-- {
			idx[k]++
			if idx[k] < outShape[k] {
				break
			}
			idx[k] = 0
		}
		if k < 0 {
			break
		}
	}
	return result
}

// newZeros allocates a zero-filled array of the given element type and shape.
func newZeros(elem reflect.Type, shape []int) *Array {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	data := reflect.MakeSlice(reflect.SliceOf(elem), size, size)
	s := make([]int, len(shape))
	copy(s, shape)
	return &Array{shape: s, data: data.Interface()}
}

// newFull allocates an array filled with the no-data placeholder: NaN for
// floating element types, noData (or the type's maximum value when noData is
// nil) for integer types, the zero value otherwise.
func newFull(elem reflect.Type, shape []int, noData *int64) *Array {
	a := newZeros(elem, shape)
	v := reflect.ValueOf(a.data)
	if v.Len() == 0 {
		return a
	}
	setPlaceholder(v.Index(0), noData)
	// Doubling copy to fill the rest from the seeded prefix.
	for filled := 1; filled < v.Len(); filled *= 2 {
		end := 2 * filled
		if end > v.Len() {
			end = v.Len()
		}
		reflect.Copy(v.Slice(filled, end), v.Slice(0, filled))
	}
	return a
}

func setPlaceholder(e reflect.Value, noData *int64) {
	switch e.Kind() {
	case reflect.Float32, reflect.Float64:
		e.SetFloat(math.NaN())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if noData != nil {
			e.SetInt(*noData)
		} else if bits := e.Type().Bits(); bits == 64 {
			e.SetInt(math.MaxInt64)
		} else {
			e.SetInt(int64(1)<<(bits-1) - 1)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if noData != nil {
			e.SetUint(uint64(*noData))
		} else if bits := e.Type().Bits(); bits == 64 {
			e.SetUint(math.MaxUint64)
		} else {
			e.SetUint(uint64(1)<<bits - 1)
		}
	}
}

// setRow copies src into row i of dst's leading axis. Shapes and dtypes must
// already agree; the caller validates.
func setRow(dst *Array, i int, src *Array) {
	stride := dst.Size() / dst.shape[0]
	dv := reflect.ValueOf(dst.data)
	reflect.Copy(dv.Slice(i*stride, (i+1)*stride), reflect.ValueOf(src.data))
}

// Uint64s converts a 1-D integer array to []uint64. Index tables and train
// ID lists are stored with varying widths depending on the file writer.
func (a *Array) Uint64s() ([]uint64, error) {
	switch d := a.data.(type) {
	case []uint64:
		return d, nil
	case []uint32:
		out := make([]uint64, len(d))
		for i, x := range d {
			out[i] = uint64(x)
		}
		return out, nil
	case []uint16:
		out := make([]uint64, len(d))
		for i, x := range d {
			out[i] = uint64(x)
		}
		return out, nil
	case []uint8:
		out := make([]uint64, len(d))
		for i, x := range d {
			out[i] = uint64(x)
		}
		return out, nil
	case []int64:
		out := make([]uint64, len(d))
		for i, x := range d {
			out[i] = uint64(x)
		}
		return out, nil
	case []int32:
		out := make([]uint64, len(d))
		for i, x := range d {
			out[i] = uint64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to []uint64", a.data)
	}
}

// Strings returns the backing slice of a string array.
func (a *Array) Strings() ([]string, error) {
	d, ok := a.data.([]string)
	if !ok {
		return nil, fmt.Errorf("cannot convert %T to []string", a.data)
	}
	return d, nil
}
