package euxfel

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArrayValidation(t *testing.T) {
	_, err := NewArray(42, 1)
	assert.Error(t, err, "non-slice data")

	_, err = NewArray([]float64{1, 2, 3}, 2, 2)
	assert.Error(t, err, "length mismatch")

	_, err = NewArray([]float64{1}, -1)
	assert.Error(t, err, "negative dimension")

	scalar, err := NewArray([]float64{7})
	require.NoError(t, err)
	assert.Equal(t, 0, scalar.Rank())
	v, ok := scalar.Scalar()
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestArrayRowAndSliceRows(t *testing.T) {
	a := mustArray(t, []int32{1, 2, 3, 4, 5, 6}, 3, 2)

	row, err := a.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, row.Shape())
	assert.Equal(t, []int32{3, 4}, row.Data())

	_, err = a.Row(3)
	assert.ErrorIs(t, err, ErrOutOfRange)

	s, err := a.SliceRows(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, s.Shape())
	assert.Equal(t, []int32{3, 4, 5, 6}, s.Data())

	_, err = a.SliceRows(2, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = a.SliceRows(0, 3)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// Slicing a 1-D array down to one row yields a scalar.
	flat := mustArray(t, []float64{9, 8}, 2)
	row, err = flat.Row(0)
	require.NoError(t, err)
	assert.Equal(t, 0, row.Rank())
}

func TestArrayMoveAxis(t *testing.T) {
	// shape (2, 3): [[1 2 3] [4 5 6]]
	a := mustArray(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	moved, err := a.MoveAxis(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, moved.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, moved.Data())

	back, err := moved.MoveAxis(1, 0)
	require.NoError(t, err)
	assert.True(t, back.Equal(a))

	neg, err := a.MoveAxis(0, -1)
	require.NoError(t, err)
	assert.True(t, neg.Equal(moved))

	same, err := a.MoveAxis(0, 0)
	require.NoError(t, err)
	assert.True(t, same.Equal(a))

	_, err = a.MoveAxis(0, 2)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = a.MoveAxis(-3, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestArrayMoveAxisRank3(t *testing.T) {
	data := make([]int64, 24)
	for i := range data {
		data[i] = int64(i)
	}
	a := mustArray(t, data, 2, 3, 4)

	moved, err := a.MoveAxis(0, 2)
	require.NoError(t, err)
	require.Equal(t, []int{3, 4, 2}, moved.Shape())

	// moved[j][k][i] == a[i][j][k]
	md := moved.Data().([]int64)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 4; k++ {
				assert.Equal(t, data[i*12+j*4+k], md[j*8+k*2+i])
			}
		}
	}
}

func TestArrayIsEmpty(t *testing.T) {
	assert.True(t, mustArray(t, []float64{}, 0, 3).IsEmpty())
	assert.False(t, mustArray(t, []float64{1}, 1, 1).IsEmpty())
	assert.False(t, mustArray(t, []float64{1}).IsEmpty(), "a scalar is never empty")
}

func TestArrayConversions(t *testing.T) {
	u, err := mustArray(t, []uint32{1, 2}, 2).Uint64s()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, u)

	u, err = mustArray(t, []int64{3}, 1).Uint64s()
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, u)

	_, err = mustArray(t, []float64{1}, 1).Uint64s()
	assert.Error(t, err)

	s, err := mustArray(t, []string{"a", "b"}, 2).Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s)

	_, err = mustArray(t, []uint64{1}, 1).Strings()
	assert.Error(t, err)
}

func TestNewFullPlaceholders(t *testing.T) {
	f := newFull(reflect.TypeOf(float32(0)), []int{3}, nil)
	for _, v := range f.Data().([]float32) {
		assert.True(t, math.IsNaN(float64(v)))
	}

	i16 := newFull(reflect.TypeOf(int16(0)), []int{2}, nil)
	assert.Equal(t, []int16{math.MaxInt16, math.MaxInt16}, i16.Data())

	sentinel := int64(-1)
	i32 := newFull(reflect.TypeOf(int32(0)), []int{2}, &sentinel)
	assert.Equal(t, []int32{-1, -1}, i32.Data())

	u64 := newFull(reflect.TypeOf(uint64(0)), []int{1}, nil)
	assert.Equal(t, []uint64{math.MaxUint64}, u64.Data())
}
