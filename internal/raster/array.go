// Package raster reads and writes multi-dataset raster containers.
package raster

import (
	"fmt"
	"math"
)

// Array is a dense row-major float32 array.
type Array struct {
	Shape []int
	Data  []float32
}

// NewArray allocates a zero-filled array with the given shape.
func NewArray(shape ...int) Array {
	s := make([]int, len(shape))
	copy(s, shape)
	return Array{Shape: s, Data: make([]float32, numElements(s))}
}

// Filled allocates an array with every element set to v.
func Filled(v float32, shape ...int) Array {
	a := NewArray(shape...)
	for i := range a.Data {
		a.Data[i] = v
	}
	return a
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Rank returns the number of dimensions.
func (a Array) Rank() int { return len(a.Shape) }

// Validate checks that the data length matches the shape.
func (a Array) Validate() error {
	for _, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("negative dimension in shape %v", a.Shape)
		}
	}
	if n := numElements(a.Shape); n != len(a.Data) {
		return fmt.Errorf("shape %v needs %d elements, have %d", a.Shape, n, len(a.Data))
	}
	return nil
}

// At2 returns element (r, c) of a 2-D array.
func (a Array) At2(r, c int) float32 {
	return a.Data[r*a.Shape[1]+c]
}

// MoveAxisToLast turns a (n, rows, cols) stack into (rows, cols, n).
// Arrays of any other rank are returned unchanged.
func (a Array) MoveAxisToLast() Array {
	if a.Rank() != 3 {
		return a
	}
	n, rows, cols := a.Shape[0], a.Shape[1], a.Shape[2]
	out := NewArray(rows, cols, n)
	plane := rows * cols
	for k := 0; k < n; k++ {
		src := a.Data[k*plane : (k+1)*plane]
		for i, v := range src {
			out.Data[i*n+k] = v
		}
	}
	return out
}

// MoveAxisToFirst turns a (rows, cols, n) array into (n, rows, cols).
// It is the inverse of MoveAxisToLast.
func (a Array) MoveAxisToFirst() Array {
	if a.Rank() != 3 {
		return a
	}
	rows, cols, n := a.Shape[0], a.Shape[1], a.Shape[2]
	out := NewArray(n, rows, cols)
	plane := rows * cols
	for i := 0; i < plane; i++ {
		for k := 0; k < n; k++ {
			out.Data[k*plane+i] = a.Data[i*n+k]
		}
	}
	return out
}

// Layer returns plane k of a (n, rows, cols) stack, or the array itself when
// it is 2-D.
func (a Array) Layer(k int) Array {
	if a.Rank() != 3 {
		return a
	}
	rows, cols := a.Shape[1], a.Shape[2]
	plane := rows * cols
	return Array{Shape: []int{rows, cols}, Data: a.Data[k*plane : (k+1)*plane]}
}

// Finite returns the finite values of the array.
func (a Array) Finite() []float32 {
	out := make([]float32, 0, len(a.Data))
	for _, v := range a.Data {
		if !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0) {
			out = append(out, v)
		}
	}
	return out
}
