package domain

import "math"

// Vector is a dense feature vector laid out by a FeatureManifest.
type Vector []float64

// Dot returns the inner product. Vectors of different length compare over the shorter prefix.
func (v Vector) Dot(o Vector) float64 {
	n := min(len(v), len(o))
	var sum float64
	for i := 0; i < n; i++ {
		sum += v[i] * o[i]
	}
	return sum
}

// Norm returns the L2 norm.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// IsZero reports whether the vector has zero norm.
func (v Vector) IsZero() bool {
	return v.Norm() == 0
}

// Normalized returns an L2-normalized copy. A zero vector stays zero.
func (v Vector) Normalized() Vector {
	out := make(Vector, len(v))
	n := v.Norm()
	if n == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

// Cosine returns the cosine similarity, or 0 when either side has zero norm.
func (v Vector) Cosine(o Vector) float64 {
	na, nb := v.Norm(), o.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	if v.equal(o) {
		return 1
	}
	c := v.Dot(o) / (na * nb)
	return math.Max(-1, math.Min(1, c))
}

func (v Vector) equal(o Vector) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}
	return true
}

// Euclidean returns the L2 distance between v and o.
func (v Vector) Euclidean(o Vector) float64 {
	n := max(len(v), len(o))
	var sum float64
	for i := 0; i < n; i++ {
		var a, b float64
		if i < len(v) {
			a = v[i]
		}
		if i < len(o) {
			b = o[i]
		}
		d := a - b
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Subset returns the values at the given positions.
func (v Vector) Subset(idx []int) Vector {
	out := make(Vector, len(idx))
	for i, p := range idx {
		if p >= 0 && p < len(v) {
			out[i] = v[p]
		}
	}
	return out
}

// Float32 converts to single precision for on-disk storage.
func (v Vector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// FromFloat32 widens a stored vector.
func FromFloat32(f []float32) Vector {
	out := make(Vector, len(f))
	for i, x := range f {
		out[i] = float64(x)
	}
	return out
}
