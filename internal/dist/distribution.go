// Package dist provides the randomized parameter distributions used to give
// every agent its own speed, repulsion, field of view, and herding tendency.
package dist

import (
	"fmt"
	"math"
	"math/rand"
)

// Kind tags the variant held by a Value. The numeric codes match the
// configuration stream.
type Kind uint8

const (
	Uniform     Kind = 0x01 // A in [from, to)
	Normal      Kind = 0x02 // mean A, standard deviation B
	RateProduct Kind = 0x03 // deterministic A * B
)

func (k Kind) String() string {
	switch k {
	case Uniform:
		return "uniform"
	case Normal:
		return "normal"
	case RateProduct:
		return "rate_product"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a tagged distribution. A and B hold the two parameters of the
// variant selected by Kind.
type Value struct {
	Kind Kind    `json:"kind"`
	A    float64 `json:"a"`
	B    float64 `json:"b"`
}

// UniformValue returns a uniform distribution over [from, to).
func UniformValue(from, to float64) Value { return Value{Kind: Uniform, A: from, B: to} }

// NormalValue returns a normal distribution.
func NormalValue(mean, stdDeviation float64) Value {
	return Value{Kind: Normal, A: mean, B: stdDeviation}
}

// RateProductValue returns the degenerate avgRate*rateDeviation form.
func RateProductValue(avgRate, rateDeviation float64) Value {
	return Value{Kind: RateProduct, A: avgRate, B: rateDeviation}
}

// Fixed returns a distribution that always yields v.
func Fixed(v float64) Value { return UniformValue(v, v) }

// Sample draws one scalar. RateProduct consumes no randomness.
func (v Value) Sample(rng *rand.Rand) float64 {
	switch v.Kind {
	case Uniform:
		return SampleUniform(rng, v.A, v.B)
	case Normal:
		return SampleNormal(rng, v.A, v.B)
	case RateProduct:
		return v.A * v.B
	}
	panic(fmt.Sprintf("dist: sample of unknown distribution %v", v.Kind))
}

// Valid reports whether the value carries a known kind.
func (v Value) Valid() bool {
	return v.Kind == Uniform || v.Kind == Normal || v.Kind == RateProduct
}

func (v Value) String() string {
	switch v.Kind {
	case Uniform:
		return fmt.Sprintf("uniform(%g, %g)", v.A, v.B)
	case Normal:
		return fmt.Sprintf("normal(%g, %g)", v.A, v.B)
	case RateProduct:
		return fmt.Sprintf("rate_product(%g, %g)", v.A, v.B)
	}
	return v.Kind.String()
}

// SampleUniform draws from [from, to).
func SampleUniform(rng *rand.Rand, from, to float64) float64 {
	return from + rng.Float64()*(to-from)
}

// normalGroup is the number of uniforms summed by SampleNormal.
const normalGroup = 6

// SampleNormal draws an approximately normal value as a rescaled sum of
// uniforms (Irwin-Hall), which keeps the output bounded to mean ± 3σ√2.
func SampleNormal(rng *rand.Rand, mean, stdDeviation float64) float64 {
	sum := 0.0
	for i := 0; i < normalGroup; i++ {
		sum += rng.Float64()
	}
	return mean + stdDeviation*math.Sqrt(12.0/normalGroup)*(sum-normalGroup/2.0)
}
