// Package features maps low-dimensional observations into feature vectors
// for linear function approximation.
package features

import (
	"math"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Transformer maps an observation to a feature vector of fixed length Dim.
type Transformer interface {
	Transform(x []float64) []float64
	Dim() int
}

// RBFSampler approximates the feature map of a Gaussian (RBF) kernel with
// random Fourier features:
//
//	z(x) = sqrt(2/n) * cos(W x + b),  W ~ N(0, 2*gamma),  b ~ U(0, 2π)
//
// Larger gamma yields narrower kernels.
type RBFSampler struct {
	weights *mat.Dense    // components x input dimension
	offsets *mat.VecDense // components
	scale   float64
}

// NewRBFSampler creates a sampler for inputs of length in, producing components features.
func NewRBFSampler(in int, gamma float64, components int, seed uint64) *RBFSampler {
	source := rand.NewSource(seed)
	normal := distuv.Normal{Mu: 0, Sigma: math.Sqrt(2 * gamma), Src: source}
	uniform := distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: source}

	weights := mat.NewDense(components, in, nil)
	for i := 0; i < components; i++ {
		for j := 0; j < in; j++ {
			weights.Set(i, j, normal.Rand())
		}
	}
	offsets := mat.NewVecDense(components, nil)
	for i := 0; i < components; i++ {
		offsets.SetVec(i, uniform.Rand())
	}

	return &RBFSampler{
		weights: weights,
		offsets: offsets,
		scale:   math.Sqrt(2.0 / float64(components)),
	}
}

func (r *RBFSampler) Dim() int {
	rows, _ := r.weights.Dims()
	return rows
}

func (r *RBFSampler) Transform(x []float64) []float64 {
	projection := mat.NewVecDense(r.Dim(), nil)
	projection.MulVec(r.weights, mat.NewVecDense(len(x), x))
	projection.AddVec(projection, r.offsets)

	out := make([]float64, r.Dim())
	for i := range out {
		out[i] = r.scale * math.Cos(projection.AtVec(i))
	}
	return out
}

// Union concatenates the outputs of several transformers.
type Union []Transformer

// NewRBFUnion builds one sampler per gamma, each with components features, so that
// the union covers several kernel widths at once.
func NewRBFUnion(in int, gammas []float64, components int, seed uint64) Union {
	u := make(Union, 0, len(gammas))
	for i, g := range gammas {
		u = append(u, NewRBFSampler(in, g, components, seed+uint64(i)))
	}
	return u
}

func (u Union) Dim() (dim int) {
	for _, t := range u {
		dim += t.Dim()
	}
	return
}

func (u Union) Transform(x []float64) []float64 {
	out := make([]float64, 0, u.Dim())
	for _, t := range u {
		out = append(out, t.Transform(x)...)
	}
	return out
}

// StandardScaler standardizes each input dimension to zero mean and unit variance.
// Dimensions without variance are only centered.
type StandardScaler struct {
	mean []float64
	std  []float64
}

// FitScaler estimates per-dimension mean and standard deviation from samples.
func FitScaler(samples [][]float64) *StandardScaler {
	if len(samples) == 0 {
		return &StandardScaler{}
	}
	dim := len(samples[0])
	sc := &StandardScaler{
		mean: make([]float64, dim),
		std:  make([]float64, dim),
	}
	col := make([]float64, len(samples))
	for j := 0; j < dim; j++ {
		for i, s := range samples {
			col[i] = s[j]
		}
		sc.mean[j], sc.std[j] = stat.MeanStdDev(col, nil)
		if sc.std[j] == 0 || math.IsNaN(sc.std[j]) {
			sc.std[j] = 1
		}
	}
	return sc
}

func (sc *StandardScaler) Dim() int {
	return len(sc.mean)
}

func (sc *StandardScaler) Transform(x []float64) []float64 {
	if len(sc.mean) == 0 {
		return x
	}
	out := make([]float64, len(x))
	for i := range x {
		out[i] = (x[i] - sc.mean[i]) / sc.std[i]
	}
	return out
}

// Pipeline applies a scaler before a transformer.
type Pipeline struct {
	Scaler *StandardScaler
	Next   Transformer
}

func (p Pipeline) Dim() int {
	return p.Next.Dim()
}

func (p Pipeline) Transform(x []float64) []float64 {
	if p.Scaler != nil {
		x = p.Scaler.Transform(x)
	}
	return p.Next.Transform(x)
}
