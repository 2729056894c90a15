package lagvae

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anyvec"
)

// MutualInformation approximates the mutual information
// I(x; z) between a token batch and its latent code,
// using an importance-weighted aggregate-posterior
// estimate over zIters reparameterized draws per input:
//
//	I(x, z) = E_x E_{q(z|x)} log q(z|x) - E_x E_{q(z|x)} log q(z)
//
// If stats is non-nil it must be the packed output of
// Apply for the same batch, and is used instead of
// re-encoding the tokens.
//
// The estimate is a detached diagnostic: no gradients are
// tracked through it.
// If rng is nil, the global random source is used.
func (e *Encoder) MutualInformation(tokens [][]int, stats anyvec.Vector,
	zIters int, rng *rand.Rand) float64 {
	if stats == nil {
		stats = e.Apply(tokens).Output()
	}
	if zIters < 1 {
		zIters = 1
	}
	dims := e.LatentDims
	n := stats.Len() / (2 * dims)
	data := vectorData(stats)

	mean := make([][]float64, n)
	logVar := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := data[i*2*dims : (i+1)*2*dims]
		mean[i] = row[:dims]
		logVar[i] = make([]float64, dims)
		for d, ls := range row[dims:] {
			logVar[i][d] = 2 * ls
		}
	}

	// E_{q(z|x)} log q(z|x), averaged over inputs.
	var negEntropy float64
	for i := 0; i < n; i++ {
		sum := -0.5 * float64(dims) * math.Log(2*math.Pi)
		for _, lv := range logVar[i] {
			sum -= 0.5 * (1 + lv)
		}
		negEntropy += sum / float64(n)
	}

	// zIters reparameterized samples per input.
	zBatch := n * zIters
	samples := make([][]float64, 0, zBatch)
	for iter := 0; iter < zIters; iter++ {
		for i := 0; i < n; i++ {
			z := make([]float64, dims)
			for d := range z {
				z[d] = mean[i][d] + math.Exp(logVar[i][d]/2)*normFloat(rng)
			}
			samples = append(samples, z)
		}
	}

	// log q(z) under the aggregate posterior, for every
	// sampled z against every input's statistics.
	var logQZSum float64
	density := make([]float64, n)
	for _, z := range samples {
		for i := 0; i < n; i++ {
			d := -0.5 * float64(dims) * math.Log(2*math.Pi)
			for k := 0; k < dims; k++ {
				diff := z[k] - mean[i][k]
				d -= 0.5 * (diff*diff/math.Exp(logVar[i][k]) + logVar[i][k])
			}
			density[i] = d
		}
		logQZSum += logSumExp(density) - math.Log(float64(n))
	}

	return negEntropy - logQZSum/float64(zBatch)
}

func logSumExp(xs []float64) float64 {
	max := math.Inf(-1)
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}

func normFloat(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.NormFloat64()
	}
	return rng.NormFloat64()
}
