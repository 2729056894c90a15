package lagvae

import (
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// SampleReparam draws one reparameterized latent sample
// per row: z = mean + exp(logStd) * eps with eps drawn
// from a standard normal.
//
// The result is differentiable with respect to mean and
// logStd; the noise itself carries no gradient.
//
// If rng is nil, the global random source is used.
func SampleReparam(mean, logStd anydiff.Res, rng *rand.Rand) anydiff.Res {
	eps := mean.Output().Creator().MakeVector(mean.Output().Len())
	anyvec.Rand(eps, anyvec.Normal, rng)
	return anydiff.Add(mean, anydiff.Mul(anydiff.Exp(logStd), anydiff.NewConst(eps)))
}

// KLDivergence computes the closed-form KL divergence of
// N(mean, exp(logStd)^2) from N(0, I) for a packed batch
// of n rows, averaged over the batch.
//
// The result is a single-component Res.
//
// The caller should pool mean and logStd if they are
// slices of a shared statistics batch.
func KLDivergence(mean, logStd anydiff.Res, n int) anydiff.Res {
	c := mean.Output().Creator()
	logVar := anydiff.Scale(logStd, c.MakeNumeric(2))
	inner := anydiff.Sub(
		anydiff.AddScalar(logVar, c.MakeNumeric(1)),
		anydiff.Add(anydiff.Square(mean), anydiff.Exp(logVar)),
	)
	return anydiff.Scale(anydiff.Sum(inner), c.MakeNumeric(-0.5/float64(n)))
}
