package lagvae

import (
	"math"
	"math/rand"
	"strings"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// GreedyDecode decodes one string per latent row by
// repeatedly taking the argmax-probability token.
//
// Decoding of each sequence stops upon emitting the end
// token or after maxLength steps; the end token itself is
// excluded from the returned text.
func (d *Decoder) GreedyDecode(z anyvec.Vector, maxLength int) []string {
	return d.decodeEach(z, maxLength, func(logProbs []float64) int {
		best := 0
		for j, x := range logProbs {
			if x > logProbs[best] {
				best = j
			}
		}
		return best
	})
}

// SampleDecode decodes one string per latent row by
// sampling every next token from the softmax
// distribution.
//
// The control flow matches GreedyDecode: per-sequence
// termination on the end token, at most maxLength steps,
// end token excluded from the result.
//
// If rng is nil, the global random source seeds the
// categorical sampler.
func (d *Decoder) SampleDecode(z anyvec.Vector, maxLength int,
	rng *rand.Rand) []string {
	var src exprand.Source
	if rng != nil {
		src = exprand.NewSource(rng.Uint64())
	}
	return d.decodeEach(z, maxLength, func(logProbs []float64) int {
		weights := make([]float64, len(logProbs))
		for j, x := range logProbs {
			weights[j] = math.Exp(x)
		}
		dist := distuv.NewCategorical(weights, src)
		return int(dist.Rand())
	})
}

// decodeEach runs the shared greedy/sampling control
// loop, using pick to select the next token for one
// sequence from its log-probability row.
func (d *Decoder) decodeEach(z anyvec.Vector, maxLength int,
	pick func(logProbs []float64) int) []string {
	n := z.Len() / d.LatentDims
	vocabLen := d.Vocab.Len()
	state := d.startState(anydiff.NewConst(z), n).Output()

	tokens := make([]int, n)
	done := make([]bool, n)
	words := make([][]string, n)
	for i := range tokens {
		tokens[i] = d.Vocab.Start()
	}

	numDone := 0
	for length := 1; length < maxLength && numDone < n; length++ {
		logProbs, newState := d.stepVectors(tokens, state, z, n)
		state = newState
		data := vectorData(logProbs)
		for i := 0; i < n; i++ {
			next := pick(data[i*vocabLen : (i+1)*vocabLen])
			tokens[i] = next
			if done[i] {
				continue
			}
			if next == d.Vocab.End() {
				done[i] = true
				numDone++
			} else {
				words[i] = append(words[i], d.Vocab.Token(next))
			}
		}
	}

	res := make([]string, n)
	for i, w := range words {
		res[i] = strings.Join(w, " ")
	}
	return res
}
