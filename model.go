package lagvae

import (
	"errors"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
	"gonum.org/v1/gonum/floats"
)

func init() {
	var m Model
	serializer.RegisterTypedDeserializer(m.SerializerType(), DeserializeModel)
}

// Default training schedule settings, matching the
// lagging-encoder recipe.
const (
	DefaultZIters      = 1
	DefaultInnerIters  = 100
	DefaultKLWeight    = 0.1
	DefaultAnnealRate  = 0.1
	DefaultMIPatience  = 5
	DefaultMaxAggEpoch = 20
	DefaultMinSchedule = 5
)

// A Model is a sequence VAE: an Encoder and a Decoder
// glued together with the training schedule which keeps
// the posterior from collapsing.
//
// A Model is not safe for concurrent use.
type Model struct {
	Vocab      *Vocab
	LatentDims int

	Encoder *Encoder
	Decoder *Decoder

	// ZIters is the number of latent draws per input in
	// mutual-information estimation.
	ZIters int

	// InnerIters bounds the aggressive encoder-only loop.
	InnerIters int

	// KLWeight is the current weight of the regularization
	// term; it anneals by AnnealRate per outer training
	// step, capped at 1.
	KLWeight   float64
	AnnealRate float64

	Controller *AggressiveController

	EncOpt *Optimizer
	DecOpt *Optimizer

	// Rand, if non-nil, is the source of latent sampling
	// noise. A nil Rand uses the global source.
	Rand *rand.Rand

	epoch        int
	batchInEpoch int
}

// NewModel creates a randomized Model with the default
// training schedule.
func NewModel(c anyvec.Creator, vocab *Vocab, embeddingDims, hiddenDims,
	latentDims int) *Model {
	enc := NewEncoder(c, vocab, embeddingDims, hiddenDims, latentDims)
	dec := NewDecoder(c, vocab, embeddingDims, hiddenDims, latentDims)
	return &Model{
		Vocab:      vocab,
		LatentDims: latentDims,
		Encoder:    enc,
		Decoder:    dec,
		ZIters:     DefaultZIters,
		InnerIters: DefaultInnerIters,
		KLWeight:   DefaultKLWeight,
		AnnealRate: DefaultAnnealRate,
		Controller: NewAggressiveController(DefaultMIPatience, DefaultMaxAggEpoch),
		EncOpt: &Optimizer{
			Params:   enc.Parameters(),
			Rate:     1,
			Schedule: NewPlateau(0.5, 1, DefaultMinSchedule),
		},
		DecOpt: &Optimizer{
			Params:   dec.Parameters(),
			Rate:     1,
			Schedule: NewPlateau(0.5, 1, DefaultMinSchedule),
		},
	}
}

// DeserializeModel deserializes a Model.
//
// Only the architecture and parameters are restored; the
// training schedule starts fresh with defaults.
func DeserializeModel(d []byte) (*Model, error) {
	var vocab *Vocab
	var enc *Encoder
	var dec *Decoder
	if err := serializer.DeserializeAny(d, &vocab, &enc, &dec); err != nil {
		return nil, essentials.AddCtx("deserialize Model", err)
	}
	enc.Vocab = vocab
	dec.Vocab = vocab
	return &Model{
		Vocab:      vocab,
		LatentDims: enc.LatentDims,
		Encoder:    enc,
		Decoder:    dec,
		ZIters:     DefaultZIters,
		InnerIters: DefaultInnerIters,
		KLWeight:   DefaultKLWeight,
		AnnealRate: DefaultAnnealRate,
		Controller: NewAggressiveController(DefaultMIPatience, DefaultMaxAggEpoch),
		EncOpt: &Optimizer{
			Params:   enc.Parameters(),
			Rate:     1,
			Schedule: NewPlateau(0.5, 1, DefaultMinSchedule),
		},
		DecOpt: &Optimizer{
			Params:   dec.Parameters(),
			Rate:     1,
			Schedule: NewPlateau(0.5, 1, DefaultMinSchedule),
		},
	}, nil
}

// Costs computes the reconstruction and regularization
// losses for a batch from pre-computed encoder
// statistics, as a two-component Res: the per-sequence
// reconstruction cross-entropy summed over timesteps and
// averaged over the batch, followed by the batch-mean KL
// divergence.
func (m *Model) Costs(stats anydiff.Res, tokens [][]int) anydiff.Res {
	n := len(tokens[0])
	dims := m.LatentDims
	return anydiff.Pool(stats, func(stats anydiff.Res) anydiff.Res {
		mean := sliceRows(stats, n, 2*dims, 0, dims)
		logStd := sliceRows(stats, n, 2*dims, dims, 2*dims)
		reg := KLDivergence(mean, logStd, n)
		z := SampleReparam(mean, logStd, m.Rand)
		return anydiff.Pool(z, func(z anydiff.Res) anydiff.Res {
			logits := m.Decoder.Apply(z, tokens[:len(tokens)-1])
			rec := m.reconstruction(logits, tokens[1:], n)
			return anydiff.Concat(rec, reg)
		})
	})
}

// reconstruction computes the pad-masked cross-entropy of
// per-timestep log-probabilities against the target
// tokens, summed per sequence and averaged over the
// batch.
func (m *Model) reconstruction(logits anyseq.Seq, targets [][]int, n int) anydiff.Res {
	c := m.creator()
	var idx int
	costs := anyseq.Map(logits, func(a anydiff.Res, num int) anydiff.Res {
		desired := oneHotRows(c, targets[idx], m.Vocab.Len(), m.Vocab.Pad())
		idx++
		return anynet.DotCost{}.Cost(anydiff.NewConst(desired), a, num)
	})
	total := anydiff.Sum(anyseq.Sum(costs))
	return anydiff.Scale(total, c.MakeNumeric(1/float64(n)))
}

// Decode encodes the token batch, samples a latent code,
// and decodes it back to one string per sequence with the
// requested strategy.
//
// The beamWidth argument is only used by the beam-search
// strategy.
func (m *Model) Decode(tokens [][]int, strategy Strategy, beamWidth int) ([]string, error) {
	if err := validStrategy(strategy); err != nil {
		return nil, essentials.AddCtx("decode", err)
	}
	m.Decoder.setDropout(false)
	stats := m.Encoder.Apply(tokens).Output()
	n := len(tokens[0])
	z := m.sampleLatents(stats, n)
	return m.decodeZ(z, strategy, beamWidth), nil
}

// LatentSweep encodes one example, then decodes a series
// of latent codes with one coordinate offset by evenly
// spaced values in [-3, 3], visualizing that coordinate's
// effect on the generated text.
func (m *Model) LatentSweep(tokens []int, latentIndex, numPoints int,
	strategy Strategy, beamWidth int) ([]SweepPoint, error) {
	if err := validStrategy(strategy); err != nil {
		return nil, essentials.AddCtx("latent sweep", err)
	}
	if latentIndex < 0 || latentIndex >= m.LatentDims {
		return nil, errors.New("latent sweep: latent index out of range")
	}
	if numPoints < 1 {
		return nil, errors.New("latent sweep: need at least one point")
	}
	m.Decoder.setDropout(false)

	seq := make([][]int, len(tokens))
	for t, tok := range tokens {
		seq[t] = []int{tok}
	}
	stats := m.Encoder.Apply(seq).Output()
	base := vectorData(m.sampleLatents(stats, 1))

	// floats.Span needs at least two points; a single-point
	// sweep sits at the low end of the range.
	offsets := make([]float64, numPoints)
	if numPoints == 1 {
		offsets[0] = -3
	} else {
		floats.Span(offsets, -3, 3)
	}

	c := m.creator()
	data := make([]float64, numPoints*m.LatentDims)
	for i, off := range offsets {
		copy(data[i*m.LatentDims:], base)
		data[i*m.LatentDims+latentIndex] += off
	}
	z := c.MakeVectorData(c.MakeNumericList(data))

	texts := m.decodeZ(z, strategy, beamWidth)
	res := make([]SweepPoint, numPoints)
	for i, text := range texts {
		res[i] = SweepPoint{Offset: offsets[i], Text: text}
	}
	return res, nil
}

// A SweepPoint is one decoded latent offset from
// LatentSweep.
type SweepPoint struct {
	Offset float64
	Text   string
}

func (m *Model) decodeZ(z anyvec.Vector, strategy Strategy, beamWidth int) []string {
	switch strategy {
	case BeamSearch:
		return m.Decoder.BeamSearchDecode(z, beamWidth, DefaultMaxLength)
	case Sample:
		return m.Decoder.SampleDecode(z, DefaultMaxLength, m.Rand)
	default:
		return m.Decoder.GreedyDecode(z, DefaultMaxLength)
	}
}

// sampleLatents draws one reparameterized latent row per
// batch element from raw statistics.
func (m *Model) sampleLatents(stats anyvec.Vector, n int) anyvec.Vector {
	statsRes := anydiff.NewConst(stats)
	mean := sliceRows(statsRes, n, 2*m.LatentDims, 0, m.LatentDims)
	logStd := sliceRows(statsRes, n, 2*m.LatentDims, m.LatentDims, 2*m.LatentDims)
	return SampleReparam(mean, logStd, m.Rand).Output()
}

// Parameters returns the encoder's parameters followed by
// the decoder's.
func (m *Model) Parameters() []*anydiff.Var {
	return append(m.Encoder.Parameters(), m.Decoder.Parameters()...)
}

// SerializerType returns the unique ID used to serialize
// a Model with the serializer package.
func (m *Model) SerializerType() string {
	return "github.com/unixpickle/lagvae.Model"
}

// Serialize serializes the Model.
func (m *Model) Serialize() ([]byte, error) {
	return serializer.SerializeAny(m.Vocab, m.Encoder, m.Decoder)
}

func (m *Model) creator() anyvec.Creator {
	return m.Encoder.Embed.Weights.Vector.Creator()
}
