package lagvae

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyrnn"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var d Decoder
	serializer.RegisterTypedDeserializer(d.SerializerType(), DeserializeDecoder)
}

// A Decoder maps a latent code to per-timestep vocabulary
// log-probabilities.
//
// The latent code is concatenated to every timestep's
// input embedding, and the initial LSTM state is an
// affine+tanh projection of the code.
type Decoder struct {
	Vocab      *Vocab
	LatentDims int

	Embed     *Embedding
	Cell      *LSTMCell
	StateInit *anynet.FC
	DropIn    *anynet.Dropout
	DropOut   *anynet.Dropout
	Out       anynet.Net
}

// NewDecoder creates a randomized Decoder.
func NewDecoder(c anyvec.Creator, vocab *Vocab, embeddingDims, hiddenDims,
	latentDims int) *Decoder {
	return &Decoder{
		Vocab:      vocab,
		LatentDims: latentDims,
		Embed:      NewEmbedding(c, vocab.Len(), embeddingDims, vocab.Pad()),
		Cell:       NewLSTMCell(c, embeddingDims+latentDims, hiddenDims),
		StateInit:  anynet.NewFC(c, latentDims, hiddenDims),
		DropIn:     &anynet.Dropout{KeepProb: 0.5},
		DropOut:    &anynet.Dropout{KeepProb: 0.5},
		Out: anynet.Net{
			anynet.NewFC(c, hiddenDims, vocab.Len()),
			anynet.LogSoftmax,
		},
	}
}

// DeserializeDecoder deserializes a Decoder.
//
// The resulting Decoder has a nil Vocab, which the model
// which owns the Decoder is expected to fill in.
func DeserializeDecoder(d []byte) (*Decoder, error) {
	var latentDims serializer.Int
	var embed *Embedding
	var cell *LSTMCell
	var stateInit *anynet.FC
	var dropIn, dropOut *anynet.Dropout
	var out anynet.Net
	err := serializer.DeserializeAny(d, &latentDims, &embed, &cell, &stateInit,
		&dropIn, &dropOut, &out)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Decoder", err)
	}
	if latentDims <= 0 {
		return nil, errors.New("deserialize Decoder: invalid latent size")
	}
	return &Decoder{
		LatentDims: int(latentDims),
		Embed:      embed,
		Cell:       cell,
		StateInit:  stateInit,
		DropIn:     dropIn,
		DropOut:    dropOut,
		Out:        out,
	}, nil
}

// Apply runs the decoder in teacher-forcing mode over a
// sequence-major token batch (the target sequence shifted
// back by one position, so the first row is the start
// context).
//
// The z batch must have one LatentDims row per sequence.
// The result has one log-probability batch per timestep.
//
// The caller should pool z, since it is referenced once
// per timestep.
func (d *Decoder) Apply(z anydiff.Res, tokens [][]int) anyseq.Seq {
	if len(tokens) == 0 {
		panic("empty token sequence")
	}
	n := len(tokens[0])
	c := d.creator()
	present := make([]bool, n)
	for i := range present {
		present[i] = true
	}

	batches := make([]*anyseq.ResBatch, len(tokens))
	for t, step := range tokens {
		emb := d.DropIn.Apply(d.Embed.Batch(step), n)
		batches[t] = &anyseq.ResBatch{
			Packed:  joinRows(emb, z, n),
			Present: present,
		}
	}
	inSeq := anyseq.ResSeq(c, batches)

	start := d.startState(z, n)
	startState := &anyrnn.FuncBlockState{
		VecState: &anyrnn.VecState{
			Vector:     start.Output(),
			PresentMap: present,
		},
		V:        start.Vars(),
		StartRes: start,
	}
	block := &anyrnn.FuncBlock{Func: d.Cell.Step}
	hidden := anyrnn.MapWithStart(inSeq, block, startState,
		func(sg anyrnn.StateGrad, g anydiff.Grad) {
			start.Propagate(sg.(*anyrnn.FuncBlockState).Vector, g)
		})

	return anyseq.Map(hidden, func(h anydiff.Res, n int) anydiff.Res {
		return d.Out.Apply(d.DropOut.Apply(h, n), n)
	})
}

// FreeRun runs the decoder autoregressively for a fixed
// number of steps, feeding back the argmax token at every
// step, starting from the start token.
//
// It returns one log-probability batch per step.
// This is meant for reconstruction visualization, not for
// loss computation.
func (d *Decoder) FreeRun(z anyvec.Vector, steps int) []anyvec.Vector {
	n := z.Len() / d.LatentDims
	state := d.startState(anydiff.NewConst(z), n).Output()
	tokens := make([]int, n)
	for i := range tokens {
		tokens[i] = d.Vocab.Start()
	}

	var res []anyvec.Vector
	for t := 0; t < steps; t++ {
		logProbs, newState := d.stepVectors(tokens, state, z, n)
		res = append(res, logProbs)
		state = newState
		for i := range tokens {
			row := logProbs.Slice(i*d.Vocab.Len(), (i+1)*d.Vocab.Len())
			tokens[i] = anyvec.MaxIndex(row)
		}
	}
	return res
}

// startState computes the packed [hidden, cell] start
// state batch from a latent batch.
func (d *Decoder) startState(z anydiff.Res, n int) anydiff.Res {
	cell := d.StateInit.Apply(z, n)
	return anydiff.Pool(cell, func(cell anydiff.Res) anydiff.Res {
		return joinRows(anydiff.Tanh(cell), cell, n)
	})
}

// stepVectors applies one decoding step outside of any
// gradient tracking.
func (d *Decoder) stepVectors(tokens []int, state, z anyvec.Vector,
	n int) (logProbs, newState anyvec.Vector) {
	emb := d.DropIn.Apply(d.Embed.Batch(tokens), n)
	in := joinRows(emb, anydiff.NewConst(z), n)
	out, st := d.Cell.Step(in, anydiff.NewConst(state), n)
	lp := d.Out.Apply(d.DropOut.Apply(out, n), n)
	return lp.Output(), st.Output()
}

// setDropout enables or disables the decoder dropout
// layers.
func (d *Decoder) setDropout(enabled bool) {
	d.DropIn.Enabled = enabled
	d.DropOut.Enabled = enabled
}

// Parameters returns the parameters of the Decoder.
func (d *Decoder) Parameters() []*anydiff.Var {
	res := d.Embed.Parameters()
	res = append(res, d.Cell.Parameters()...)
	res = append(res, d.StateInit.Parameters()...)
	res = append(res, d.Out.Parameters()...)
	return res
}

// SerializerType returns the unique ID used to serialize
// a Decoder with the serializer package.
func (d *Decoder) SerializerType() string {
	return "github.com/unixpickle/lagvae.Decoder"
}

// Serialize serializes the Decoder.
func (d *Decoder) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(d.LatentDims),
		d.Embed,
		d.Cell,
		d.StateInit,
		d.DropIn,
		d.DropOut,
		d.Out,
	)
}

func (d *Decoder) creator() anyvec.Creator {
	return d.Embed.Weights.Vector.Creator()
}
