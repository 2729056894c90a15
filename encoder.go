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
	var e Encoder
	serializer.RegisterTypedDeserializer(e.SerializerType(), DeserializeEncoder)
}

// An Encoder maps a token sequence batch to latent
// distribution statistics.
//
// It embeds the tokens, runs a single LSTM layer over the
// sequence, and projects the final hidden state to
// 2*LatentDims outputs: a mean and a log standard
// deviation per latent dimension.
type Encoder struct {
	Vocab      *Vocab
	LatentDims int

	Embed *Embedding
	Block *anyrnn.LSTM
	Stats *anynet.FC
}

// NewEncoder creates a randomized Encoder.
func NewEncoder(c anyvec.Creator, vocab *Vocab, embeddingDims, hiddenDims,
	latentDims int) *Encoder {
	return &Encoder{
		Vocab:      vocab,
		LatentDims: latentDims,
		Embed:      NewEmbedding(c, vocab.Len(), embeddingDims, vocab.Pad()),
		Block:      anyrnn.NewLSTM(c, embeddingDims, hiddenDims),
		Stats:      anynet.NewFC(c, hiddenDims, 2*latentDims),
	}
}

// DeserializeEncoder deserializes an Encoder.
//
// The resulting Encoder has a nil Vocab, which the model
// which owns the Encoder is expected to fill in.
func DeserializeEncoder(d []byte) (*Encoder, error) {
	var latentDims serializer.Int
	var embed *Embedding
	var block *anyrnn.LSTM
	var stats *anynet.FC
	if err := serializer.DeserializeAny(d, &latentDims, &embed, &block, &stats); err != nil {
		return nil, essentials.AddCtx("deserialize Encoder", err)
	}
	if latentDims <= 0 {
		return nil, errors.New("deserialize Encoder: invalid latent size")
	}
	return &Encoder{
		LatentDims: int(latentDims),
		Embed:      embed,
		Block:      block,
		Stats:      stats,
	}, nil
}

// Apply encodes a sequence-major token batch, producing a
// packed batch of n rows with 2*LatentDims columns: the
// mean followed by the log-std for every row.
//
// All sequences must share a length via padding.
func (e *Encoder) Apply(tokens [][]int) anydiff.Res {
	if len(tokens) == 0 {
		panic("empty token sequence")
	}
	n := len(tokens[0])
	c := e.creator()
	present := make([]bool, n)
	for i := range present {
		present[i] = true
	}
	batches := make([]*anyseq.ResBatch, len(tokens))
	for t, step := range tokens {
		if len(step) != n {
			panic("mismatching batch sizes across timesteps")
		}
		batches[t] = &anyseq.ResBatch{
			Packed:  e.Embed.Batch(step),
			Present: present,
		}
	}
	seq := anyseq.ResSeq(c, batches)
	hidden := anyseq.Tail(anyrnn.Map(seq, e.Block))
	return e.Stats.Apply(hidden, n)
}

// Parameters returns the parameters of the Encoder.
func (e *Encoder) Parameters() []*anydiff.Var {
	res := e.Embed.Parameters()
	res = append(res, e.Block.Parameters()...)
	res = append(res, e.Stats.Parameters()...)
	return res
}

// SerializerType returns the unique ID used to serialize
// an Encoder with the serializer package.
func (e *Encoder) SerializerType() string {
	return "github.com/unixpickle/lagvae.Encoder"
}

// Serialize serializes the Encoder.
func (e *Encoder) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(e.LatentDims),
		e.Embed,
		e.Block,
		e.Stats,
	)
}

func (e *Encoder) creator() anyvec.Creator {
	return e.Embed.Weights.Vector.Creator()
}
