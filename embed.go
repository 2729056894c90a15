package lagvae

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var e Embedding
	serializer.RegisterTypedDeserializer(e.SerializerType(), DeserializeEmbedding)
}

// An Embedding maps token IDs to trainable vectors.
//
// The padding ID always maps to a constant zero vector
// which receives no gradient.
type Embedding struct {
	VocabSize int
	OutCount  int
	PaddingID int
	Weights   *anydiff.Var
}

// NewEmbedding creates a randomized Embedding.
func NewEmbedding(c anyvec.Creator, vocabSize, out, paddingID int) *Embedding {
	res := &Embedding{
		VocabSize: vocabSize,
		OutCount:  out,
		PaddingID: paddingID,
		Weights:   anydiff.NewVar(c.MakeVector(vocabSize * out)),
	}
	randomize(res.Weights.Vector, 0.1)
	return res
}

// DeserializeEmbedding attempts to deserialize an
// Embedding.
func DeserializeEmbedding(d []byte) (*Embedding, error) {
	var out, padding serializer.Int
	var weights *anyvecsave.S
	if err := serializer.DeserializeAny(d, &out, &padding, &weights); err != nil {
		return nil, essentials.AddCtx("deserialize Embedding", err)
	}
	if out == 0 || weights.Vector.Len()%int(out) != 0 {
		return nil, errors.New("deserialize Embedding: invalid matrix dimensions")
	}
	return &Embedding{
		VocabSize: weights.Vector.Len() / int(out),
		OutCount:  int(out),
		PaddingID: int(padding),
		Weights:   anydiff.NewVar(weights.Vector),
	}, nil
}

// Batch embeds one token per row, producing a packed
// batch of len(ids) embedding rows.
func (e *Embedding) Batch(ids []int) anydiff.Res {
	c := e.Weights.Vector.Creator()
	var zero anydiff.Res
	parts := make([]anydiff.Res, len(ids))
	for i, id := range ids {
		if id < 0 || id >= e.VocabSize {
			panic(fmt.Sprintf("token ID out of range: %d", id))
		}
		if id == e.PaddingID {
			if zero == nil {
				zero = anydiff.NewConst(c.MakeVector(e.OutCount))
			}
			parts[i] = zero
		} else {
			parts[i] = anydiff.Slice(e.Weights, id*e.OutCount, (id+1)*e.OutCount)
		}
	}
	return anydiff.Concat(parts...)
}

// Parameters returns the embedding matrix.
func (e *Embedding) Parameters() []*anydiff.Var {
	return []*anydiff.Var{e.Weights}
}

// SerializerType returns the unique ID used to serialize
// an Embedding with the serializer package.
func (e *Embedding) SerializerType() string {
	return "github.com/unixpickle/lagvae.Embedding"
}

// Serialize serializes the Embedding.
func (e *Embedding) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		serializer.Int(e.OutCount),
		serializer.Int(e.PaddingID),
		&anyvecsave.S{Vector: e.Weights.Vector},
	)
}
