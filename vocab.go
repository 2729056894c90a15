package lagvae

import (
	"encoding/json"
	"fmt"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// Reserved tokens which every Vocab must define.
const (
	PadToken   = "<pad>"
	StartToken = "<s>"
	EndToken   = "</s>"
)

func init() {
	var v Vocab
	serializer.RegisterTypedDeserializer(v.SerializerType(), DeserializeVocab)
}

// A Vocab is an immutable bijective mapping between token
// strings and integer IDs.
//
// A Vocab is safe to share between an Encoder and a
// Decoder, since it is never modified after construction.
type Vocab struct {
	tokens []string
	ids    map[string]int
}

// NewVocab creates a Vocab from an ordered token list.
//
// The list must contain the reserved tokens "<pad>",
// "<s>" and "</s>", and must not contain duplicates.
func NewVocab(tokens []string) (*Vocab, error) {
	res := &Vocab{
		tokens: append([]string{}, tokens...),
		ids:    map[string]int{},
	}
	for i, tok := range res.tokens {
		if _, ok := res.ids[tok]; ok {
			return nil, fmt.Errorf("make vocab: duplicate token: %q", tok)
		}
		res.ids[tok] = i
	}
	for _, reserved := range []string{PadToken, StartToken, EndToken} {
		if _, ok := res.ids[reserved]; !ok {
			return nil, fmt.Errorf("make vocab: missing reserved token: %q", reserved)
		}
	}
	return res, nil
}

// DeserializeVocab deserializes a Vocab.
func DeserializeVocab(d []byte) (*Vocab, error) {
	var tokens []string
	if err := json.Unmarshal(d, &tokens); err != nil {
		return nil, essentials.AddCtx("deserialize Vocab", err)
	}
	res, err := NewVocab(tokens)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Vocab", err)
	}
	return res, nil
}

// Len returns the number of tokens.
func (v *Vocab) Len() int {
	return len(v.tokens)
}

// ID looks up the ID for a token.
func (v *Vocab) ID(token string) (int, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// MustID looks up the ID for a token, panicking if the
// token is not part of the vocabulary.
func (v *Vocab) MustID(token string) int {
	id, ok := v.ids[token]
	if !ok {
		panic("token not in vocabulary: " + token)
	}
	return id
}

// Token returns the token string for an ID.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		panic(fmt.Sprintf("token ID out of range: %d", id))
	}
	return v.tokens[id]
}

// Pad returns the ID of the padding token.
func (v *Vocab) Pad() int {
	return v.ids[PadToken]
}

// Start returns the ID of the start-of-sequence token.
func (v *Vocab) Start() int {
	return v.ids[StartToken]
}

// End returns the ID of the end-of-sequence token.
func (v *Vocab) End() int {
	return v.ids[EndToken]
}

// SerializerType returns the unique ID used to serialize
// a Vocab with the serializer package.
func (v *Vocab) SerializerType() string {
	return "github.com/unixpickle/lagvae.Vocab"
}

// Serialize serializes the Vocab.
func (v *Vocab) Serialize() ([]byte, error) {
	return json.Marshal(v.tokens)
}
