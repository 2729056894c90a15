package lagvae

// A Batch is a padded batch of token sequences in
// sequence-major layout: Tokens[t][i] is the t-th token
// of the i-th sequence.
//
// All sequences in a batch share a length via padding.
// The first row is the start context when the batch is
// sliced for teacher forcing.
//
// Labels carries one auxiliary label per sequence.
// The VAE itself never reads it.
type Batch struct {
	Tokens [][]int
	Labels []int
}

// Size returns the number of sequences in the batch.
func (b *Batch) Size() int {
	if len(b.Tokens) == 0 {
		return 0
	}
	return len(b.Tokens[0])
}

// SeqLen returns the padded sequence length.
func (b *Batch) SeqLen() int {
	return len(b.Tokens)
}

// NumWords returns the number of predicted positions,
// i.e. (SeqLen-1) * Size.
func (b *Batch) NumWords() int {
	if b.SeqLen() == 0 {
		return 0
	}
	return (b.SeqLen() - 1) * b.Size()
}
