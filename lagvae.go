// Package lagvae implements a sequence variational
// autoencoder with lagging-encoder ("aggressive")
// training, intended for causal explanation of text
// classifiers.
//
// The model pairs an LSTM encoder with a latent-code
// conditioned LSTM decoder.
// Training alternates between encoder-only inner updates
// and joint updates, driven by a mutual-information
// signal that detects posterior collapse before it can
// stabilize.
package lagvae

import "fmt"

// A Strategy names a decoding search procedure.
type Strategy string

// These are the supported decoding strategies.
const (
	Greedy     Strategy = "greedy"
	Sample     Strategy = "sample"
	BeamSearch Strategy = "beam_search"
)

// Valid checks that s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case Greedy, Sample, BeamSearch:
		return true
	}
	return false
}

// DefaultMaxLength is the decoding step limit used by
// Model.Decode and Model.LatentSweep.
const DefaultMaxLength = 30

func validStrategy(s Strategy) error {
	if !s.Valid() {
		return fmt.Errorf("unknown decoding strategy: %q", string(s))
	}
	return nil
}
