// Package vaetrain provides a training harness for
// lagvae models: labeled sample lists, padded batch
// assembly, and an epoch loop with validation-driven
// scheduling and checkpointing.
package vaetrain

import (
	"crypto/md5"
	"strings"

	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/lagvae"
)

// A Sample is one labeled token sequence.
//
// Tokens are bare words: the start and end markers are
// added during batch assembly.
type Sample struct {
	Tokens []string
	Label  int
}

// A SampleList is a labeled corpus usable with anysgd
// shuffling and hash-based train/validation splitting.
type SampleList struct {
	Samples []*Sample
	Vocab   *lagvae.Vocab
}

// Len returns the number of samples.
func (s *SampleList) Len() int {
	return len(s.Samples)
}

// Swap swaps two samples.
func (s *SampleList) Swap(i, j int) {
	s.Samples[i], s.Samples[j] = s.Samples[j], s.Samples[i]
}

// Slice produces a copied subset of the list.
func (s *SampleList) Slice(i, j int) anysgd.SampleList {
	return &SampleList{
		Samples: append([]*Sample{}, s.Samples[i:j]...),
		Vocab:   s.Vocab,
	}
}

// Hash produces a deterministic per-sample hash, so that
// anysgd.HashSplit always puts a given sequence on the
// same side of a train/validation split.
func (s *SampleList) Hash(i int) []byte {
	sum := md5.Sum([]byte(strings.Join(s.Samples[i].Tokens, " ")))
	return sum[:]
}

// Batch assembles the whole list into one padded batch.
//
// Every sequence is wrapped in start and end markers and
// right-padded to the longest sequence; the result is
// sequence-major.
func (s *SampleList) Batch() *lagvae.Batch {
	var maxLen int
	for _, sample := range s.Samples {
		if len(sample.Tokens) > maxLen {
			maxLen = len(sample.Tokens)
		}
	}
	n := len(s.Samples)
	steps := maxLen + 2

	tokens := make([][]int, steps)
	for t := range tokens {
		row := make([]int, n)
		for i, sample := range s.Samples {
			switch {
			case t == 0:
				row[i] = s.Vocab.Start()
			case t <= len(sample.Tokens):
				row[i] = s.Vocab.MustID(sample.Tokens[t-1])
			case t == len(sample.Tokens)+1:
				row[i] = s.Vocab.End()
			default:
				row[i] = s.Vocab.Pad()
			}
		}
		tokens[t] = row
	}

	labels := make([]int, n)
	for i, sample := range s.Samples {
		labels[i] = sample.Label
	}
	return &lagvae.Batch{Tokens: tokens, Labels: labels}
}
