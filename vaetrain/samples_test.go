package vaetrain

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/lagvae"
)

func testCorpus(t *testing.T) *SampleList {
	vocab, err := lagvae.NewVocab([]string{
		lagvae.PadToken, lagvae.StartToken, lagvae.EndToken,
		"the", "cat", "sat", "a", "dog", "ran",
	})
	if err != nil {
		t.Fatal(err)
	}
	return &SampleList{
		Vocab: vocab,
		Samples: []*Sample{
			{Tokens: []string{"the", "cat", "sat"}, Label: 0},
			{Tokens: []string{"a", "dog"}, Label: 1},
			{Tokens: []string{"the", "dog", "ran"}, Label: 1},
			{Tokens: []string{"a", "cat"}, Label: 0},
		},
	}
}

func TestBatchAssembly(t *testing.T) {
	list := testCorpus(t)
	batch := list.Slice(0, 2).(*SampleList).Batch()
	v := list.Vocab

	if batch.Size() != 2 {
		t.Fatalf("expected batch size 2 but got %d", batch.Size())
	}
	expected := [][]int{
		{v.Start(), v.Start()},
		{v.MustID("the"), v.MustID("a")},
		{v.MustID("cat"), v.MustID("dog")},
		{v.MustID("sat"), v.End()},
		{v.End(), v.Pad()},
	}
	if !reflect.DeepEqual(batch.Tokens, expected) {
		t.Errorf("expected %v but got %v", expected, batch.Tokens)
	}
	if !reflect.DeepEqual(batch.Labels, []int{0, 1}) {
		t.Errorf("bad labels: %v", batch.Labels)
	}
}

func TestSampleHash(t *testing.T) {
	list := testCorpus(t)
	h1 := list.Hash(0)
	list.Swap(0, 3)
	h2 := list.Hash(3)
	if !bytes.Equal(h1, h2) {
		t.Error("hash changed after a swap")
	}
	if bytes.Equal(list.Hash(0), list.Hash(1)) {
		t.Error("distinct samples share a hash")
	}
}

func TestHashSplitStability(t *testing.T) {
	list := testCorpus(t)
	left, right := anysgd.HashSplit(list, 0.5)
	if left.Len()+right.Len() != 4 {
		t.Fatalf("split lost samples: %d + %d", left.Len(), right.Len())
	}
}
