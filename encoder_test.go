package lagvae

import (
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/serializer"
)

func testEncoderTokens(v *Vocab) [][]int {
	// Two padded sequences, sequence-major.
	return [][]int{
		{v.Start(), v.Start()},
		{v.MustID("the"), v.MustID("a")},
		{v.MustID("cat"), v.MustID("dog")},
		{v.MustID("sat"), v.End()},
		{v.End(), v.Pad()},
	}
}

func TestEncoderShapes(t *testing.T) {
	v := testVocab(t)
	enc := NewEncoder(anyvec32.CurrentCreator(), v, 6, 8, 4)
	stats := enc.Apply(testEncoderTokens(v))
	if stats.Output().Len() != 2*2*4 {
		t.Errorf("expected stats length 16 but got %d", stats.Output().Len())
	}
	for _, x := range stats.Output().Data().([]float32) {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			t.Fatalf("stats contain %f", x)
		}
	}
}

func TestMutualInformation(t *testing.T) {
	v := testVocab(t)
	enc := NewEncoder(anyvec32.CurrentCreator(), v, 6, 8, 4)
	tokens := testEncoderTokens(v)
	stats := enc.Apply(tokens).Output()

	mi1 := enc.MutualInformation(tokens, stats, 2, rand.New(rand.NewSource(3)))
	if math.IsNaN(mi1) || math.IsInf(mi1, 0) {
		t.Fatalf("MI estimate is %f", mi1)
	}
	mi2 := enc.MutualInformation(tokens, stats, 2, rand.New(rand.NewSource(3)))
	if mi1 != mi2 {
		t.Errorf("same seed gave %f and %f", mi1, mi2)
	}
}

func TestEncoderSerialize(t *testing.T) {
	v := testVocab(t)
	enc := NewEncoder(anyvec32.CurrentCreator(), v, 6, 8, 4)
	data, err := serializer.SerializeAny(enc)
	if err != nil {
		t.Fatal(err)
	}
	var enc1 *Encoder
	if err := serializer.DeserializeAny(data, &enc1); err != nil {
		t.Fatal(err)
	}
	enc1.Vocab = v
	if enc1.LatentDims != enc.LatentDims {
		t.Errorf("expected %d latent dims but got %d", enc.LatentDims, enc1.LatentDims)
	}
	old := enc.Apply(testEncoderTokens(v)).Output().Data().([]float32)
	loaded := enc1.Apply(testEncoderTokens(v)).Output().Data().([]float32)
	for i, x := range old {
		if loaded[i] != x {
			t.Errorf("stat %d: expected %f but got %f", i, x, loaded[i])
		}
	}
}
