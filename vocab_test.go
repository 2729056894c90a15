package lagvae

import (
	"testing"

	"github.com/unixpickle/serializer"
)

func testVocab(t *testing.T) *Vocab {
	tokens := []string{PadToken, StartToken, EndToken,
		"the", "cat", "sat", "on", "a", "mat", "dog"}
	v, err := NewVocab(tokens)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestVocabLookup(t *testing.T) {
	v := testVocab(t)
	if v.Len() != 10 {
		t.Errorf("expected 10 tokens but got %d", v.Len())
	}
	if id := v.MustID("cat"); id != 4 {
		t.Errorf("expected ID 4 but got %d", id)
	}
	if tok := v.Token(5); tok != "sat" {
		t.Errorf("expected \"sat\" but got %q", tok)
	}
	if _, ok := v.ID("zebra"); ok {
		t.Error("lookup of missing token succeeded")
	}
	if v.Pad() != 0 || v.Start() != 1 || v.End() != 2 {
		t.Errorf("bad reserved IDs: %d %d %d", v.Pad(), v.Start(), v.End())
	}
}

func TestVocabErrors(t *testing.T) {
	if _, err := NewVocab([]string{PadToken, StartToken, EndToken, "a", "a"}); err == nil {
		t.Error("duplicate token accepted")
	}
	if _, err := NewVocab([]string{PadToken, StartToken, "a"}); err == nil {
		t.Error("missing reserved token accepted")
	}
}

func TestVocabSerialize(t *testing.T) {
	v := testVocab(t)
	data, err := serializer.SerializeAny(v)
	if err != nil {
		t.Fatal(err)
	}
	var v1 *Vocab
	if err := serializer.DeserializeAny(data, &v1); err != nil {
		t.Fatal(err)
	}
	if v1.Len() != v.Len() {
		t.Fatalf("expected %d tokens but got %d", v.Len(), v1.Len())
	}
	for i := 0; i < v.Len(); i++ {
		if v.Token(i) != v1.Token(i) {
			t.Errorf("token %d: expected %q but got %q", i, v.Token(i), v1.Token(i))
		}
	}
}
