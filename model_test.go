package lagvae

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/serializer"
)

func testModel(t *testing.T) *Model {
	v := testVocab(t)
	m := NewModel(anyvec32.CurrentCreator(), v, 6, 8, 4)
	m.Rand = rand.New(rand.NewSource(13))
	m.InnerIters = 5
	m.EncOpt.Rate = 0.1
	m.DecOpt.Rate = 0.1
	return m
}

func testBatch(t *testing.T) *Batch {
	v := testVocab(t)
	return &Batch{
		Tokens: [][]int{
			{v.Start(), v.Start(), v.Start(), v.Start()},
			{v.MustID("the"), v.MustID("a"), v.MustID("the"), v.MustID("a")},
			{v.MustID("cat"), v.MustID("dog"), v.MustID("dog"), v.MustID("cat")},
			{v.MustID("sat"), v.MustID("sat"), v.End(), v.End()},
			{v.End(), v.End(), v.Pad(), v.Pad()},
		},
		Labels: []int{0, 1, 1, 0},
	}
}

func TestTrainBatch(t *testing.T) {
	m := testModel(t)
	batch := testBatch(t)

	res := m.TrainBatch(batch)
	if math.IsNaN(res.Rec) || math.IsInf(res.Rec, 0) {
		t.Fatalf("reconstruction loss is %f", res.Rec)
	}
	if math.IsNaN(res.Reg) || res.Reg < 0 {
		t.Fatalf("regularization loss is %f", res.Reg)
	}
	if res.InnerSteps < 1 {
		t.Error("aggressive step ran no inner iterations")
	}

	// KL weight anneals by AnnealRate per step, up to 1.
	if math.Abs(res.KLWeight-0.2) > 1e-9 {
		t.Errorf("expected KL weight 0.2 but got %f", res.KLWeight)
	}
	prev := res.KLWeight
	for i := 0; i < 12; i++ {
		res = m.TrainBatch(batch)
		if res.KLWeight < prev || res.KLWeight > 1 {
			t.Fatalf("KL weight went from %f to %f", prev, res.KLWeight)
		}
		prev = res.KLWeight
	}
	if prev != 1 {
		t.Errorf("expected KL weight 1 after annealing but got %f", prev)
	}
}

func TestAnnealFromZero(t *testing.T) {
	m := testModel(t)
	m.KLWeight = 0
	batch := testBatch(t)
	for i := 0; i < 10; i++ {
		m.TrainBatch(batch)
	}
	if m.KLWeight != 1 {
		t.Errorf("expected KL weight 1 after 10 steps but got %f", m.KLWeight)
	}
}

func TestTrainLargerBatch(t *testing.T) {
	tokens := []string{PadToken, StartToken, EndToken}
	for i := 0; i < 47; i++ {
		tokens = append(tokens, fmt.Sprintf("w%d", i))
	}
	v, err := NewVocab(tokens)
	if err != nil {
		t.Fatal(err)
	}
	m := NewModel(anyvec32.CurrentCreator(), v, 16, 32, 8)
	m.Rand = rand.New(rand.NewSource(19))
	m.InnerIters = 5
	m.EncOpt.Rate = 0.1
	m.DecOpt.Rate = 0.1

	rng := rand.New(rand.NewSource(20))
	batch := &Batch{Tokens: make([][]int, 10), Labels: make([]int, 4)}
	for t := range batch.Tokens {
		row := make([]int, 4)
		for i := range row {
			switch t {
			case 0:
				row[i] = v.Start()
			case len(batch.Tokens) - 1:
				row[i] = v.End()
			default:
				row[i] = 3 + rng.Intn(47)
			}
		}
		batch.Tokens[t] = row
	}

	before := m.KLWeight
	res := m.TrainBatch(batch)
	if math.IsNaN(res.Rec+res.Reg) || math.IsInf(res.Rec+res.Reg, 0) {
		t.Fatalf("loss is %f", res.Rec+res.Reg)
	}
	if !(m.KLWeight > before) {
		t.Errorf("KL weight did not increase: %f -> %f", before, m.KLWeight)
	}
}

func TestTrainReducesLoss(t *testing.T) {
	m := testModel(t)
	batch := testBatch(t)
	first := m.TrainBatch(batch)
	var last *TrainResult
	for i := 0; i < 30; i++ {
		last = m.TrainBatch(batch)
	}
	firstLoss := first.Rec + first.Reg
	lastLoss := last.Rec + last.Reg
	if !(lastLoss < firstLoss) {
		t.Errorf("loss went from %f to %f", firstLoss, lastLoss)
	}
}

func TestValidateBatch(t *testing.T) {
	m := testModel(t)
	batch := testBatch(t)
	res := m.ValidateBatch(batch)
	if math.IsNaN(res.Rec) || math.IsNaN(res.Reg) || math.IsNaN(res.MI) {
		t.Fatalf("validation metrics: %+v", res)
	}
	if math.Abs(res.ELBO+(res.Rec+res.Reg)) > 1e-9 {
		t.Errorf("ELBO %f does not match -(%f + %f)", res.ELBO, res.Rec, res.Reg)
	}

	// Validation must not move parameters.
	before := m.Encoder.Stats.Weights.Vector.Data().([]float32)
	m.ValidateBatch(batch)
	m.TestBatch(batch)
	after := m.Encoder.Stats.Weights.Vector.Data().([]float32)
	for i, x := range before {
		if after[i] != x {
			t.Fatalf("weight %d changed from %f to %f", i, x, after[i])
		}
	}
}

func TestModelDecode(t *testing.T) {
	m := testModel(t)
	batch := testBatch(t)

	for _, strategy := range []Strategy{Greedy, Sample, BeamSearch} {
		out, err := m.Decode(batch.Tokens, strategy, 3)
		if err != nil {
			t.Fatalf("%s: %s", strategy, err)
		}
		if len(out) != batch.Size() {
			t.Errorf("%s: expected %d strings but got %d", strategy, batch.Size(), len(out))
		}
	}

	if _, err := m.Decode(batch.Tokens, Strategy("viterbi"), 3); err == nil {
		t.Error("invalid strategy accepted")
	}
}

func TestLatentSweep(t *testing.T) {
	m := testModel(t)
	batch := testBatch(t)
	tokens := make([]int, len(batch.Tokens))
	for i, step := range batch.Tokens {
		tokens[i] = step[0]
	}

	points, err := m.LatentSweep(tokens, 2, 5, Greedy, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 5 {
		t.Fatalf("expected 5 points but got %d", len(points))
	}
	if points[0].Offset != -3 || points[4].Offset != 3 {
		t.Errorf("bad endpoint offsets: %f %f", points[0].Offset, points[4].Offset)
	}
	for i := 1; i < len(points); i++ {
		if points[i].Offset <= points[i-1].Offset {
			t.Errorf("offsets not increasing at %d: %f then %f", i,
				points[i-1].Offset, points[i].Offset)
		}
	}

	if _, err := m.LatentSweep(tokens, m.LatentDims, 5, Greedy, 0); err == nil {
		t.Error("out-of-range latent index accepted")
	}
}

func TestLatentSweepSinglePoint(t *testing.T) {
	m := testModel(t)
	batch := testBatch(t)
	tokens := make([]int, len(batch.Tokens))
	for i, step := range batch.Tokens {
		tokens[i] = step[0]
	}

	points, err := m.LatentSweep(tokens, 0, 1, Greedy, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point but got %d", len(points))
	}
	if points[0].Offset != -3 {
		t.Errorf("expected offset -3 but got %f", points[0].Offset)
	}

	if _, err := m.LatentSweep(tokens, 0, 0, Greedy, 0); err == nil {
		t.Error("zero-point sweep accepted")
	}
}

func TestModelSerialize(t *testing.T) {
	m := testModel(t)
	data, err := serializer.SerializeAny(m)
	if err != nil {
		t.Fatal(err)
	}
	var m1 *Model
	if err := serializer.DeserializeAny(data, &m1); err != nil {
		t.Fatal(err)
	}
	if m1.Vocab.Len() != m.Vocab.Len() || m1.LatentDims != m.LatentDims {
		t.Fatal("architecture mismatch after deserialization")
	}
	tokens := testBatch(t).Tokens
	old := m.Encoder.Apply(tokens).Output().Data().([]float32)
	loaded := m1.Encoder.Apply(tokens).Output().Data().([]float32)
	for i, x := range old {
		if loaded[i] != x {
			t.Fatalf("stat %d: expected %f but got %f", i, x, loaded[i])
		}
	}
}
