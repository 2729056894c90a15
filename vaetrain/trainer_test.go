package vaetrain

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/lagvae"
	"github.com/unixpickle/serializer"
)

func TestTrainerEpoch(t *testing.T) {
	list := testCorpus(t)
	model := lagvae.NewModel(anyvec32.CurrentCreator(), list.Vocab, 6, 8, 4)
	model.Rand = rand.New(rand.NewSource(17))
	model.InnerIters = 3
	model.EncOpt.Rate = 0.1
	model.DecOpt.Rate = 0.1

	savePath := filepath.Join(t.TempDir(), "model")
	stop := make(chan struct{})
	var statuses []*EpochStatus
	trainer := &Trainer{
		Model:      model,
		Training:   list.Slice(0, 3).(*SampleList),
		Validation: list.Slice(3, 4).(*SampleList),
		BatchSize:  2,
		SavePath:   savePath,
		StatusFunc: func(s *EpochStatus) {
			statuses = append(statuses, s)
			if len(statuses) == 3 {
				close(stop)
			}
		},
	}
	if err := trainer.Run(stop); err != nil {
		t.Fatal(err)
	}

	if len(statuses) != 3 {
		t.Fatalf("expected 3 epochs but got %d", len(statuses))
	}
	for i, s := range statuses {
		if s.Epoch != i {
			t.Errorf("status %d has epoch %d", i, s.Epoch)
		}
		if math.IsNaN(s.TrainRec) || math.IsNaN(s.ValELBO) || math.IsNaN(s.ValMI) {
			t.Errorf("epoch %d metrics: %+v", i, s)
		}
	}
	if !statuses[0].Saved {
		t.Error("first epoch did not produce a checkpoint")
	}

	data, err := os.ReadFile(savePath)
	if err != nil {
		t.Fatal(err)
	}
	var loaded *lagvae.Model
	if err := serializer.DeserializeAny(data, &loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.Vocab.Len() != list.Vocab.Len() {
		t.Error("checkpoint has wrong vocabulary")
	}
}

func TestTrainerStop(t *testing.T) {
	list := testCorpus(t)
	model := lagvae.NewModel(anyvec32.CurrentCreator(), list.Vocab, 6, 8, 4)
	model.InnerIters = 1

	stop := make(chan struct{})
	close(stop)
	trainer := &Trainer{
		Model:      model,
		Training:   list.Slice(0, 3).(*SampleList),
		Validation: list.Slice(3, 4).(*SampleList),
		BatchSize:  2,
	}
	if err := trainer.Run(stop); err != nil {
		t.Fatal(err)
	}
}

func TestTrainerEvaluate(t *testing.T) {
	list := testCorpus(t)
	model := lagvae.NewModel(anyvec32.CurrentCreator(), list.Vocab, 6, 8, 4)
	trainer := &Trainer{Model: model, BatchSize: 2}
	status, err := trainer.Evaluate(list)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(status.ValRec) || math.IsNaN(status.ValMI) {
		t.Errorf("test metrics: %+v", status)
	}
	if math.Abs(status.ValELBO+(status.ValRec+status.ValReg)) > 1e-6 {
		t.Errorf("ELBO %f does not match losses", status.ValELBO)
	}
}
