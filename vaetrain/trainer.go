package vaetrain

import (
	"errors"
	"math"
	"os"

	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/lagvae"
	"github.com/unixpickle/serializer"
)

// An EpochStatus summarizes one finished epoch.
type EpochStatus struct {
	Epoch int

	// Mean training losses across the epoch's batches.
	TrainRec float64
	TrainReg float64

	// Mean validation metrics.
	ValRec  float64
	ValReg  float64
	ValMI   float64
	ValELBO float64

	// Aggressive reports whether the epoch ran in
	// aggressive (encoder-heavy) mode.
	Aggressive bool

	// Saved reports whether this epoch produced a new best
	// checkpoint.
	Saved bool
}

// A Trainer runs epochs of VAE training with per-epoch
// validation.
type Trainer struct {
	Model      *lagvae.Model
	Training   *SampleList
	Validation *SampleList
	BatchSize  int

	// SavePath, if non-empty, is where the model is written
	// whenever the validation ELBO reaches a new best.
	SavePath string

	// StatusFunc, if non-nil, is called after every epoch.
	StatusFunc func(s *EpochStatus)

	epoch    int
	bestELBO float64
	started  bool
}

// Run trains until the stop channel is closed.
//
// The channel is only checked between batches, so the
// model is never left mid-update; the epoch in progress
// is abandoned rather than finished.
func (t *Trainer) Run(stop <-chan struct{}) error {
	if t.Training.Len() == 0 || t.Validation.Len() == 0 {
		return errors.New("train: empty sample list")
	}
	if !t.started {
		t.bestELBO = math.Inf(-1)
		t.started = true
	}
	for {
		done, err := t.epochRun(stop)
		if err != nil {
			return essentials.AddCtx("train", err)
		} else if done {
			return nil
		}
	}
}

func (t *Trainer) epochRun(stop <-chan struct{}) (done bool, err error) {
	anysgd.Shuffle(t.Training)

	var trainRec, trainReg float64
	var trainBatches int
	for idx := 0; idx < t.Training.Len(); idx += t.BatchSize {
		if stopped(stop) {
			return true, nil
		}
		end := idx + t.BatchSize
		if end > t.Training.Len() {
			end = t.Training.Len()
		}
		batch := t.Training.Slice(idx, end).(*SampleList).Batch()
		res := t.Model.TrainBatch(batch)
		trainRec += res.Rec
		trainReg += res.Reg
		trainBatches++
	}

	var valRec, valReg, valMI, valELBO float64
	var valBatches int
	for idx := 0; idx < t.Validation.Len(); idx += t.BatchSize {
		if stopped(stop) {
			return true, nil
		}
		end := idx + t.BatchSize
		if end > t.Validation.Len() {
			end = t.Validation.Len()
		}
		batch := t.Validation.Slice(idx, end).(*SampleList).Batch()
		res := t.Model.ValidateBatch(batch)
		valRec += res.Rec
		valReg += res.Reg
		valMI += res.MI
		valELBO += res.ELBO
		valBatches++
	}
	valRec /= float64(valBatches)
	valReg /= float64(valBatches)
	valMI /= float64(valBatches)
	valELBO /= float64(valBatches)

	status := &EpochStatus{
		Epoch:      t.epoch,
		TrainRec:   trainRec / float64(trainBatches),
		TrainReg:   trainReg / float64(trainBatches),
		ValRec:     valRec,
		ValReg:     valReg,
		ValMI:      valMI,
		ValELBO:    valELBO,
		Aggressive: t.Model.Controller.Aggressive(),
	}

	t.Model.FinishEpoch(valELBO)
	t.epoch++

	if valELBO > t.bestELBO {
		t.bestELBO = valELBO
		if t.SavePath != "" {
			if err := t.save(); err != nil {
				return false, err
			}
			status.Saved = true
		}
	}
	if t.StatusFunc != nil {
		t.StatusFunc(status)
	}
	return false, nil
}

// Evaluate computes mean test metrics over a held-out
// sample list, without touching the training schedule.
func (t *Trainer) Evaluate(list *SampleList) (*EpochStatus, error) {
	if list.Len() == 0 {
		return nil, errors.New("evaluate: empty sample list")
	}
	var rec, reg, mi, elbo float64
	var batches int
	for idx := 0; idx < list.Len(); idx += t.BatchSize {
		end := idx + t.BatchSize
		if end > list.Len() {
			end = list.Len()
		}
		res := t.Model.TestBatch(list.Slice(idx, end).(*SampleList).Batch())
		rec += res.Rec
		reg += res.Reg
		mi += res.MI
		elbo += res.ELBO
		batches++
	}
	n := float64(batches)
	return &EpochStatus{
		Epoch:   t.epoch,
		ValRec:  rec / n,
		ValReg:  reg / n,
		ValMI:   mi / n,
		ValELBO: elbo / n,
	}, nil
}

func (t *Trainer) save() error {
	data, err := serializer.SerializeAny(t.Model)
	if err != nil {
		return essentials.AddCtx("save checkpoint", err)
	}
	if err := os.WriteFile(t.SavePath, data, 0644); err != nil {
		return essentials.AddCtx("save checkpoint", err)
	}
	return nil
}

func stopped(stop <-chan struct{}) bool {
	if stop == nil {
		return false
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
