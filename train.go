package lagvae

import (
	"math"

	"github.com/unixpickle/anydiff"
)

// Pre-loss value that any real inner-loop loss will
// undercut immediately.
const burnInPreLoss = 1e4

// A TrainResult reports the losses of one outer training
// step.
type TrainResult struct {
	// Rec and Reg are the reconstruction and
	// regularization losses of the outer step.
	Rec float64
	Reg float64

	// KLWeight is the annealed weight after the step.
	KLWeight float64

	// InnerSteps is the number of encoder-only steps that
	// ran before the outer step.
	InnerSteps int
}

// A ValidationResult reports the metrics of one
// validation or test batch.
type ValidationResult struct {
	Rec float64
	Reg float64

	// MI is the estimated mutual information between
	// inputs and latent codes.
	MI float64

	// ELBO is -(Rec + Reg), the per-sequence evidence
	// lower bound.
	ELBO float64
}

// TrainBatch runs one training step on a batch of padded
// token sequences.
//
// While the schedule is aggressive, the encoder is first
// optimized alone on an inner loop over the same batch,
// and the outer step updates only the decoder; otherwise
// the outer step updates both halves jointly. The KL
// weight anneals once per call.
func (m *Model) TrainBatch(batch *Batch) *TrainResult {
	if m.batchInEpoch == 0 {
		m.Controller.EpochStart(m.epoch)
	}
	m.batchInEpoch++
	m.Decoder.setDropout(true)

	var innerSteps int
	if m.Controller.Aggressive() {
		innerSteps = m.innerLoop(batch)
	}

	cost := m.Costs(m.Encoder.Apply(batch.Tokens), batch.Tokens)
	rec, reg := costValues(cost)
	total := m.totalLoss(cost)

	if m.Controller.Aggressive() {
		g := anydiff.NewGrad(m.Decoder.Parameters()...)
		propagate(total, g)
		m.DecOpt.Step(g)
	} else {
		g := anydiff.NewGrad(m.Parameters()...)
		propagate(total, g)
		m.EncOpt.Step(g)
		m.DecOpt.Step(g)
	}

	m.KLWeight = math.Min(1, m.KLWeight+m.AnnealRate)
	m.Decoder.setDropout(false)
	return &TrainResult{
		Rec:        rec,
		Reg:        reg,
		KLWeight:   m.KLWeight,
		InnerSteps: innerSteps,
	}
}

// innerLoop optimizes the encoder alone on the batch
// until the running per-word loss stops improving, up to
// InnerIters steps. It returns the number of steps taken.
func (m *Model) innerLoop(batch *Batch) int {
	window := m.InnerIters / 10
	if window < 1 {
		window = 1
	}
	preLoss := burnInPreLoss
	var burnLoss float64
	var burnWords int
	var steps int
	for i := 1; i <= m.InnerIters; i++ {
		cost := m.Costs(m.Encoder.Apply(batch.Tokens), batch.Tokens)
		rec, reg := costValues(cost)
		burnLoss += (rec + m.KLWeight*reg) * float64(batch.Size())
		burnWords += batch.NumWords()

		g := anydiff.NewGrad(m.Encoder.Parameters()...)
		propagate(m.totalLoss(cost), g)
		m.EncOpt.Step(g)
		steps = i

		if i%window == 0 {
			cur := burnLoss / float64(burnWords)
			if preLoss-cur < 0 {
				break
			}
			preLoss = cur
			burnLoss = 0
			burnWords = 0
		}
	}
	return steps
}

// ValidateBatch evaluates the losses and the
// mutual-information estimate on a batch without updating
// parameters, and feeds the MI estimate to the aggressive
// schedule.
func (m *Model) ValidateBatch(batch *Batch) *ValidationResult {
	res := m.evalBatch(batch)
	m.Controller.ObserveMI(res.MI)
	return res
}

// TestBatch evaluates a batch like ValidateBatch, but
// without influencing the aggressive schedule.
func (m *Model) TestBatch(batch *Batch) *ValidationResult {
	return m.evalBatch(batch)
}

func (m *Model) evalBatch(batch *Batch) *ValidationResult {
	m.Decoder.setDropout(false)
	stats := m.Encoder.Apply(batch.Tokens)
	cost := m.Costs(stats, batch.Tokens)
	rec, reg := costValues(cost)
	mi := m.Encoder.MutualInformation(batch.Tokens, stats.Output(), m.ZIters, m.Rand)
	return &ValidationResult{
		Rec:  rec,
		Reg:  reg,
		MI:   mi,
		ELBO: -(rec + reg),
	}
}

// FinishEpoch ends the current epoch, stepping both
// learning-rate schedules on the epoch's mean validation
// ELBO.
func (m *Model) FinishEpoch(valELBO float64) {
	m.EncOpt.FinishEpoch(-valELBO)
	m.DecOpt.FinishEpoch(-valELBO)
	m.epoch++
	m.batchInEpoch = 0
}

// totalLoss combines a two-component cost into the
// KL-weighted training loss.
func (m *Model) totalLoss(cost anydiff.Res) anydiff.Res {
	c := cost.Output().Creator()
	return anydiff.Pool(cost, func(cost anydiff.Res) anydiff.Res {
		rec := anydiff.Slice(cost, 0, 1)
		reg := anydiff.Slice(cost, 1, 2)
		return anydiff.Add(rec, anydiff.Scale(reg, c.MakeNumeric(m.KLWeight)))
	})
}

func costValues(cost anydiff.Res) (rec, reg float64) {
	vals := vectorData(cost.Output())
	return vals[0], vals[1]
}

// propagate back-propagates a scalar loss into g.
func propagate(loss anydiff.Res, g anydiff.Grad) {
	c := loss.Output().Creator()
	upstream := c.MakeVectorData(c.MakeNumericList([]float64{1}))
	loss.Propagate(upstream, g)
}
