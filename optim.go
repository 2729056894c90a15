package lagvae

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
)

// An Optimizer owns the optimization state for one subset
// of a model's parameters.
//
// A gradient step transforms the gradient (if a
// Transformer is set), scales it by the negated rate, and
// adds it to the variables, like anysgd does.
type Optimizer struct {
	Params []*anydiff.Var

	// Rate is the current learning rate.
	// It is reduced in place by Schedule.
	Rate float64

	// Transformer, if non-nil, pre-conditions gradients
	// (e.g. anysgd.Adam).
	Transformer anysgd.Transformer

	// Schedule, if non-nil, reduces Rate when the
	// validation metric plateaus.
	Schedule *Plateau
}

// Step applies one gradient step.
//
// The gradient may contain entries for variables outside
// of o.Params; those entries are ignored.
// The retained entries are modified in place.
func (o *Optimizer) Step(g anydiff.Grad) {
	sub := anydiff.Grad{}
	for _, p := range o.Params {
		if vec, ok := g[p]; ok {
			sub[p] = vec
		}
	}
	if len(sub) == 0 {
		return
	}
	if o.Transformer != nil {
		sub = o.Transformer.Transform(sub)
	}
	for _, vec := range sub {
		sub.Scale(vec.Creator().MakeNumeric(-o.Rate))
		break
	}
	sub.AddToVars()
}

// FinishEpoch feeds the epoch's validation metric to the
// schedule, reducing the rate if the metric plateaued.
func (o *Optimizer) FinishEpoch(metric float64) {
	if o.Schedule != nil && o.Schedule.Step(metric) {
		o.Rate *= o.Schedule.Factor
	}
}

// A Plateau tracks a to-be-minimized metric across epochs
// and signals a rate reduction after Patience consecutive
// epochs without improvement.
//
// An initial cooldown keeps the schedule from triggering
// before a minimum number of epochs has elapsed.
type Plateau struct {
	// Factor is the rate multiplier applied on reduction.
	Factor float64

	// Patience is the number of non-improving epochs which
	// are tolerated before a reduction.
	Patience int

	best     float64
	bad      int
	cooldown int
}

// NewPlateau creates a Plateau schedule.
//
// The minEpochs argument is the number of leading epochs
// during which the schedule never triggers.
func NewPlateau(factor float64, patience, minEpochs int) *Plateau {
	return &Plateau{
		Factor:   factor,
		Patience: patience,
		best:     math.Inf(1),
		cooldown: minEpochs,
	}
}

// Step records one epoch's metric and reports whether the
// rate should be reduced.
func (p *Plateau) Step(metric float64) bool {
	if metric < p.best {
		p.best = metric
		p.bad = 0
		if p.cooldown > 0 {
			p.cooldown--
		}
		return false
	}
	if p.cooldown > 0 {
		p.cooldown--
		return false
	}
	p.bad++
	if p.bad > p.Patience {
		p.bad = 0
		return true
	}
	return false
}
