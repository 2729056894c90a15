package lagvae

// An AggressiveController decides when aggressive
// (encoder-heavy) training should stop.
//
// It accumulates validation-time mutual-information
// estimates, normalizes them per epoch, and permanently
// switches to standard training once the estimate has
// failed to improve for Patience epochs, or once a
// configured epoch ceiling is reached.
// The switch is one-way: the controller never re-enters
// aggressive mode.
type AggressiveController struct {
	// Patience is the number of remaining non-improving
	// epochs before the switch.
	Patience int

	// MaxEpochs forces standard mode for any epoch index at
	// or beyond it, regardless of Patience.
	MaxEpochs int

	aggressive bool
	stableMI   bool

	miPrev     float64
	miCurr     float64
	valBatches int
}

// NewAggressiveController creates a controller which
// starts out in aggressive mode.
func NewAggressiveController(patience, maxEpochs int) *AggressiveController {
	return &AggressiveController{
		Patience:   patience,
		MaxEpochs:  maxEpochs,
		aggressive: true,
	}
}

// EpochStart evaluates the transition rule at the start
// of a training epoch, then resets the accumulator for
// the next round of validation batches.
func (a *AggressiveController) EpochStart(epoch int) {
	if a.valBatches > 0 {
		a.miCurr /= float64(a.valBatches)
	}
	if a.aggressive && a.miCurr < a.miPrev {
		a.stableMI = true
		a.Patience--
		if a.Patience <= 0 {
			a.aggressive = false
		}
	}
	if epoch >= a.MaxEpochs {
		a.aggressive = false
	}
	a.miPrev = a.miCurr
	a.miCurr = 0
	a.valBatches = 0
}

// ObserveMI accumulates one validation batch's
// mutual-information estimate.
func (a *AggressiveController) ObserveMI(mi float64) {
	a.miCurr += mi
	a.valBatches++
}

// Aggressive reports whether aggressive training is
// currently active.
func (a *AggressiveController) Aggressive() bool {
	return a.aggressive
}

// StableMI reports whether the mutual-information
// estimate has stopped improving at least once.
func (a *AggressiveController) StableMI() bool {
	return a.stableMI
}
