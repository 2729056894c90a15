package lagvae

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var g CellGate
	serializer.RegisterTypedDeserializer(g.SerializerType(), DeserializeCellGate)
	var l LSTMCell
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLSTMCell)
}

// An LSTMCell is a single-layer LSTM step function whose
// state is packed per row as [hidden, cell].
//
// Unlike a recurrent block with a learned start state, an
// LSTMCell leaves the start state to its caller, which
// makes it suitable for latent-conditioned decoding.
type LSTMCell struct {
	InCount    int
	StateCount int

	InValue  *CellGate
	In       *CellGate
	Remember *CellGate
	Output   *CellGate
}

// NewLSTMCell creates a randomized LSTMCell.
func NewLSTMCell(c anyvec.Creator, in, state int) *LSTMCell {
	return &LSTMCell{
		InCount:    in,
		StateCount: state,
		InValue:    NewCellGate(c, in, state, anynet.Tanh),
		In:         NewCellGate(c, in, state, anynet.Sigmoid),
		Remember:   NewCellGate(c, in, state, anynet.Sigmoid),
		Output:     NewCellGate(c, in, state, anynet.Sigmoid),
	}
}

// DeserializeLSTMCell deserializes an LSTMCell.
func DeserializeLSTMCell(d []byte) (*LSTMCell, error) {
	var inVal, in, rem, out *CellGate
	if err := serializer.DeserializeAny(d, &inVal, &in, &rem, &out); err != nil {
		return nil, essentials.AddCtx("deserialize LSTMCell", err)
	}
	if in.Biases.Vector.Len() == 0 {
		return nil, errors.New("deserialize LSTMCell: empty gate")
	}
	return &LSTMCell{
		InCount:    in.InputWeights.Vector.Len() / in.Biases.Vector.Len(),
		StateCount: in.Biases.Vector.Len(),
		InValue:    inVal,
		In:         in,
		Remember:   rem,
		Output:     out,
	}, nil
}

// Step applies the cell for one timestep to a batch of n
// inputs and packed [hidden, cell] states.
// It returns the new hidden batch as the output and the
// new packed state.
//
// The signature matches anyrnn.FuncBlock.Func, so the
// cell can drive a recurrent unroll directly.
func (l *LSTMCell) Step(in, state anydiff.Res, n int) (out, newState anydiff.Res) {
	s := l.StateCount
	hidden := sliceRows(state, n, 2*s, 0, s)
	cell := sliceRows(state, n, 2*s, s, 2*s)

	inValue := l.InValue.Apply(hidden, in, n)
	inGate := l.In.Apply(hidden, in, n)
	remember := l.Remember.Apply(hidden, in, n)
	outGate := l.Output.Apply(hidden, in, n)

	newCell := anydiff.Add(anydiff.Mul(cell, remember), anydiff.Mul(inValue, inGate))
	newHidden := anydiff.Mul(anydiff.Tanh(newCell), outGate)

	return newHidden, joinRows(newHidden, newCell, n)
}

// Parameters returns the parameters of the cell.
func (l *LSTMCell) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, g := range []*CellGate{l.InValue, l.In, l.Remember, l.Output} {
		res = append(res, g.Parameters()...)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// an LSTMCell with the serializer package.
func (l *LSTMCell) SerializerType() string {
	return "github.com/unixpickle/lagvae.LSTMCell"
}

// Serialize serializes the LSTMCell.
func (l *LSTMCell) Serialize() ([]byte, error) {
	return serializer.SerializeAny(l.InValue, l.In, l.Remember, l.Output)
}

// A CellGate computes a gated value from the previous
// hidden batch and the current input batch.
type CellGate struct {
	StateWeights *anydiff.Var
	InputWeights *anydiff.Var
	Biases       *anydiff.Var
	Activation   anynet.Layer
}

// NewCellGate creates a randomized CellGate.
func NewCellGate(c anyvec.Creator, in, state int, activation anynet.Layer) *CellGate {
	res := &CellGate{
		StateWeights: anydiff.NewVar(c.MakeVector(state * state)),
		InputWeights: anydiff.NewVar(c.MakeVector(in * state)),
		Biases:       anydiff.NewVar(c.MakeVector(state)),
		Activation:   activation,
	}
	randomize(res.StateWeights.Vector, 0.01)
	randomize(res.InputWeights.Vector, 0.01)
	randomize(res.Biases.Vector, 0.01)
	return res
}

// DeserializeCellGate deserializes a CellGate.
func DeserializeCellGate(d []byte) (*CellGate, error) {
	var sw, iw, b *anyvecsave.S
	var a anynet.Activation
	if err := serializer.DeserializeAny(d, &sw, &iw, &b, &a); err != nil {
		return nil, essentials.AddCtx("deserialize CellGate", err)
	}
	return &CellGate{
		StateWeights: anydiff.NewVar(sw.Vector),
		InputWeights: anydiff.NewVar(iw.Vector),
		Biases:       anydiff.NewVar(b.Vector),
		Activation:   a,
	}, nil
}

// Apply computes the gate value for a batch of n rows.
func (g *CellGate) Apply(hidden, in anydiff.Res, n int) anydiff.Res {
	state := g.Biases.Vector.Len()
	inCount := g.InputWeights.Vector.Len() / state
	wState := applyWeights(state, state, g.StateWeights, hidden, n)
	wInput := applyWeights(inCount, state, g.InputWeights, in, n)
	biased := anydiff.AddRepeated(anydiff.Add(wState, wInput), g.Biases)
	return g.Activation.Apply(biased, n)
}

// Parameters returns the parameters of the gate.
func (g *CellGate) Parameters() []*anydiff.Var {
	return []*anydiff.Var{g.StateWeights, g.InputWeights, g.Biases}
}

// SerializerType returns the unique ID used to serialize
// a CellGate with the serializer package.
func (g *CellGate) SerializerType() string {
	return "github.com/unixpickle/lagvae.CellGate"
}

// Serialize serializes the CellGate.
func (g *CellGate) Serialize() ([]byte, error) {
	if s, ok := g.Activation.(serializer.Serializer); ok {
		return serializer.SerializeAny(
			&anyvecsave.S{Vector: g.StateWeights.Vector},
			&anyvecsave.S{Vector: g.InputWeights.Vector},
			&anyvecsave.S{Vector: g.Biases.Vector},
			s,
		)
	}
	return nil, errors.New("serialize CellGate: activation is not a Serializer")
}

func applyWeights(in, out int, weights *anydiff.Var, batch anydiff.Res, n int) anydiff.Res {
	weightMat := &anydiff.Matrix{Data: weights, Rows: out, Cols: in}
	inMat := &anydiff.Matrix{Data: batch, Rows: n, Cols: in}
	return anydiff.MatMul(false, true, inMat, weightMat).Data
}
