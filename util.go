package lagvae

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// joinRows concatenates two row batches side by side,
// producing an n-row batch whose rows are the rows of a
// followed by the rows of b.
func joinRows(a, b anydiff.Res, n int) anydiff.Res {
	aLen := a.Output().Len() / n
	bLen := b.Output().Len() / n
	return anydiff.Pool(a, func(a anydiff.Res) anydiff.Res {
		return anydiff.Pool(b, func(b anydiff.Res) anydiff.Res {
			var parts []anydiff.Res
			for i := 0; i < n; i++ {
				parts = append(parts, anydiff.Slice(a, i*aLen, (i+1)*aLen),
					anydiff.Slice(b, i*bLen, (i+1)*bLen))
			}
			return anydiff.Concat(parts...)
		})
	})
}

// sliceRows extracts the column range [start, end) from
// every row of an n-row batch with rowLen columns.
//
// The caller should pool the input if it slices the same
// batch more than once.
func sliceRows(in anydiff.Res, n, rowLen, start, end int) anydiff.Res {
	if in.Output().Len() != n*rowLen {
		panic(fmt.Sprintf("input length should be %d, but got %d", n*rowLen,
			in.Output().Len()))
	}
	parts := make([]anydiff.Res, n)
	for i := 0; i < n; i++ {
		parts[i] = anydiff.Slice(in, i*rowLen+start, i*rowLen+end)
	}
	return anydiff.Concat(parts...)
}

// vectorData extracts a vector's components as float64s.
func vectorData(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	case []float64:
		return data
	default:
		panic(fmt.Sprintf("unsupported numeric list: %T", data))
	}
}

// oneHotRows builds a packed batch of one-hot rows for
// the given token IDs.
// The padding ID produces an all-zero row, which makes a
// dot-product cost ignore padded positions.
func oneHotRows(c anyvec.Creator, ids []int, vocabSize, padID int) anyvec.Vector {
	data := make([]float64, len(ids)*vocabSize)
	for i, id := range ids {
		if id < 0 || id >= vocabSize {
			panic(fmt.Sprintf("token ID out of range: %d", id))
		}
		if id != padID {
			data[i*vocabSize+id] = 1
		}
	}
	return c.MakeVectorData(c.MakeNumericList(data))
}

// randomize fills a vector with uniform random values in
// the range (-scale, scale).
func randomize(v anyvec.Vector, scale float64) {
	anyvec.Rand(v, anyvec.Uniform, nil)
	c := v.Creator()
	v.Scale(c.MakeNumeric(2 * scale))
	v.AddScalar(c.MakeNumeric(-scale))
}
