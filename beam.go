package lagvae

import (
	"sort"
	"strings"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A BeamNode is one hypothesis in a beam search tree.
//
// Nodes are immutable once created: each node is given
// its parent at construction and is never re-parented, so
// the parent links always form an acyclic tree.
type BeamNode struct {
	// State is the packed [hidden, cell] decoder state
	// after emitting Token.
	State anyvec.Vector

	// Parent is the hypothesis this node extends, or nil
	// for the root.
	Parent *BeamNode

	Token   int
	LogProb float64
	Depth   int
}

// Sequence reconstructs the token sequence for the
// hypothesis by following parent links to the root and
// reversing, dropping the leading start token.
func (b *BeamNode) Sequence() []int {
	var rev []int
	for n := b; n.Parent != nil; n = n.Parent {
		rev = append(rev, n.Token)
	}
	res := make([]int, len(rev))
	for i, tok := range rev {
		res[len(rev)-1-i] = tok
	}
	return res
}

// BeamSearchDecode decodes one string per latent row
// using best-first beam search with the given width.
//
// Each input is searched independently, but the live
// hypotheses of one search are expanded jointly in a
// single batched decoder step.
// A hypothesis completes when it emits the end token; the
// search stops once width hypotheses have completed or
// the step limit elapses, in which case any still-live
// hypotheses compete with the completed ones.
func (d *Decoder) BeamSearchDecode(z anyvec.Vector, width, maxLength int) []string {
	n := z.Len() / d.LatentDims
	c := z.Creator()
	vocabLen := d.Vocab.Len()
	stateSize := 2 * d.Cell.StateCount
	starts := d.startState(anydiff.NewConst(z), n).Output()

	res := make([]string, n)
	for idx := 0; idx < n; idx++ {
		zRow := z.Slice(idx*d.LatentDims, (idx+1)*d.LatentDims)
		root := &BeamNode{
			State: starts.Slice(idx*stateSize, (idx+1)*stateSize),
			Token: d.Vocab.Start(),
			Depth: 1,
		}
		live := []*BeamNode{root}
		var completed []*BeamNode

		for t := 1; len(completed) < width && t < maxLength; t++ {
			m := len(live)
			states := make([]anyvec.Vector, m)
			tokens := make([]int, m)
			zReps := make([]anyvec.Vector, m)
			for j, node := range live {
				states[j] = node.State
				tokens[j] = node.Token
				zReps[j] = zRow
			}
			logProbs, newStates := d.stepVectors(tokens, c.Concat(states...),
				c.Concat(zReps...), m)

			// Rank all (hypothesis, token) continuations by the
			// combined running log-probability.
			scores := vectorData(logProbs)
			order := make([]int, m*vocabLen)
			for j := range order {
				order[j] = j
				scores[j] += live[j/vocabLen].LogProb
			}
			sort.SliceStable(order, func(a, b int) bool {
				return scores[order[a]] > scores[order[b]]
			})

			var newLive []*BeamNode
			for _, flat := range order[:width-len(completed)] {
				liveID, wordID := flat/vocabLen, flat%vocabLen
				node := &BeamNode{
					State:   newStates.Slice(liveID*stateSize, (liveID+1)*stateSize),
					Parent:  live[liveID],
					Token:   wordID,
					LogProb: scores[flat],
					Depth:   live[liveID].Depth + 1,
				}
				if wordID == d.Vocab.End() {
					completed = append(completed, node)
				} else {
					newLive = append(newLive, node)
				}
			}
			live = newLive
			if len(live) == 0 {
				break
			}
		}

		// Hitting the step limit with too few completions is
		// not an error: the best live hypothesis competes,
		// even though its text will lack an end token.
		completed = append(completed, live...)
		sort.SliceStable(completed, func(a, b int) bool {
			return completed[a].LogProb > completed[b].LogProb
		})
		res[idx] = d.hypothesisString(completed[0])
	}
	return res
}

func (d *Decoder) hypothesisString(node *BeamNode) string {
	var words []string
	for _, tok := range node.Sequence() {
		if tok != d.Vocab.End() {
			words = append(words, d.Vocab.Token(tok))
		}
	}
	return strings.Join(words, " ")
}
