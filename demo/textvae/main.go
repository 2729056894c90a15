// Command textvae trains a small sequence VAE on a
// synthetic corpus, then shows greedy and beam-search
// reconstructions and a latent sweep.
package main

import (
	"log"
	"math/rand"
	"sort"
	"strings"

	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/lagvae"
	"github.com/unixpickle/lagvae/vaetrain"
	"github.com/unixpickle/rip"
)

const (
	EmbeddingDims = 32
	HiddenDims    = 64
	LatentDims    = 8
	BatchSize     = 16
	CorpusSize    = 500
)

func main() {
	log.Println("Setting up...")

	creator := anyvec32.CurrentCreator()
	corpus := syntheticCorpus(CorpusSize)
	model := lagvae.NewModel(creator, corpus.Vocab, EmbeddingDims, HiddenDims,
		LatentDims)
	model.Rand = rand.New(rand.NewSource(1))
	model.EncOpt.Rate = 0.5
	model.DecOpt.Rate = 0.5

	trainLeft, valRight := anysgd.HashSplit(corpus, 0.9)
	trainer := &vaetrain.Trainer{
		Model:      model,
		Training:   trainLeft.(*vaetrain.SampleList),
		Validation: valRight.(*vaetrain.SampleList),
		BatchSize:  BatchSize,
		SavePath:   "model_out",
		StatusFunc: func(s *vaetrain.EpochStatus) {
			log.Printf("epoch %d: rec=%.3f reg=%.3f val_elbo=%.3f mi=%.3f aggressive=%v",
				s.Epoch, s.TrainRec, s.TrainReg, s.ValELBO, s.ValMI, s.Aggressive)
		},
	}

	log.Println("Press ctrl+c once to stop...")
	if err := trainer.Run(rip.NewRIP().Chan()); err != nil {
		log.Fatal(err)
	}

	showDecodes(model, trainer.Validation)
	showSweep(model, trainer.Validation)
}

func showDecodes(model *lagvae.Model, list *vaetrain.SampleList) {
	n := list.Len()
	if n > 4 {
		n = 4
	}
	sub := list.Slice(0, n).(*vaetrain.SampleList)
	batch := sub.Batch()
	greedy, err := model.Decode(batch.Tokens, lagvae.Greedy, 0)
	if err != nil {
		log.Fatal(err)
	}
	beam, err := model.Decode(batch.Tokens, lagvae.BeamSearch, 5)
	if err != nil {
		log.Fatal(err)
	}
	for i := 0; i < n; i++ {
		log.Printf("input:  %s", strings.Join(sub.Samples[i].Tokens, " "))
		log.Printf("greedy: %s", greedy[i])
		log.Printf("beam:   %s", beam[i])
	}
}

func showSweep(model *lagvae.Model, list *vaetrain.SampleList) {
	batch := list.Slice(0, 1).(*vaetrain.SampleList).Batch()
	tokens := make([]int, len(batch.Tokens))
	for t, step := range batch.Tokens {
		tokens[t] = step[0]
	}
	points, err := model.LatentSweep(tokens, 0, 7, lagvae.Greedy, 0)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("Sweeping latent coordinate 0...")
	for _, p := range points {
		log.Printf("%+.1f: %s", p.Offset, p.Text)
	}
}

// syntheticCorpus generates simple subject-verb-object
// sentences with a binary sentiment label.
func syntheticCorpus(size int) *vaetrain.SampleList {
	subjects := []string{"the cat", "the dog", "a bird", "my friend"}
	goodVerbs := []string{"loves", "enjoys", "likes"}
	badVerbs := []string{"hates", "avoids", "fears"}
	objects := []string{"the park", "loud music", "long walks", "the rain"}

	words := map[string]bool{}
	for _, group := range [][]string{subjects, goodVerbs, badVerbs, objects} {
		for _, phrase := range group {
			for _, w := range strings.Fields(phrase) {
				words[w] = true
			}
		}
	}
	tokens := []string{lagvae.PadToken, lagvae.StartToken, lagvae.EndToken}
	for w := range words {
		tokens = append(tokens, w)
	}
	sort.Strings(tokens[3:])
	vocab, err := lagvae.NewVocab(tokens)
	if err != nil {
		log.Fatal(err)
	}

	rng := rand.New(rand.NewSource(2))
	samples := make([]*vaetrain.Sample, size)
	for i := range samples {
		label := rng.Intn(2)
		verbs := goodVerbs
		if label == 1 {
			verbs = badVerbs
		}
		sentence := subjects[rng.Intn(len(subjects))] + " " +
			verbs[rng.Intn(len(verbs))] + " " +
			objects[rng.Intn(len(objects))]
		samples[i] = &vaetrain.Sample{
			Tokens: strings.Fields(sentence),
			Label:  label,
		}
	}
	return &vaetrain.SampleList{Samples: samples, Vocab: vocab}
}
