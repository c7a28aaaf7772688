// Package presentation derives the order a learner sees a quiz in and the
// payloads sent to the learner before and after completion.
package presentation

import (
	"hash/fnv"
	"math/rand/v2"

	"studyquiz-service/internal/domain"
)

// Order maps presentation positions to canonical ids.
type Order struct {
	QuestionOrder []string            `json:"questionOrder"`
	OptionOrder   map[string][]string `json:"optionOrder"`
}

// NewSeed draws a seed for a new attempt. It is stored on the attempt so that
// resuming reproduces the same order.
func NewSeed() uint64 {
	return rand.Uint64()
}

// DeriveOrder returns the presentation order for quiz under seed. The quiz
// itself is never modified. Option order for a question depends only on the
// seed and the question id.
func DeriveOrder(quiz domain.QuizDefinition, seed uint64) Order {
	order := Order{
		QuestionOrder: make([]string, len(quiz.Questions)),
		OptionOrder:   make(map[string][]string, len(quiz.Questions)),
	}
	for i, question := range quiz.Questions {
		order.QuestionOrder[i] = question.ID

		options := make([]string, len(question.Options))
		for j, opt := range question.Options {
			options[j] = opt.ID
		}
		if quiz.Settings.RandomizeOptions {
			shuffle(rand.New(rand.NewPCG(seed, streamFor(question.ID))), options)
		}
		order.OptionOrder[question.ID] = options
	}
	if quiz.Settings.RandomizeQuestions {
		shuffle(rand.New(rand.NewPCG(seed, streamFor(quiz.ID))), order.QuestionOrder)
	}
	return order
}

func shuffle(r *rand.Rand, ids []string) {
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

func streamFor(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}
