package services

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/you/gatekeeper/domain"
)

// Normalize produces the canonical comparison form of an answer:
// lower-cased, leading/trailing whitespace removed. Answer equality
// everywhere is string equality on normalized forms.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var (
	colors  = []string{"red", "blue", "green", "yellow", "white", "black"}
	animals = []string{"cat", "dog", "mouse", "rabbit", "bear"}

	// fruit emoji and their names, the multiple-choice pool
	fruits = []struct {
		Emoji string
		Name  string
	}{
		{"🍎", "apple"}, {"🍌", "banana"}, {"🍇", "grapes"}, {"🍊", "orange"},
		{"🍓", "strawberry"}, {"🍑", "peach"}, {"🍍", "pineapple"}, {"🥝", "kiwi"},
		{"🍒", "cherry"}, {"🍋", "lemon"},
	}
)

// ChoiceOptions is the size of a multiple-choice option set.
const ChoiceOptions = 6

func newRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	// Challenge strength is intentionally weak; a time seed is enough.
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// FreeformGenerator implements domain.ChallengeGenerator with typed
// answers: small arithmetic, bare numbers, and word categories.
type FreeformGenerator struct {
	rng *rand.Rand
}

// NewFreeformGenerator creates a generator. rng may be nil.
func NewFreeformGenerator(rng *rand.Rand) *FreeformGenerator {
	return &FreeformGenerator{rng: newRand(rng)}
}

// Generate implements domain.ChallengeGenerator.
func (g *FreeformGenerator) Generate() domain.Challenge {
	switch g.rng.Intn(7) {
	case 0:
		a, b := g.rng.Intn(9)+1, g.rng.Intn(9)+1
		return domain.Challenge{Prompt: fmt.Sprintf("%d + %d", a, b), Answer: fmt.Sprintf("%d", a+b)}
	case 1:
		a, b := g.rng.Intn(8)+2, g.rng.Intn(3)+2
		return domain.Challenge{Prompt: fmt.Sprintf("%d × %d", a, b), Answer: fmt.Sprintf("%d", a*b)}
	case 2:
		a, b := g.rng.Intn(10)+6, g.rng.Intn(5)+1
		return domain.Challenge{Prompt: fmt.Sprintf("%d - %d", a, b), Answer: fmt.Sprintf("%d", a-b)}
	case 3:
		n := g.rng.Intn(900) + 100
		return domain.Challenge{Prompt: fmt.Sprintf("Type the number: %d", n), Answer: fmt.Sprintf("%d", n)}
	case 4:
		n := g.rng.Intn(90) + 10
		return domain.Challenge{Prompt: fmt.Sprintf("Type the number: %d", n), Answer: fmt.Sprintf("%d", n)}
	case 5:
		word := colors[g.rng.Intn(len(colors))]
		return domain.Challenge{Prompt: "Type the word: " + word, Answer: word}
	default:
		word := animals[g.rng.Intn(len(animals))]
		return domain.Challenge{Prompt: "Type the word: " + word, Answer: word}
	}
}

// ChoiceGenerator implements domain.ChallengeGenerator with a
// multiple-choice option set: one correct fruit emoji plus distinct
// distractors from the same pool, order shuffled.
type ChoiceGenerator struct {
	rng *rand.Rand
}

// NewChoiceGenerator creates a generator. rng may be nil.
func NewChoiceGenerator(rng *rand.Rand) *ChoiceGenerator {
	return &ChoiceGenerator{rng: newRand(rng)}
}

// Generate implements domain.ChallengeGenerator. The returned Options
// contain the canonical answer exactly once and no duplicates.
func (g *ChoiceGenerator) Generate() domain.Challenge {
	perm := g.rng.Perm(len(fruits))
	correct := fruits[perm[0]]

	options := make([]string, 0, ChoiceOptions)
	for _, idx := range perm[:ChoiceOptions] {
		options = append(options, fruits[idx].Emoji)
	}
	g.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return domain.Challenge{
		Prompt:  "Pick the fruit: " + correct.Name,
		Answer:  correct.Emoji,
		Options: options,
	}
}
