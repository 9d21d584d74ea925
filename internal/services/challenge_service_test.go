package services

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "RED", "red"},
		{"trims whitespace", "  red \n", "red"},
		{"both", "  RED ", "red"},
		{"emoji untouched", "🍎", "🍎"},
		{"inner spaces kept", "two words", "two words"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFreeformGenerator_AnswersSolvePrompts(t *testing.T) {
	g := NewFreeformGenerator(rand.New(rand.NewSource(1)))

	for i := 0; i < 200; i++ {
		ch := g.Generate()
		if ch.Prompt == "" || ch.Answer == "" {
			t.Fatalf("empty challenge: %+v", ch)
		}
		if len(ch.Options) != 0 {
			t.Fatalf("freeform challenge carries options: %+v", ch)
		}
		if ch.Answer != Normalize(ch.Answer) {
			t.Errorf("answer %q not in canonical form", ch.Answer)
		}

		switch {
		case strings.HasPrefix(ch.Prompt, "Type the number: "):
			if got := strings.TrimPrefix(ch.Prompt, "Type the number: "); got != ch.Answer {
				t.Errorf("number prompt %q has answer %q", ch.Prompt, ch.Answer)
			}
		case strings.HasPrefix(ch.Prompt, "Type the word: "):
			if got := strings.TrimPrefix(ch.Prompt, "Type the word: "); got != ch.Answer {
				t.Errorf("word prompt %q has answer %q", ch.Prompt, ch.Answer)
			}
		default:
			if got := solveArithmetic(t, ch.Prompt); got != ch.Answer {
				t.Errorf("prompt %q solves to %q, answer is %q", ch.Prompt, got, ch.Answer)
			}
		}
	}
}

func solveArithmetic(t *testing.T, prompt string) string {
	t.Helper()
	fields := strings.Fields(prompt)
	if len(fields) != 3 {
		t.Fatalf("unexpected arithmetic prompt %q", prompt)
	}
	a, err1 := strconv.Atoi(fields[0])
	b, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected operands in %q", prompt)
	}
	switch fields[1] {
	case "+":
		return strconv.Itoa(a + b)
	case "-":
		return strconv.Itoa(a - b)
	case "×":
		return strconv.Itoa(a * b)
	}
	t.Fatalf("unexpected operator in %q", prompt)
	return ""
}

func TestChoiceGenerator_OptionSet(t *testing.T) {
	g := NewChoiceGenerator(rand.New(rand.NewSource(7)))

	for i := 0; i < 200; i++ {
		ch := g.Generate()
		if len(ch.Options) != ChoiceOptions {
			t.Fatalf("options = %d, want %d", len(ch.Options), ChoiceOptions)
		}

		seen := make(map[string]int, len(ch.Options))
		for _, opt := range ch.Options {
			seen[opt]++
		}
		if len(seen) != ChoiceOptions {
			t.Fatalf("duplicate options in %v", ch.Options)
		}
		if seen[ch.Answer] != 1 {
			t.Fatalf("answer %q appears %d times in %v", ch.Answer, seen[ch.Answer], ch.Options)
		}
		if !strings.HasPrefix(ch.Prompt, "Pick the fruit: ") {
			t.Fatalf("unexpected prompt %q", ch.Prompt)
		}
	}
}
