package services

import (
	"fmt"
	"strconv"

	"github.com/you/gatekeeper/domain"
)

// Message texts and keyboards for the verification flow. Kept next to
// the state machine so every displayed state has one renderer.

func renderChallenge(s *domain.Session) string {
	buffer := s.InputBuffer
	if buffer == "" {
		buffer = "…"
	}
	return fmt.Sprintf(
		"🔐 Verification\n\nQuestion: %s\n\nYour answer: %s\n\nAttempts left: %d",
		s.Prompt, buffer, s.AttemptsRemaining,
	)
}

func renderRetry(s *domain.Session) string {
	return fmt.Sprintf(
		"❌ Wrong answer!\n\nNew question: %s\n\nAttempts left: %d",
		s.Prompt, s.AttemptsRemaining,
	)
}

const (
	msgApproved      = "✅ You passed the check. Welcome!"
	msgDeclined      = "❌ Out of attempts. Your request was declined; you can apply again later."
	msgExpired       = "⏰ Time is up. The verification session expired; apply again to retry."
	msgAdmitted      = "🎉 Welcome back! Your request was approved automatically."
	msgApproveFailed = "⚠️ Verification passed but something went wrong on our side. Contact an operator."
)

func challengeKeyboard(s *domain.Session) [][]domain.ButtonSpec {
	if len(s.Options) > 0 {
		return optionKeyboard(s.Options)
	}
	return digitKeyboard()
}

// optionKeyboard lays the multiple-choice options out in rows of three.
func optionKeyboard(options []string) [][]domain.ButtonSpec {
	var rows [][]domain.ButtonSpec
	var row []domain.ButtonSpec
	for i, opt := range options {
		row = append(row, domain.ButtonSpec{Text: opt, Data: string(domain.ButtonOption) + ":" + opt})
		if len(row) == 3 || i == len(options)-1 {
			rows = append(rows, row)
			row = nil
		}
	}
	return rows
}

// digitKeyboard is the entry pad for freeform answers: digits plus
// backspace, submit and refresh. Word answers arrive as plain text.
func digitKeyboard() [][]domain.ButtonSpec {
	var rows [][]domain.ButtonSpec
	var row []domain.ButtonSpec
	for d := 1; d <= 9; d++ {
		row = append(row, digitButton(d))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	rows = append(rows, []domain.ButtonSpec{
		digitButton(0),
		{Text: "⌫", Data: string(domain.ButtonBackspace)},
		{Text: "✅ Done", Data: string(domain.ButtonSubmit)},
	})
	rows = append(rows, []domain.ButtonSpec{
		{Text: "🔄 New question", Data: string(domain.ButtonRefresh)},
	})
	return rows
}

func digitButton(d int) domain.ButtonSpec {
	s := strconv.Itoa(d)
	return domain.ButtonSpec{Text: s, Data: string(domain.ButtonDigit) + ":" + s}
}
