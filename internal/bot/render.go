package bot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/you/gatekeeper/domain"
)

const welcomeText = "👋 Hi! To enter the channel you first pass a short check.\n" +
	"Press the button below when you are ready."

const rulesText = "Answer the question within 5 minutes. You get 3 attempts; " +
	"the refresh button swaps the question without spending one."

func renderStats(s *domain.Stats) string {
	var b strings.Builder
	b.WriteString("📊 Stats\n\n")
	fmt.Fprintf(&b, "Users known: %d\n", s.TotalUsers)
	fmt.Fprintf(&b, "Approved: %d\n", s.ApprovedUsers)
	fmt.Fprintf(&b, "Verifying now: %d\n", s.ActiveSessions)
	fmt.Fprintf(&b, "New in 24h: %d\n", s.NewLast24h)
	fmt.Fprintf(&b, "New in 7d: %d", s.NewLast7d)
	return b.String()
}

func renderPending(entries []domain.PendingEntry) string {
	if len(entries) == 0 {
		return "👥 No one is verifying right now."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Verifying now: %d\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "\n• %d — %q, attempts used %d, %ds left",
			e.UserID, e.Prompt, e.AttemptsUsed, e.SecondsLeft)
	}
	return b.String()
}

func renderExport(doc *domain.ExportDocument) (data []byte, filename string, err error) {
	data, err = json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return data, "users_" + doc.ExportedAt.UTC().Format("20060102_150405") + ".json", nil
}

func renderCleared(n int) string {
	return fmt.Sprintf("🧹 Dropped %d active session(s).", n)
}

func renderProgress(p domain.BroadcastProgress) string {
	return fmt.Sprintf("📣 Sending… %d/%d (%.0f%%), %d failed",
		p.Sent+p.Failed, p.Total, p.Percent, p.Failed)
}

func renderResult(r *domain.BroadcastResult) string {
	return fmt.Sprintf("📣 Broadcast done: %d sent, %d failed, %d total in %s",
		r.Sent, r.Failed, r.Total, r.Duration.Round(time.Second))
}
