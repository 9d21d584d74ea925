package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
)

// BroadcastConfig tunes the dispatcher's throughput behavior.
type BroadcastConfig struct {
	// Delay is inserted between consecutive sends.
	Delay time.Duration
	// BatchSize is how many sends pass between progress reports.
	BatchSize int
}

// BroadcastDispatcher implements domain.Broadcaster: one payload,
// fanned out strictly sequentially over a recipient snapshot fixed at
// dispatch time. It holds no lock over any shared store while running,
// so a long job never stalls verification traffic.
type BroadcastDispatcher struct {
	gateway domain.Gateway
	cfg     BroadcastConfig
	log     zerolog.Logger
}

// NewBroadcastDispatcher creates a dispatcher.
func NewBroadcastDispatcher(gw domain.Gateway, cfg BroadcastConfig, log zerolog.Logger) *BroadcastDispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &BroadcastDispatcher{
		gateway: gw,
		cfg:     cfg,
		log:     log.With().Str("component", "broadcast").Logger(),
	}
}

// Dispatch implements domain.Broadcaster. A send failure is logged
// with the recipient and counted; it never aborts the rest of the job.
// progress (optional) fires after every BatchSize sends and after the
// final one; sent+failed never decreases between reports. On return,
// sent+failed equals the number of recipients attempted, which is
// total unless ctx was canceled between sends.
func (d *BroadcastDispatcher) Dispatch(ctx context.Context, payload domain.BroadcastPayload, recipients []int64, progress func(domain.BroadcastProgress)) (*domain.BroadcastResult, error) {
	snapshot := make([]int64, len(recipients))
	copy(snapshot, recipients)

	result := &domain.BroadcastResult{Total: len(snapshot), StartedAt: time.Now()}
	d.log.Info().Int("total", result.Total).Msg("broadcast started")

	for i, userID := range snapshot {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(result.StartedAt)
			return result, err
		}

		if err := d.send(ctx, userID, payload); err != nil {
			result.Failed++
			d.log.Error().Err(err).Int64("user_id", userID).Msg("broadcast send failed")
		} else {
			result.Sent++
		}

		done := result.Sent + result.Failed
		if progress != nil && (done%d.cfg.BatchSize == 0 || done == result.Total) {
			progress(domain.BroadcastProgress{
				Sent:    result.Sent,
				Failed:  result.Failed,
				Total:   result.Total,
				Percent: float64(done) / float64(result.Total) * 100,
			})
		}

		if d.cfg.Delay > 0 && i < len(snapshot)-1 {
			select {
			case <-time.After(d.cfg.Delay):
			case <-ctx.Done():
				result.Duration = time.Since(result.StartedAt)
				return result, ctx.Err()
			}
		}
	}

	result.Duration = time.Since(result.StartedAt)
	d.log.Info().Int("sent", result.Sent).Int("failed", result.Failed).Int("total", result.Total).
		Dur("took", result.Duration).Msg("broadcast finished")
	return result, nil
}

func (d *BroadcastDispatcher) send(ctx context.Context, userID int64, payload domain.BroadcastPayload) error {
	switch payload.Kind {
	case domain.BroadcastPhoto:
		return d.gateway.SendPhoto(ctx, userID, payload.FileID, payload.Caption)
	case domain.BroadcastVideo:
		return d.gateway.SendVideo(ctx, userID, payload.FileID, payload.Caption)
	default:
		_, err := d.gateway.SendMessage(ctx, userID, payload.Text, &domain.SendOptions{Markdown: true})
		return err
	}
}
