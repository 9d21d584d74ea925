package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/you/gatekeeper/domain"
)

// Raw Bot API update shapes. Decoding into domain events happens here,
// once, at the gateway boundary; nothing past this package inspects
// payload strings.

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (u User) fullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u User) profile() domain.UserProfile {
	return domain.UserProfile{ID: u.ID, Username: u.Username, FullName: u.fullName()}
}

type Chat struct {
	ID int64 `json:"id"`
}

type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Video struct {
	FileID string `json:"file_id"`
}

type Message struct {
	MessageID int64       `json:"message_id"`
	From      *User       `json:"from"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Photo     []PhotoSize `json:"photo"`
	Video     *Video      `json:"video"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

type ChatJoinRequest struct {
	Chat Chat `json:"chat"`
	From User `json:"from"`
}

type Update struct {
	UpdateID        int64            `json:"update_id"`
	Message         *Message         `json:"message"`
	CallbackQuery   *CallbackQuery   `json:"callback_query"`
	ChatJoinRequest *ChatJoinRequest `json:"chat_join_request"`
}

// buttonFromData maps callback payloads onto the closed button set.
// Payloads with an argument use a "name:arg" form.
func buttonFromData(data string) (domain.Button, string, bool) {
	name, arg, _ := strings.Cut(data, ":")
	switch b := domain.Button(name); b {
	case domain.ButtonStartCaptcha, domain.ButtonRules,
		domain.ButtonDigit, domain.ButtonBackspace, domain.ButtonSubmit, domain.ButtonRefresh,
		domain.ButtonOption,
		domain.ButtonAdminStats, domain.ButtonAdminUsers, domain.ButtonAdminExport,
		domain.ButtonAdminBroadcast, domain.ButtonBroadcastConfirm, domain.ButtonBroadcastCancel:
		return b, arg, true
	default:
		return "", "", false
	}
}

// DecodeUpdate converts one raw update into a domain event. Returns
// false for update kinds the bot does not consume (bot messages,
// unknown buttons, non-text messages without media context).
func DecodeUpdate(u Update) (domain.Event, bool) {
	switch {
	case u.ChatJoinRequest != nil:
		req := u.ChatJoinRequest
		return domain.JoinRequestEvent{UserID: req.From.ID, Profile: req.From.profile()}, true

	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		button, arg, ok := buttonFromData(cq.Data)
		if !ok {
			return nil, false
		}
		var ref domain.MessageRef
		if cq.Message != nil {
			ref = domain.MessageRef(cq.Message.MessageID)
		}
		return domain.ButtonEvent{
			UserID:     cq.From.ID,
			Button:     button,
			Arg:        arg,
			CallbackID: cq.ID,
			Message:    ref,
			Profile:    cq.From.profile(),
		}, true

	case u.Message != nil:
		msg := u.Message
		if msg.From == nil || msg.From.IsBot {
			return nil, false
		}
		// Photo sizes arrive smallest first; the last is the original.
		if len(msg.Photo) > 0 {
			return domain.MediaEvent{
				UserID:  msg.From.ID,
				Kind:    domain.BroadcastPhoto,
				FileID:  msg.Photo[len(msg.Photo)-1].FileID,
				Caption: msg.Caption,
				Message: domain.MessageRef(msg.MessageID),
				Profile: msg.From.profile(),
			}, true
		}
		if msg.Video != nil {
			return domain.MediaEvent{
				UserID:  msg.From.ID,
				Kind:    domain.BroadcastVideo,
				FileID:  msg.Video.FileID,
				Caption: msg.Caption,
				Message: domain.MessageRef(msg.MessageID),
				Profile: msg.From.profile(),
			}, true
		}
		if msg.Text == "" {
			return nil, false
		}
		if strings.HasPrefix(msg.Text, "/") {
			name, args, _ := strings.Cut(strings.TrimPrefix(msg.Text, "/"), " ")
			// "/stats@MyBot" addresses this bot like "/stats" does.
			name, _, _ = strings.Cut(name, "@")
			return domain.CommandEvent{
				UserID:  msg.From.ID,
				Name:    name,
				Args:    strings.TrimSpace(args),
				Profile: msg.From.profile(),
			}, true
		}
		return domain.TextEvent{
			UserID:  msg.From.ID,
			Text:    msg.Text,
			Message: domain.MessageRef(msg.MessageID),
			Profile: msg.From.profile(),
		}, true
	}
	return nil, false
}

// GetUpdates long-polls the Bot API for the next update batch.
func (g *TelegramGateway) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var updates []Update
	err := g.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query", "chat_join_request"},
	}, &updates)
	return updates, err
}

// DeleteWebhook clears a configured webhook so polling starts clean.
func (g *TelegramGateway) DeleteWebhook(ctx context.Context) error {
	if g.mock() {
		return nil
	}
	return g.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": true}, nil)
}

// Poll runs the long-poll loop until ctx is canceled, handing each
// decoded event to handle. Transport failures are logged and retried
// after a short pause; they never stop the loop.
func (g *TelegramGateway) Poll(ctx context.Context, handle func(domain.Event)) error {
	if g.mock() {
		<-ctx.Done()
		return ctx.Err()
	}

	if err := g.DeleteWebhook(ctx); err != nil {
		g.log.Warn().Err(err).Msg("failed to clear webhook before polling")
	}

	var offset int64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := g.GetUpdates(ctx, offset, 50*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.log.Error().Err(err).Msg("getUpdates failed")
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if event, ok := DecodeUpdate(u); ok {
				handle(event)
			}
		}
	}
}
