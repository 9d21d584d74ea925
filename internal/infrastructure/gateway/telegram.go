package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/gatekeeper/domain"
)

// TelegramGateway implements domain.Gateway against the Bot API. With
// an empty token it runs in log-only mode, so the rest of the system
// can be exercised without platform credentials.
type TelegramGateway struct {
	httpClient *http.Client
	base       string
	channelID  int64
	log        zerolog.Logger
	mockRef    atomic.Int64
}

// NewTelegramGateway creates a gateway client for the given bot token
// and target channel.
func NewTelegramGateway(token string, channelID int64, log zerolog.Logger) *TelegramGateway {
	g := &TelegramGateway{
		httpClient: &http.Client{Timeout: 65 * time.Second},
		channelID:  channelID,
		log:        log.With().Str("component", "gateway").Logger(),
	}
	if token != "" {
		g.base = "https://api.telegram.org/bot" + token
	}
	return g
}

func (g *TelegramGateway) mock() bool { return g.base == "" }

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// call posts params as JSON to the named Bot API method and decodes
// the result envelope into out (when non-nil).
func (g *TelegramGateway) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode %s params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", method, domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s failed: %s (code %d)", method, envelope.Description, envelope.ErrorCode)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

type inlineButton struct {
	Text string `json:"text"`
	Data string `json:"callback_data,omitempty"`
	URL  string `json:"url,omitempty"`
}

type inlineKeyboard struct {
	Buttons [][]inlineButton `json:"inline_keyboard"`
}

func buildKeyboard(opts *domain.SendOptions) *inlineKeyboard {
	if opts == nil || len(opts.Keyboard) == 0 {
		return nil
	}
	kb := &inlineKeyboard{}
	for _, row := range opts.Keyboard {
		var out []inlineButton
		for _, b := range row {
			out = append(out, inlineButton{Text: b.Text, Data: b.Data, URL: b.URL})
		}
		kb.Buttons = append(kb.Buttons, out)
	}
	return kb
}

func parseMode(opts *domain.SendOptions) string {
	if opts != nil && opts.Markdown {
		return "Markdown"
	}
	return ""
}

// SendMessage implements domain.Gateway.
func (g *TelegramGateway) SendMessage(ctx context.Context, userID int64, text string, opts *domain.SendOptions) (domain.MessageRef, error) {
	if g.mock() {
		g.log.Info().Int64("user_id", userID).Str("text", text).Msg("[mock] sendMessage")
		return domain.MessageRef(g.mockRef.Add(1)), nil
	}

	params := map[string]any{"chat_id": userID, "text": text}
	if kb := buildKeyboard(opts); kb != nil {
		params["reply_markup"] = kb
	}
	if mode := parseMode(opts); mode != "" {
		params["parse_mode"] = mode
	}

	var msg struct {
		MessageID int64 `json:"message_id"`
	}
	if err := g.call(ctx, "sendMessage", params, &msg); err != nil {
		return 0, err
	}
	return domain.MessageRef(msg.MessageID), nil
}

// SendPhoto implements domain.Gateway.
func (g *TelegramGateway) SendPhoto(ctx context.Context, userID int64, fileID, caption string) error {
	if g.mock() {
		g.log.Info().Int64("user_id", userID).Msg("[mock] sendPhoto")
		return nil
	}
	return g.call(ctx, "sendPhoto", map[string]any{
		"chat_id": userID, "photo": fileID, "caption": caption,
	}, nil)
}

// SendVideo implements domain.Gateway.
func (g *TelegramGateway) SendVideo(ctx context.Context, userID int64, fileID, caption string) error {
	if g.mock() {
		g.log.Info().Int64("user_id", userID).Msg("[mock] sendVideo")
		return nil
	}
	return g.call(ctx, "sendVideo", map[string]any{
		"chat_id": userID, "video": fileID, "caption": caption,
	}, nil)
}

// SendDocument implements domain.Gateway. The document content is
// uploaded as multipart form data.
func (g *TelegramGateway) SendDocument(ctx context.Context, userID int64, filename string, data []byte, caption string) error {
	if g.mock() {
		g.log.Info().Int64("user_id", userID).Str("filename", filename).Msg("[mock] sendDocument")
		return nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", strconv.FormatInt(userID, 10)); err != nil {
		return fmt.Errorf("failed to build sendDocument form: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to build sendDocument form: %w", err)
		}
	}
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("failed to build sendDocument form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write sendDocument payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish sendDocument form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/sendDocument", &buf)
	if err != nil {
		return fmt.Errorf("failed to build sendDocument request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendDocument: %w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode sendDocument response: %w", err)
	}
	if !envelope.OK {
		return fmt.Errorf("sendDocument failed: %s (code %d)", envelope.Description, envelope.ErrorCode)
	}
	return nil
}

// EditMessage implements domain.Gateway.
func (g *TelegramGateway) EditMessage(ctx context.Context, userID int64, ref domain.MessageRef, text string, opts *domain.SendOptions) error {
	if g.mock() {
		g.log.Info().Int64("user_id", userID).Int64("message", int64(ref)).Msg("[mock] editMessageText")
		return nil
	}

	params := map[string]any{"chat_id": userID, "message_id": int64(ref), "text": text}
	if kb := buildKeyboard(opts); kb != nil {
		params["reply_markup"] = kb
	}
	if mode := parseMode(opts); mode != "" {
		params["parse_mode"] = mode
	}
	return g.call(ctx, "editMessageText", params, nil)
}

// DeleteMessage implements domain.Gateway.
func (g *TelegramGateway) DeleteMessage(ctx context.Context, userID int64, ref domain.MessageRef) error {
	if g.mock() {
		g.log.Info().Int64("user_id", userID).Int64("message", int64(ref)).Msg("[mock] deleteMessage")
		return nil
	}
	return g.call(ctx, "deleteMessage", map[string]any{
		"chat_id": userID, "message_id": int64(ref),
	}, nil)
}

// AnswerCallback implements domain.Gateway.
func (g *TelegramGateway) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if g.mock() {
		g.log.Info().Str("callback", callbackID).Str("text", text).Msg("[mock] answerCallbackQuery")
		return nil
	}
	return g.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID, "text": text, "show_alert": alert,
	}, nil)
}

// ApproveJoinRequest implements domain.Gateway.
func (g *TelegramGateway) ApproveJoinRequest(ctx context.Context, userID int64) error {
	if g.mock() {
		g.log.Info().Int64("user_id", userID).Msg("[mock] approveChatJoinRequest")
		return nil
	}
	return g.call(ctx, "approveChatJoinRequest", map[string]any{
		"chat_id": g.channelID, "user_id": userID,
	}, nil)
}

// DeclineJoinRequest implements domain.Gateway.
func (g *TelegramGateway) DeclineJoinRequest(ctx context.Context, userID int64) error {
	if g.mock() {
		g.log.Info().Int64("user_id", userID).Msg("[mock] declineChatJoinRequest")
		return nil
	}
	return g.call(ctx, "declineChatJoinRequest", map[string]any{
		"chat_id": g.channelID, "user_id": userID,
	}, nil)
}

// CreateInviteLink implements domain.Gateway.
func (g *TelegramGateway) CreateInviteLink(ctx context.Context, expiry time.Duration, singleUse bool) (string, error) {
	if g.mock() {
		g.log.Info().Dur("expiry", expiry).Bool("single_use", singleUse).Msg("[mock] createChatInviteLink")
		return "https://t.me/+mock", nil
	}

	params := map[string]any{
		"chat_id":     g.channelID,
		"expire_date": time.Now().Add(expiry).Unix(),
	}
	if singleUse {
		params["member_limit"] = 1
	}

	var link struct {
		InviteLink string `json:"invite_link"`
	}
	if err := g.call(ctx, "createChatInviteLink", params, &link); err != nil {
		return "", err
	}
	return link.InviteLink, nil
}
