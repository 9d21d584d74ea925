package domain

// Inbound gateway traffic is decoded once, at the gateway boundary, into
// the tagged event types below. Everything past that boundary dispatches
// on concrete types, never on raw payload strings.

// Button identifies an inline keyboard button. Closed set.
type Button string

const (
	ButtonStartCaptcha     Button = "start_captcha"
	ButtonRules            Button = "rules"
	ButtonDigit            Button = "digit"
	ButtonBackspace        Button = "backspace"
	ButtonSubmit           Button = "submit"
	ButtonRefresh          Button = "refresh"
	ButtonOption           Button = "option"
	ButtonAdminStats       Button = "admin_stats"
	ButtonAdminUsers       Button = "admin_users"
	ButtonAdminExport      Button = "admin_export"
	ButtonAdminBroadcast   Button = "admin_broadcast"
	ButtonBroadcastConfirm Button = "broadcast_confirm"
	ButtonBroadcastCancel  Button = "broadcast_cancel"
)

// Event is one decoded inbound gateway event.
type Event interface {
	// EventUserID is the id of the user the event originates from.
	EventUserID() int64
}

// JoinRequestEvent signals that a user asked to enter the channel.
type JoinRequestEvent struct {
	UserID  int64
	Profile UserProfile
}

func (e JoinRequestEvent) EventUserID() int64 { return e.UserID }

// ButtonEvent is an inline keyboard press. Arg carries the button's
// argument (the digit for ButtonDigit, the chosen option for
// ButtonOption). CallbackID must be acknowledged via the gateway.
type ButtonEvent struct {
	UserID     int64
	Button     Button
	Arg        string
	CallbackID string
	Message    MessageRef
	Profile    UserProfile
}

func (e ButtonEvent) EventUserID() int64 { return e.UserID }

// MediaEvent is a photo or video message. FileID references the
// platform-hosted media; Kind is BroadcastPhoto or BroadcastVideo.
type MediaEvent struct {
	UserID  int64
	Kind    BroadcastKind
	FileID  string
	Caption string
	Message MessageRef
	Profile UserProfile
}

func (e MediaEvent) EventUserID() int64 { return e.UserID }

// TextEvent is a plain text message from a user.
type TextEvent struct {
	UserID  int64
	Text    string
	Message MessageRef
	Profile UserProfile
}

func (e TextEvent) EventUserID() int64 { return e.UserID }

// CommandEvent is a slash command such as /start or /stats.
type CommandEvent struct {
	UserID  int64
	Name    string
	Args    string
	Profile UserProfile
}

func (e CommandEvent) EventUserID() int64 { return e.UserID }
