package call

import (
	"context"
	"fmt"
	"time"

	"github.com/lovechat-ai/lovechat/internal/tavus"
)

// Screen is the single active view of a call attempt. Exactly one screen is
// active at a time.
type Screen string

const (
	ScreenIntro        Screen = "intro"
	ScreenHairCheck    Screen = "haircheck"
	ScreenConversation Screen = "conversation"
	ScreenClosing      Screen = "closing"
	ScreenError        Screen = "error"
)

// End reasons reported on call_ended events and call records.
const (
	ReasonEnded     = "ended"
	ReasonTimedOut  = "timed_out"
	ReasonWentHome  = "went_home"
	ReasonAbandoned = "abandoned"
)

// ConversationClient is the vendor collaborator the controller consumes.
type ConversationClient interface {
	CreateConversation(ctx context.Context, credential string, req tavus.CreateRequest) (tavus.Conversation, error)
	EndConversation(ctx context.Context, credential, conversationID string) error
}

// Snapshot is a read-only view of one attempt's state.
type Snapshot struct {
	CallID           string    `json:"call_id"`
	UserID           string    `json:"user_id"`
	PersonaID        string    `json:"persona_id"`
	PersonaName      string    `json:"persona_name"`
	Screen           Screen    `json:"screen"`
	Connecting       bool      `json:"connecting"`
	Connected        bool      `json:"connected"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
}

// FormatCountdown renders whole seconds as zero-padded MM:SS.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// CreateRequest defines the payload for starting a new call attempt.
type CreateRequest struct {
	PersonaID string `json:"persona_id"`
}

// CreateResponse returns created attempt metadata.
type CreateResponse struct {
	CallID        string `json:"call_id"`
	PersonaID     string `json:"persona_id"`
	PersonaName   string `json:"persona_name"`
	Screen        Screen `json:"screen"`
	BudgetSeconds int    `json:"budget_seconds"`
}
