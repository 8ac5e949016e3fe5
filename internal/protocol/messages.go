package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientControl MessageType = "client_control"

	TypeScreenChanged  MessageType = "screen_changed"
	TypeCallConnecting MessageType = "call_connecting"
	TypeCallConnected  MessageType = "call_connected"
	TypeCountdownTick  MessageType = "countdown_tick"
	TypeCallEnded      MessageType = "call_ended"
	TypeErrorEvent     MessageType = "error_event"
)

// Control actions accepted from the client.
const (
	ActionStartCall   = "start_call"
	ActionEndCall     = "end_call"
	ActionRetry       = "retry"
	ActionGoHome      = "go_home"
	ActionToggleAudio = "toggle_audio"
	ActionToggleVideo = "toggle_video"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientControl drives the call state machine from the client side.
type ClientControl struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"call_id"`
	Action string      `json:"action"`
}

// ScreenChanged announces a controller screen transition.
type ScreenChanged struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"call_id"`
	Screen string      `json:"screen"`
}

// CallConnecting is sent while the conversation is being created or joined.
type CallConnecting struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"call_id"`
}

// CallConnected is sent once, when the first remote participant appears.
type CallConnected struct {
	Type             MessageType `json:"type"`
	CallID           string      `json:"call_id"`
	ParticipantID    string      `json:"participant_id"`
	RemainingSeconds int         `json:"remaining_seconds"`
}

// CountdownTick is sent every second while the call is live.
type CountdownTick struct {
	Type             MessageType `json:"type"`
	CallID           string      `json:"call_id"`
	RemainingSeconds int         `json:"remaining_seconds"`
	Display          string      `json:"display"`
}

// CallEnded reports the terminal outcome of an attempt.
type CallEnded struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"call_id"`
	Reason string      `json:"reason"`
}

// ErrorEvent carries a user-facing failure onto the error screen.
type ErrorEvent struct {
	Type      MessageType `json:"type"`
	CallID    string      `json:"call_id"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func validAction(action string) bool {
	switch action {
	case ActionStartCall, ActionEndCall, ActionRetry, ActionGoHome, ActionToggleAudio, ActionToggleVideo:
		return true
	default:
		return false
	}
}

// ParseClientMessage decodes and validates an inbound websocket payload.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.CallID == "" || !validAction(msg.Action) {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}
}

// TypeOf reports the message type of a known payload variant.
func TypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case ClientControl:
		return m.Type, true
	case ScreenChanged:
		return m.Type, true
	case CallConnecting:
		return m.Type, true
	case CallConnected:
		return m.Type, true
	case CountdownTick:
		return m.Type, true
	case CallEnded:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
