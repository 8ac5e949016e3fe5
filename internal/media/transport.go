package media

import "context"

type EventType string

const (
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventLocalVideoChanged EventType = "local_video_changed"
	EventLocalAudioChanged EventType = "local_audio_changed"
	EventJoinFailed        EventType = "join_failed"
)

// Event is a transport-side observation the controller reacts to.
type Event struct {
	Type          EventType
	ParticipantID string
	Enabled       bool
	Detail        string
}

// JoinOptions mirror the join-time track defaults.
type JoinOptions struct {
	StartVideoOff bool
	StartAudioOff bool
}

// Transport is the real-time media session collaborator. The controller only
// issues these commands and watches the event channel; it never inspects
// transport internals.
type Transport interface {
	Join(ctx context.Context, url string, opts JoinOptions) error
	SetLocalVideo(enabled bool) error
	SetLocalAudio(enabled bool) error
	Leave() error
	Destroy() error
	Events() <-chan Event
	RemoteParticipantIDs() []string
}
