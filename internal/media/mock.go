package media

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotJoined = errors.New("media session not joined")

// MockTransport simulates a media session for tests and offline mode. After a
// successful join it announces one remote participant following JoinDelay.
type MockTransport struct {
	mu        sync.Mutex
	events    chan Event
	joined    bool
	destroyed bool
	remote    []string
	video     bool
	audio     bool

	// JoinDelay is how long after Join the simulated remote participant
	// appears. Zero means immediately.
	JoinDelay time.Duration
	// JoinErr, when set, makes Join fail.
	JoinErr error
}

func NewMockTransport() *MockTransport {
	return &MockTransport{events: make(chan Event, 64)}
}

func (t *MockTransport) Join(ctx context.Context, url string, opts JoinOptions) error {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return errors.New("media session destroyed")
	}
	if t.JoinErr != nil {
		err := t.JoinErr
		t.mu.Unlock()
		return err
	}
	if url == "" {
		t.mu.Unlock()
		return errors.New("join url is required")
	}
	t.joined = true
	t.video = !opts.StartVideoOff
	t.audio = !opts.StartAudioOff
	delay := t.JoinDelay
	t.mu.Unlock()

	go func() {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.joined || t.destroyed {
			return
		}
		id := uuid.NewString()
		t.remote = append(t.remote, id)
		t.emit(Event{Type: EventParticipantJoined, ParticipantID: id})
	}()
	return nil
}

func (t *MockTransport) SetLocalVideo(enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.joined {
		return ErrNotJoined
	}
	t.video = enabled
	t.emit(Event{Type: EventLocalVideoChanged, Enabled: enabled})
	return nil
}

func (t *MockTransport) SetLocalAudio(enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.joined {
		return ErrNotJoined
	}
	t.audio = enabled
	t.emit(Event{Type: EventLocalAudioChanged, Enabled: enabled})
	return nil
}

func (t *MockTransport) Leave() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.joined {
		return nil
	}
	t.joined = false
	for _, id := range t.remote {
		t.emit(Event{Type: EventParticipantLeft, ParticipantID: id})
	}
	t.remote = nil
	return nil
}

func (t *MockTransport) Destroy() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return nil
	}
	t.destroyed = true
	t.joined = false
	t.remote = nil
	close(t.events)
	return nil
}

func (t *MockTransport) Events() <-chan Event { return t.events }

func (t *MockTransport) RemoteParticipantIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.remote))
	copy(out, t.remote)
	return out
}

// Joined reports whether the session is currently joined.
func (t *MockTransport) Joined() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.joined
}

// LocalTracks returns the current local video/audio enablement.
func (t *MockTransport) LocalTracks() (video, audio bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.video, t.audio
}

func (t *MockTransport) emit(ev Event) {
	if t.destroyed {
		return
	}
	select {
	case t.events <- ev:
	default:
		// Drop when the consumer is saturated; events are advisory.
	}
}
