package call

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lovechat-ai/lovechat/internal/media"
	"github.com/lovechat-ai/lovechat/internal/persona"
	"github.com/lovechat-ai/lovechat/internal/protocol"
	"github.com/lovechat-ai/lovechat/internal/settings"
	"github.com/lovechat-ai/lovechat/internal/supabase"
	"github.com/lovechat-ai/lovechat/internal/tavus"
)

type fakeConversations struct {
	mu        sync.Mutex
	createErr error
	endErr    error
	creates   []tavus.CreateRequest
	ended     []string
}

func (f *fakeConversations) CreateConversation(_ context.Context, _ string, req tavus.CreateRequest) (tavus.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	if f.createErr != nil {
		return tavus.Conversation{}, f.createErr
	}
	return tavus.Conversation{ConversationID: "c-1", ConversationURL: "https://call.example/c-1"}, nil
}

func (f *fakeConversations) EndConversation(_ context.Context, _ string, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, conversationID)
	return f.endErr
}

func (f *fakeConversations) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates)
}

func (f *fakeConversations) endCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ended)
}

type harness struct {
	ctrl      *Controller
	conv      *fakeConversations
	inbound   chan protocol.ClientControl
	outbound  chan any
	cancel    context.CancelFunc
	runDone   chan struct{}
	transport func() *media.MockTransport
}

func testSettings() settings.Settings {
	return settings.Settings{
		APIKey:         "key-1",
		MenPersonaID:   "persona-men",
		WomenPersonaID: "persona-women",
	}
}

func testPersona(t *testing.T) persona.Persona {
	t.Helper()
	p, err := persona.Lookup("1") // Alex, male
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	return p
}

func newHarness(t *testing.T, budget int, s settings.Settings, mutate func(*Options)) *harness {
	t.Helper()

	conv := &fakeConversations{}
	var mu sync.Mutex
	var lastTransport *media.MockTransport

	opts := Options{
		CallID:        "call-1",
		User:          supabase.User{ID: "u-1", Email: "u@example.com"},
		Persona:       testPersona(t),
		Settings:      s,
		BudgetSeconds: budget,
		Conversations: conv,
		NewTransport: func() media.Transport {
			mu.Lock()
			defer mu.Unlock()
			lastTransport = media.NewMockTransport()
			return lastTransport
		},
		TickInterval: 5 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}

	h := &harness{
		ctrl:      NewController(opts),
		conv:      conv,
		inbound:   make(chan protocol.ClientControl, 16),
		outbound:  make(chan any, 256),
		runDone:   make(chan struct{}),
		transport: func() *media.MockTransport {
			mu.Lock()
			defer mu.Unlock()
			return lastTransport
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.runDone)
		_ = h.ctrl.Run(ctx, h.inbound, h.outbound)
	}()
	t.Cleanup(func() {
		cancel()
		close(h.inbound)
		select {
		case <-h.runDone:
		case <-time.After(2 * time.Second):
			t.Errorf("run loop did not exit")
		}
	})
	return h
}

func (h *harness) send(action string) {
	h.inbound <- protocol.ClientControl{Type: protocol.TypeClientControl, CallID: "call-1", Action: action}
}

func (h *harness) waitScreen(t *testing.T, want Screen) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ctrl.Snapshot().Screen == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("screen = %q, want %q", h.ctrl.Snapshot().Screen, want)
}

func (h *harness) waitConnected(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ctrl.Snapshot().Connected {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("call never connected: %+v", h.ctrl.Snapshot())
}

func (h *harness) startToConversation(t *testing.T) {
	t.Helper()
	h.send(protocol.ActionStartCall) // intro -> haircheck
	h.waitScreen(t, ScreenHairCheck)
	h.send(protocol.ActionStartCall) // haircheck -> conversation
	h.waitScreen(t, ScreenConversation)
}

func TestManualEndClearsConversationAndEndsVendorCallOnce(t *testing.T) {
	h := newHarness(t, 120, testSettings(), nil)
	h.startToConversation(t)
	h.waitConnected(t)

	h.send(protocol.ActionEndCall)
	h.waitScreen(t, ScreenClosing)

	snap := h.ctrl.Snapshot()
	if snap.Connected || snap.Connecting {
		t.Fatalf("connection flags should be cleared: %+v", snap)
	}
	if h.conv.endCount() != 1 {
		t.Fatalf("vendor end-call invoked %d times, want 1", h.conv.endCount())
	}
	if h.conv.ended[0] != "c-1" {
		t.Fatalf("ended conversation = %q, want c-1", h.conv.ended[0])
	}

	// Teardown is idempotent: a second end is a no-op.
	h.send(protocol.ActionEndCall)
	time.Sleep(20 * time.Millisecond)
	if h.conv.endCount() != 1 {
		t.Fatalf("second end should not re-invoke vendor end-call, got %d", h.conv.endCount())
	}
}

func TestStartUsesGenderResolvedPersonaID(t *testing.T) {
	s := testSettings()
	s.MenPersonaID = "abc"
	h := newHarness(t, 120, s, nil)
	h.startToConversation(t)

	if h.conv.createCount() != 1 {
		t.Fatalf("create called %d times, want 1", h.conv.createCount())
	}
	if got := h.conv.creates[0].PersonaID; got != "abc" {
		t.Fatalf("create persona id = %q, want %q", got, "abc")
	}
}

func TestStartWithoutPersonaIDErrorsWithoutNetworkCall(t *testing.T) {
	s := testSettings()
	s.MenPersonaID = ""
	h := newHarness(t, 120, s, nil)

	h.send(protocol.ActionStartCall)
	h.waitScreen(t, ScreenHairCheck)
	h.send(protocol.ActionStartCall)
	h.waitScreen(t, ScreenError)

	if h.conv.createCount() != 0 {
		t.Fatalf("no create request should be issued, got %d", h.conv.createCount())
	}
	if h.ctrl.Snapshot().Error == "" {
		t.Fatalf("error message should be set")
	}
}

func TestStartWithoutAPIKeyErrors(t *testing.T) {
	s := testSettings()
	s.APIKey = ""
	h := newHarness(t, 120, s, nil)

	h.send(protocol.ActionStartCall)
	h.waitScreen(t, ScreenHairCheck)
	h.send(protocol.ActionStartCall)
	h.waitScreen(t, ScreenError)

	if h.conv.createCount() != 0 {
		t.Fatalf("no create request should be issued, got %d", h.conv.createCount())
	}
}

func TestCreateRejectionShowsCredentialErrorAndSkipsJoin(t *testing.T) {
	transportCalls := 0
	h := newHarness(t, 120, testSettings(), func(o *Options) {
		o.NewTransport = func() media.Transport {
			transportCalls++
			return media.NewMockTransport()
		}
	})
	h.conv.createErr = &tavus.APIError{Kind: tavus.ErrKindInvalidCredential, Status: 401, Message: "Invalid access token"}

	h.send(protocol.ActionStartCall)
	h.waitScreen(t, ScreenHairCheck)
	h.send(protocol.ActionStartCall)
	h.waitScreen(t, ScreenError)

	snap := h.ctrl.Snapshot()
	if snap.Error != "Invalid API key. Please check your Tavus API key." {
		t.Fatalf("error = %q, want credential message", snap.Error)
	}
	if transportCalls != 0 {
		t.Fatalf("media join should not be attempted after create rejection")
	}
}

func TestJoinFailureKeepsConversationSet(t *testing.T) {
	h := newHarness(t, 120, testSettings(), func(o *Options) {
		o.NewTransport = func() media.Transport {
			tr := media.NewMockTransport()
			tr.JoinErr = context.DeadlineExceeded
			return tr
		}
	})

	h.send(protocol.ActionStartCall)
	h.waitScreen(t, ScreenHairCheck)
	h.send(protocol.ActionStartCall)
	h.waitScreen(t, ScreenError)

	snap := h.ctrl.Snapshot()
	if snap.Error != "Failed to join the video call" {
		t.Fatalf("error = %q", snap.Error)
	}
	if snap.Connecting {
		t.Fatalf("connecting must be false after join failure")
	}

	// The conversation is still referenced, so go-home teardown ends it.
	h.send(protocol.ActionGoHome)
	select {
	case <-h.runDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("go_home should finish the run loop")
	}
	if h.conv.endCount() != 1 {
		t.Fatalf("vendor end-call invoked %d times, want 1", h.conv.endCount())
	}
}

func TestCountdownRunsOutAndClosesCall(t *testing.T) {
	h := newHarness(t, 3, testSettings(), nil)
	h.startToConversation(t)

	h.waitScreen(t, ScreenClosing)
	snap := h.ctrl.Snapshot()
	if snap.RemainingSeconds != 0 {
		t.Fatalf("remaining = %d, want 0", snap.RemainingSeconds)
	}
	if h.conv.endCount() != 1 {
		t.Fatalf("vendor end-call invoked %d times, want 1", h.conv.endCount())
	}

	// No further ticks after closing.
	drainTicks := func() int {
		n := 0
		for {
			select {
			case msg := <-h.outbound:
				if _, ok := msg.(protocol.CountdownTick); ok {
					n++
				}
			default:
				return n
			}
		}
	}
	drainTicks()
	time.Sleep(30 * time.Millisecond)
	if extra := drainTicks(); extra != 0 {
		t.Fatalf("%d ticks emitted after closing", extra)
	}
}

func TestNoTickBeforeConnected(t *testing.T) {
	h := newHarness(t, 5, testSettings(), func(o *Options) {
		o.NewTransport = func() media.Transport {
			tr := media.NewMockTransport()
			tr.JoinDelay = 50 * time.Millisecond
			return tr
		}
	})
	h.startToConversation(t)

	// While waiting for the remote participant no countdown may run.
	time.Sleep(25 * time.Millisecond)
	sawConnected := false
	for {
		select {
		case msg := <-h.outbound:
			switch msg.(type) {
			case protocol.CountdownTick:
				if !sawConnected {
					t.Fatalf("tick emitted before call_connected")
				}
			case protocol.CallConnected:
				sawConnected = true
			}
			continue
		default:
		}
		break
	}

	h.waitConnected(t)
	if snap := h.ctrl.Snapshot(); snap.RemainingSeconds > 5 {
		t.Fatalf("remaining = %d, want <= budget", snap.RemainingSeconds)
	}
}

func TestRetryReturnsToIntro(t *testing.T) {
	s := testSettings()
	s.APIKey = ""
	h := newHarness(t, 120, s, nil)

	h.send(protocol.ActionStartCall)
	h.waitScreen(t, ScreenHairCheck)
	h.send(protocol.ActionStartCall)
	h.waitScreen(t, ScreenError)

	h.send(protocol.ActionRetry)
	h.waitScreen(t, ScreenIntro)

	snap := h.ctrl.Snapshot()
	if snap.Error != "" {
		t.Fatalf("error should be cleared after retry, got %q", snap.Error)
	}
	if snap.RemainingSeconds != 120 {
		t.Fatalf("remaining = %d, want full budget", snap.RemainingSeconds)
	}
}

func TestAbandonedConnectionTearsDown(t *testing.T) {
	h := newHarness(t, 120, testSettings(), nil)
	h.startToConversation(t)
	h.waitConnected(t)

	// Cancel mid-call, as the janitor or a dropped connection would.
	h.cancel()
	select {
	case <-h.runDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("run loop should exit on cancellation")
	}
	if h.conv.endCount() != 1 {
		t.Fatalf("vendor end-call invoked %d times, want 1", h.conv.endCount())
	}
	tr := h.transport()
	if tr != nil && tr.Joined() {
		t.Fatalf("media session should be left on teardown")
	}
}

func TestRunRejectsSecondAttach(t *testing.T) {
	h := newHarness(t, 120, testSettings(), nil)

	// The first Run emits the initial screen once it holds the loop.
	select {
	case <-h.outbound:
	case <-time.After(2 * time.Second):
		t.Fatalf("run loop never started")
	}

	if err := h.ctrl.Run(context.Background(), h.inbound, h.outbound); err != ErrAlreadyRunning {
		t.Fatalf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestFormatCountdown(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{120, "02:00"},
		{119, "01:59"},
		{61, "01:01"},
		{9, "00:09"},
		{0, "00:00"},
		{-3, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatCountdown(tc.in); got != tc.want {
			t.Fatalf("FormatCountdown(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
