package call

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lovechat-ai/lovechat/internal/media"
	"github.com/lovechat-ai/lovechat/internal/observability"
	"github.com/lovechat-ai/lovechat/internal/persona"
	"github.com/lovechat-ai/lovechat/internal/protocol"
	"github.com/lovechat-ai/lovechat/internal/reliability"
	"github.com/lovechat-ai/lovechat/internal/settings"
	"github.com/lovechat-ai/lovechat/internal/store"
	"github.com/lovechat-ai/lovechat/internal/supabase"
	"github.com/lovechat-ai/lovechat/internal/tavus"
)

const (
	endCallMaxRetries  = 2
	endCallBackoffBase = 200 * time.Millisecond
	endCallBackoffCap  = 2 * time.Second
	endCallTimeout     = 10 * time.Second
)

var ErrAlreadyRunning = errors.New("call attempt already attached")

// Options configure one call attempt. Conversations and NewTransport are
// required; Records and Metrics are optional collaborators.
type Options struct {
	CallID        string
	User          supabase.User
	Persona       persona.Persona
	Settings      settings.Settings
	BudgetSeconds int
	Conversations ConversationClient
	NewTransport  func() media.Transport
	Records       store.Store
	Metrics       *observability.Metrics

	// TickInterval is one second in production; tests shrink it.
	TickInterval time.Duration
}

// Controller sequences a single practice-call attempt from persona selection
// through guaranteed cleanup. All state is owned by the Run loop; public
// accessors take the mutex only to read.
type Controller struct {
	opts Options

	mu           sync.Mutex
	screen       Screen
	connecting   bool
	connected    bool
	callStarted  bool
	localVideo   bool
	localAudio   bool
	remaining    int
	lastErr      string
	conversation *tavus.Conversation
	transport    media.Transport
	startedAt    time.Time
	lastActivity time.Time
	running      bool
	finished     bool
}

func NewController(opts Options) *Controller {
	if opts.BudgetSeconds <= 0 {
		opts.BudgetSeconds = 120
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	now := time.Now().UTC()
	return &Controller{
		opts:         opts,
		screen:       ScreenIntro,
		remaining:    opts.BudgetSeconds,
		startedAt:    now,
		lastActivity: now,
	}
}

// Snapshot returns a read-only copy of the attempt state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		CallID:           c.opts.CallID,
		UserID:           c.opts.User.ID,
		PersonaID:        c.opts.Persona.ID,
		PersonaName:      c.opts.Persona.Name,
		Screen:           c.screen,
		Connecting:       c.connecting,
		Connected:        c.connected,
		RemainingSeconds: c.remaining,
		Error:            c.lastErr,
		StartedAt:        c.startedAt,
		LastActivityAt:   c.lastActivity,
	}
}

// Finished reports whether the run loop has exited.
func (c *Controller) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// LastActivityAt is used by the janitor to expire abandoned attempts.
func (c *Controller) LastActivityAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Run drives the attempt until the user goes home, the client disconnects, or
// ctx is cancelled. Teardown runs on every exit path.
func (c *Controller) Run(ctx context.Context, inbound <-chan protocol.ClientControl, outbound chan<- any) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.finished = true
		c.mu.Unlock()
	}()

	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()

	c.emitScreen(outbound)

	for {
		events := c.transportEvents()

		select {
		case <-ctx.Done():
			c.handleCallEnd(ReasonAbandoned, nil)
			return nil

		case cmd, ok := <-inbound:
			if !ok {
				// Client went away mid-attempt; still tear down so no media
				// session or billable conversation leaks.
				c.handleCallEnd(ReasonAbandoned, nil)
				return nil
			}
			c.touch()
			if done := c.dispatch(ctx, cmd, outbound); done {
				return nil
			}

		case ev, ok := <-events:
			if !ok {
				c.clearTransportEvents()
				continue
			}
			c.onTransportEvent(ev, outbound)

		case <-ticker.C:
			c.tick(outbound)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, cmd protocol.ClientControl, outbound chan<- any) bool {
	switch cmd.Action {
	case protocol.ActionStartCall:
		c.advance(ctx, outbound)
	case protocol.ActionEndCall:
		c.handleCallEnd(ReasonEnded, outbound)
	case protocol.ActionRetry:
		c.handleRetry(outbound)
	case protocol.ActionGoHome:
		c.handleCallEnd(ReasonWentHome, outbound)
		return true
	case protocol.ActionToggleAudio:
		c.toggleAudio()
	case protocol.ActionToggleVideo:
		c.toggleVideo()
	}
	return false
}

// advance moves intro -> haircheck on the first confirmation and starts the
// conversation on the second.
func (c *Controller) advance(ctx context.Context, outbound chan<- any) {
	c.mu.Lock()
	screen := c.screen
	c.mu.Unlock()

	switch screen {
	case ScreenIntro:
		c.setScreen(ScreenHairCheck, outbound)
	case ScreenHairCheck:
		c.startConversation(ctx, outbound)
	}
}

func (c *Controller) startConversation(ctx context.Context, outbound chan<- any) {
	s := c.opts.Settings
	apiKey := strings.TrimSpace(s.APIKey)
	if apiKey == "" {
		c.fail("API key not configured. Please check settings.", false, outbound)
		return
	}

	ids := persona.ResolveVendorIDs(c.opts.Persona, s.MenPersonaID, s.WomenPersonaID, s.MenReplicaID, s.WomenReplicaID)
	if strings.TrimSpace(ids.PersonaID) == "" {
		c.fail("Persona ID not configured for this gender. Please check settings.", false, outbound)
		return
	}

	c.mu.Lock()
	c.connecting = true
	c.lastErr = ""
	c.mu.Unlock()
	c.emit(outbound, protocol.CallConnecting{Type: protocol.TypeCallConnecting, CallID: c.opts.CallID})

	start := time.Now()
	conv, err := c.opts.Conversations.CreateConversation(ctx, apiKey, tavus.CreateRequest{
		PersonaID: ids.PersonaID,
		ReplicaID: ids.ReplicaID,
		UserName:  s.Name,
	})
	c.observeVendor("create_conversation", err, time.Since(start))
	if err != nil {
		log.Printf("call %s: create conversation failed: %v", c.opts.CallID, err)
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		c.fail(createErrorMessage(err), true, outbound)
		return
	}

	c.mu.Lock()
	c.conversation = &conv
	c.mu.Unlock()
	c.countEvent("conversation_created")
	c.setScreen(ScreenConversation, outbound)

	// Entering the conversation screen with a join URL triggers the media
	// join immediately; there is no reactive re-evaluation in between.
	c.connectToCall(ctx, outbound)
}

func (c *Controller) connectToCall(ctx context.Context, outbound chan<- any) {
	c.mu.Lock()
	conv := c.conversation
	c.mu.Unlock()
	if conv == nil || conv.ConversationURL == "" {
		return
	}

	transport := c.opts.NewTransport()
	err := transport.Join(ctx, conv.ConversationURL, media.JoinOptions{
		StartVideoOff: false,
		StartAudioOff: true,
	})
	if err != nil {
		log.Printf("call %s: media join failed: %v", c.opts.CallID, err)
		_ = transport.Destroy()
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		// The conversation stays set so teardown can still end it.
		c.fail("Failed to join the video call", true, outbound)
		return
	}

	if err := transport.SetLocalVideo(true); err != nil {
		log.Printf("call %s: enable local video failed: %v", c.opts.CallID, err)
	}
	if err := transport.SetLocalAudio(false); err != nil {
		log.Printf("call %s: mute local audio failed: %v", c.opts.CallID, err)
	}

	c.mu.Lock()
	c.transport = transport
	c.localVideo = true
	c.localAudio = false
	c.mu.Unlock()
	c.countEvent("media_joined")
}

func (c *Controller) onTransportEvent(ev media.Event, outbound chan<- any) {
	c.touch()

	switch ev.Type {
	case media.EventParticipantJoined:
		c.mu.Lock()
		if c.screen != ScreenConversation || c.callStarted {
			c.mu.Unlock()
			return
		}
		c.connected = true
		c.connecting = false
		c.lastErr = ""
		c.callStarted = true
		c.remaining = c.opts.BudgetSeconds
		remaining := c.remaining
		c.mu.Unlock()

		c.countEvent("connected")
		c.emit(outbound, protocol.CallConnected{
			Type:             protocol.TypeCallConnected,
			CallID:           c.opts.CallID,
			ParticipantID:    ev.ParticipantID,
			RemainingSeconds: remaining,
		})

	case media.EventJoinFailed:
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		c.fail("Failed to join the video call", true, outbound)
	}
}

// tick decrements the countdown. It only runs while the conversation screen
// is live and connected, so leaving that screen stops the countdown with no
// orphaned timer.
func (c *Controller) tick(outbound chan<- any) {
	c.mu.Lock()
	if !c.connected || c.screen != ScreenConversation {
		c.mu.Unlock()
		return
	}
	c.remaining--
	if c.remaining < 0 {
		c.remaining = 0
	}
	remaining := c.remaining
	c.lastActivity = time.Now().UTC()
	c.mu.Unlock()

	c.emit(outbound, protocol.CountdownTick{
		Type:             protocol.TypeCountdownTick,
		CallID:           c.opts.CallID,
		RemainingSeconds: remaining,
		Display:          FormatCountdown(remaining),
	})

	if remaining == 0 {
		c.countEvent("time_limit_reached")
		c.handleCallEnd(ReasonTimedOut, outbound)
	}
}

// handleCallEnd is the single teardown path for manual end, timeout, go-home
// and abandonment. Each step tolerates failure independently and the final
// transition always happens. Calling it again once state is cleared is a
// no-op.
func (c *Controller) handleCallEnd(reason string, outbound chan<- any) {
	c.mu.Lock()
	transport := c.transport
	conv := c.conversation
	if transport == nil && conv == nil && !c.connected && !c.connecting {
		c.mu.Unlock()
		return
	}
	c.transport = nil
	elapsed := 0
	if c.callStarted {
		elapsed = c.opts.BudgetSeconds - c.remaining
	}
	started := c.callStarted
	c.mu.Unlock()

	if transport != nil {
		if err := transport.SetLocalVideo(false); err != nil && !errors.Is(err, media.ErrNotJoined) {
			log.Printf("call %s: disable video failed: %v", c.opts.CallID, err)
		}
		if err := transport.SetLocalAudio(false); err != nil && !errors.Is(err, media.ErrNotJoined) {
			log.Printf("call %s: disable audio failed: %v", c.opts.CallID, err)
		}
		if err := transport.Leave(); err != nil {
			log.Printf("call %s: media leave failed: %v", c.opts.CallID, err)
		}
		if err := transport.Destroy(); err != nil {
			log.Printf("call %s: media destroy failed: %v", c.opts.CallID, err)
		}
	}

	if conv != nil {
		c.endConversation(conv.ConversationID)
	}

	c.mu.Lock()
	c.conversation = nil
	c.connected = false
	c.connecting = false
	c.callStarted = false
	c.lastActivity = time.Now().UTC()
	c.mu.Unlock()

	c.recordOutcome(reason, conv, started, elapsed)
	c.countEvent("ended_" + reason)

	c.emit(outbound, protocol.CallEnded{Type: protocol.TypeCallEnded, CallID: c.opts.CallID, Reason: reason})
	if reason == ReasonEnded || reason == ReasonTimedOut {
		c.setScreen(ScreenClosing, outbound)
	}
}

// endConversation asks the vendor to end the call. Failures are logged, never
// surfaced: cleanup must not block the closing transition.
func (c *Controller) endConversation(conversationID string) {
	apiKey := strings.TrimSpace(c.opts.Settings.APIKey)
	if apiKey == "" || conversationID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), endCallTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		start := time.Now()
		err := c.opts.Conversations.EndConversation(ctx, apiKey, conversationID)
		c.observeVendor("end_conversation", err, time.Since(start))
		if err == nil {
			return
		}
		if attempt >= endCallMaxRetries || !reliability.IsRetryableVendorError(err) {
			log.Printf("call %s: end conversation %s failed: %v", c.opts.CallID, conversationID, err)
			return
		}
		select {
		case <-ctx.Done():
			log.Printf("call %s: end conversation %s timed out: %v", c.opts.CallID, conversationID, err)
			return
		case <-time.After(reliability.ExponentialBackoff(attempt, endCallBackoffBase, endCallBackoffCap)):
		}
	}
}

func (c *Controller) recordOutcome(reason string, conv *tavus.Conversation, started bool, elapsed int) {
	if c.opts.Records == nil {
		return
	}

	outcome := store.OutcomeCompleted
	switch {
	case reason == ReasonTimedOut:
		outcome = store.OutcomeTimedOut
	case reason == ReasonAbandoned:
		outcome = store.OutcomeAbandoned
	case !started:
		outcome = store.OutcomeFailed
	}

	record := store.CallRecord{
		UserID:      c.opts.User.ID,
		PersonaName: c.opts.Persona.Name,
		Outcome:     outcome,
		Duration:    elapsed,
	}
	if conv != nil {
		record.ConversationID = conv.ConversationID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.opts.Records.SaveCallRecord(ctx, record); err != nil {
		log.Printf("call %s: save call record failed: %v", c.opts.CallID, err)
	}

	if c.opts.Metrics != nil && started {
		c.opts.Metrics.CallDuration.Observe(float64(elapsed))
	}
}

// handleRetry clears error and conversation state and returns to intro so the
// whole attempt can restart cleanly.
func (c *Controller) handleRetry(outbound chan<- any) {
	c.mu.Lock()
	if c.screen != ScreenError && c.screen != ScreenClosing {
		c.mu.Unlock()
		return
	}
	transport := c.transport
	c.transport = nil
	c.conversation = nil
	c.lastErr = ""
	c.connected = false
	c.connecting = false
	c.callStarted = false
	c.remaining = c.opts.BudgetSeconds
	c.mu.Unlock()

	if transport != nil {
		_ = transport.Leave()
		_ = transport.Destroy()
	}

	c.countEvent("retry")
	c.setScreen(ScreenIntro, outbound)
}

func (c *Controller) toggleVideo() {
	c.mu.Lock()
	transport := c.transport
	next := !c.localVideo
	c.mu.Unlock()
	if transport == nil {
		return
	}
	if err := transport.SetLocalVideo(next); err != nil {
		log.Printf("call %s: toggle video failed: %v", c.opts.CallID, err)
		return
	}
	c.mu.Lock()
	c.localVideo = next
	c.mu.Unlock()
}

func (c *Controller) toggleAudio() {
	c.mu.Lock()
	transport := c.transport
	next := !c.localAudio
	c.mu.Unlock()
	if transport == nil {
		return
	}
	if err := transport.SetLocalAudio(next); err != nil {
		log.Printf("call %s: toggle audio failed: %v", c.opts.CallID, err)
		return
	}
	c.mu.Lock()
	c.localAudio = next
	c.mu.Unlock()
}

func (c *Controller) fail(message string, retryable bool, outbound chan<- any) {
	c.mu.Lock()
	c.lastErr = message
	c.mu.Unlock()

	c.countEvent("error")
	c.emit(outbound, protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		CallID:    c.opts.CallID,
		Code:      "call_failed",
		Retryable: retryable,
		Detail:    message,
	})
	c.setScreen(ScreenError, outbound)
}

func (c *Controller) setScreen(screen Screen, outbound chan<- any) {
	c.mu.Lock()
	c.screen = screen
	c.lastActivity = time.Now().UTC()
	c.mu.Unlock()
	c.emitScreen(outbound)
}

func (c *Controller) emitScreen(outbound chan<- any) {
	c.mu.Lock()
	screen := c.screen
	c.mu.Unlock()
	c.emit(outbound, protocol.ScreenChanged{Type: protocol.TypeScreenChanged, CallID: c.opts.CallID, Screen: string(screen)})
}

func (c *Controller) emit(outbound chan<- any, msg any) {
	if outbound == nil {
		return
	}
	select {
	case outbound <- msg:
	default:
		// Keep websocket writes single-threaded; drop if the queue is full.
	}
}

func (c *Controller) transportEvents() <-chan media.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return nil
	}
	return c.transport.Events()
}

func (c *Controller) clearTransportEvents() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = nil
}

func (c *Controller) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now().UTC()
	c.mu.Unlock()
}

func (c *Controller) countEvent(event string) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.CallEvents.WithLabelValues(event).Inc()
	}
}

func (c *Controller) observeVendor(operation string, err error, d time.Duration) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.ObserveVendorRequest(operation, err, d)
	}
}

func createErrorMessage(err error) string {
	var apiErr *tavus.APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return "Failed to create conversation"
}
