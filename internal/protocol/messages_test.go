package protocol

import (
	"errors"
	"testing"
)

func TestParseClientControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","call_id":"c-1","action":"start_call"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	ctrl, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("ParseClientMessage() = %T, want ClientControl", msg)
	}
	if ctrl.CallID != "c-1" || ctrl.Action != ActionStartCall {
		t.Fatalf("unexpected control: %+v", ctrl)
	}
}

func TestParseRejectsUnknownAction(t *testing.T) {
	raw := []byte(`{"type":"client_control","call_id":"c-1","action":"dance"}`)
	if _, err := ParseClientMessage(raw); err == nil {
		t.Fatalf("ParseClientMessage() should reject unknown action")
	}
}

func TestParseRejectsMissingCallID(t *testing.T) {
	raw := []byte(`{"type":"client_control","action":"end_call"}`)
	if _, err := ParseClientMessage(raw); err == nil {
		t.Fatalf("ParseClientMessage() should reject missing call_id")
	}
}

func TestParseRejectsUnsupportedType(t *testing.T) {
	raw := []byte(`{"type":"mystery"}`)
	_, err := ParseClientMessage(raw)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("ParseClientMessage() error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseRejectsBadJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte("{")); err == nil {
		t.Fatalf("ParseClientMessage() should reject malformed JSON")
	}
}

func TestTypeOf(t *testing.T) {
	mt, ok := TypeOf(CountdownTick{Type: TypeCountdownTick})
	if !ok || mt != TypeCountdownTick {
		t.Fatalf("TypeOf() = %q, %v", mt, ok)
	}
	if _, ok := TypeOf(42); ok {
		t.Fatalf("TypeOf(42) should not be known")
	}
}
