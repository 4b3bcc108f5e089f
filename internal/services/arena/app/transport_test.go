package server

import (
	"bytes"
	"encoding/json"
	"testing"
)

func dispatch(t *testing.T, svc *Service, userID, frameType string, payload any) []wsFrame {
	t.Helper()
	var buf bytes.Buffer
	peer := newWSPeer(json.NewEncoder(&buf))

	dispatchFrame(svc, userID, peer, wsFrame{
		Type:      frameType,
		RequestID: "req-1",
		Payload:   mustJSON(payload),
	})

	var frames []wsFrame
	decoder := json.NewDecoder(&buf)
	for decoder.More() {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			t.Fatalf("decode written frame: %v", err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func errorCode(t *testing.T, frames []wsFrame) string {
	t.Helper()
	if len(frames) != 1 || frames[0].Type != "error" {
		t.Fatalf("expected a single error frame, got %+v", frames)
	}
	var envelope wsErrorEnvelope
	if err := json.Unmarshal(frames[0].Payload, &envelope); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return envelope.Error.Code
}

func TestSubmitMoveFromOutsiderReportsForbidden(t *testing.T) {
	svc := newTestService(t, newFakeSink())
	alice := connect(svc, "alice")
	connect(svc, "bob")
	connect(svc, "mallory")

	if err := svc.FindMatch("alice"); err != nil {
		t.Fatalf("find match alice: %v", err)
	}
	if err := svc.FindMatch("bob"); err != nil {
		t.Fatalf("find match bob: %v", err)
	}
	sessionID := startedSession(t, alice).SessionID

	frames := dispatch(t, svc, "mallory", "submit_move", submitMovePayload{
		SessionID: sessionID,
		Move:      "e2e4",
	})
	if code := errorCode(t, frames); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %q", code)
	}
}

func TestSubmitMoveOnUnknownSessionReportsNotFound(t *testing.T) {
	svc := newTestService(t, newFakeSink())
	connect(svc, "alice")

	frames := dispatch(t, svc, "alice", "submit_move", submitMovePayload{
		SessionID: "no-such-session",
		Move:      "e2e4",
	})
	if code := errorCode(t, frames); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %q", code)
	}
}
