package audit

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/google/uuid"
)

func TestClientIP_XForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")

	ip := clientIP(r)
	want := netip.MustParseAddr("203.0.113.50")
	if ip != want {
		t.Errorf("clientIP = %v, want %v", ip, want)
	}
}

func TestClientIP_XRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.23")

	ip := clientIP(r)
	want := netip.MustParseAddr("198.51.100.23")
	if ip != want {
		t.Errorf("clientIP = %v, want %v", ip, want)
	}
}

func TestClientIP_RemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:12345"

	ip := clientIP(r)
	want := netip.MustParseAddr("192.0.2.1")
	if ip != want {
		t.Errorf("clientIP = %v, want %v", ip, want)
	}
}

func TestClientIP_Precedence(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.50")
	r.Header.Set("X-Real-IP", "198.51.100.23")
	r.RemoteAddr = "192.0.2.1:12345"

	ip := clientIP(r)
	want := netip.MustParseAddr("203.0.113.50")
	if ip != want {
		t.Errorf("clientIP = %v, want %v (X-Forwarded-For should take precedence)", ip, want)
	}
}

func TestClientIP_InvalidXFF(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "not-an-ip")
	r.RemoteAddr = "192.0.2.1:12345"

	ip := clientIP(r)
	want := netip.MustParseAddr("192.0.2.1")
	if ip != want {
		t.Errorf("clientIP = %v, want %v (should fall back to RemoteAddr)", ip, want)
	}
}

func TestLog_DropsWhenFull(t *testing.T) {
	logger := slog.Default()
	w := NewWriter(nil, logger)
	// Don't start the background goroutine — nothing drains the channel.

	for i := 0; i < bufferSize; i++ {
		w.Log(Entry{Action: "test", TargetKind: "test"})
	}

	// The next log should be dropped (non-blocking), not deadlock the caller.
	w.Log(Entry{Action: "dropped", TargetKind: "dropped"})

	if len(w.entries) != bufferSize {
		t.Errorf("buffer size = %d, want %d", len(w.entries), bufferSize)
	}
}

func TestLogFromRequest_ExtractsFields(t *testing.T) {
	logger := slog.Default()
	w := NewWriter(nil, logger)
	// Don't start — read the entry back off the channel directly.

	r := httptest.NewRequest("POST", "/api/bags", nil)
	r.Header.Set("X-Real-IP", "198.51.100.23")

	actorID := uuid.New()
	targetID := uuid.New()
	after, _ := json.Marshal(map[string]string{"status": "attached"})

	w.LogFromRequest(r, actorID, "attach_bag", "bag", targetID, nil, after)

	entry := <-w.entries

	if entry.Action != "attach_bag" {
		t.Errorf("Action = %q, want %q", entry.Action, "attach_bag")
	}
	if entry.TargetKind != "bag" {
		t.Errorf("TargetKind = %q, want %q", entry.TargetKind, "bag")
	}
	if !entry.ActorID.Valid || entry.ActorID.Bytes != actorID {
		t.Errorf("ActorID = %+v, want %v", entry.ActorID, actorID)
	}
	if !entry.TargetID.Valid || entry.TargetID.Bytes != targetID {
		t.Errorf("TargetID = %+v, want %v", entry.TargetID, targetID)
	}
	if entry.IPAddress == nil || *entry.IPAddress != netip.MustParseAddr("198.51.100.23") {
		t.Errorf("IPAddress = %v, want 198.51.100.23", entry.IPAddress)
	}
	if string(entry.After) != string(after) {
		t.Errorf("After = %s, want %s", entry.After, after)
	}
}

func TestLogFromRequest_NilActor(t *testing.T) {
	logger := slog.Default()
	w := NewWriter(nil, logger)

	r := httptest.NewRequest("POST", "/api/auth/login", nil)
	w.LogFromRequest(r, uuid.Nil, "login_failed", "user", uuid.Nil, nil, nil)

	entry := <-w.entries
	if entry.ActorID.Valid {
		t.Error("expected ActorID to be invalid (NULL) for uuid.Nil")
	}
	if entry.TargetID.Valid {
		t.Error("expected TargetID to be invalid (NULL) for uuid.Nil")
	}
}

func TestRawToText(t *testing.T) {
	if got := rawToText(nil); got != nil {
		t.Errorf("rawToText(nil) = %v, want nil", got)
	}
	if got := rawToText(json.RawMessage{}); got != nil {
		t.Errorf("rawToText(empty) = %v, want nil", got)
	}

	raw := json.RawMessage(`{"a":1}`)
	got := rawToText(raw)
	if got == nil || *got != `{"a":1}` {
		t.Errorf("rawToText = %v, want %q", got, `{"a":1}`)
	}
}
