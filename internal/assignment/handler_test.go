package assignment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
)

func doLookup(t *testing.T, tracker *Tracker, target string) (*httptest.ResponseRecorder, lookupResponse) {
	t.Helper()

	handler := &LookupHandler{Tracker: tracker, Log: logr.Discard()}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body lookupResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unable to decode response %q: %v", rec.Body.String(), err)
	}
	return rec, body
}

func TestLookupHandler_BoundPod(t *testing.T) {
	pod := newPod("default", "reader", "10.0.0.5", map[string]string{"app": "reader"})
	binding := newBinding("default", "reader-binding", "reader-identity", map[string]string{"app": "reader"})
	identity := newManagedIdentity("default", "reader-identity", "11111111")

	tracker, _ := newTestTracker(pod, &binding, &identity)
	if err := tracker.rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild() error = %v", err)
	}
	tracker.started.Store(true)

	rec, body := doLookup(t, tracker, "/v1/assignment?ip=10.0.0.5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body.Pod != "reader" || body.Namespace != "default" {
		t.Errorf("pod = %s/%s, want default/reader", body.Namespace, body.Pod)
	}
	if body.State != string(StateBound) {
		t.Errorf("state = %q, want %q", body.State, StateBound)
	}
	if body.Binding != "reader-binding" {
		t.Errorf("binding = %q, want reader-binding", body.Binding)
	}
	if body.Identity == nil || body.Identity.ClientID != "11111111" {
		t.Errorf("identity = %+v, want clientID 11111111", body.Identity)
	}
}

func TestLookupHandler_UnknownAddress(t *testing.T) {
	tracker, _ := newTestTracker()
	if err := tracker.rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild() error = %v", err)
	}
	tracker.started.Store(true)

	rec, body := doLookup(t, tracker, "/v1/assignment?ip=10.0.0.9")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if body.Error == "" {
		t.Error("expected an error message for an unknown address")
	}
}

func TestLookupHandler_FailsClosedWhileNotReady(t *testing.T) {
	tracker, _ := newTestTracker()

	rec, _ := doLookup(t, tracker, "/v1/assignment?ip=10.0.0.5")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d before the first rebuild", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestLookupHandler_InvalidParameters(t *testing.T) {
	tracker, _ := newTestTracker()
	if err := tracker.rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild() error = %v", err)
	}
	tracker.started.Store(true)

	if rec, _ := doLookup(t, tracker, "/v1/assignment"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing ip: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec, _ := doLookup(t, tracker, "/v1/assignment?ip=not-an-address"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed ip: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLookupHandler_MethodNotAllowed(t *testing.T) {
	tracker, _ := newTestTracker()

	handler := &LookupHandler{Tracker: tracker, Log: logr.Discard()}
	req := httptest.NewRequest(http.MethodPost, "/v1/assignment?ip=10.0.0.5", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
