package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/webhook-events/internal/store"
	"go.uber.org/mock/gomock"
)

const (
	pushBody   = `{"pusher":{"name":"alice"},"ref":"refs/heads/main","head_commit":{"timestamp":"2024-01-01T00:00:00Z"}}`
	mergedBody = `{"action":"closed","pull_request":{"merged":true,"user":{"login":"bob"},"head":{"ref":"feature"},"base":{"ref":"main"},"merged_at":"2024-02-02T00:00:00Z"}}`
)

type recordingPublisher struct {
	got []store.StoredEvent
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, ev store.StoredEvent) error {
	p.got = append(p.got, ev)
	return p.err
}

func webhookRequest(event, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if event != "" {
		req.Header.Set("X-GitHub-Event", event)
	}
	return req
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body
}

func TestServer_WebhookPing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)
	// No store calls expected.

	srv := NewServer(":0", mockStore, Options{})
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, webhookRequest("ping", `{"zen":"Keep it logically awesome.","hook_id":1}`))

	if rec.Code != http.StatusOK {
		t.Errorf("status want 200 got %d", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["status"] != "ok" || body["message"] != "Ping received" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestServer_WebhookPingIgnoresBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	srv := NewServer(":0", store.NewMockStore(ctrl), Options{})

	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, webhookRequest("ping", "{broken"))
	if rec.Code != http.StatusOK {
		t.Errorf("status want 200 got %d", rec.Code)
	}
}

func TestServer_WebhookPush(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)

	var captured *store.EventRecord
	mockStore.EXPECT().Connected().Return(true)
	mockStore.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, row *store.EventRecord) (string, error) {
		captured = row
		return "1", nil
	})

	srv := NewServer(":0", mockStore, Options{})
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, webhookRequest("push", pushBody))

	if rec.Code != http.StatusOK {
		t.Errorf("status want 200 got %d", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["status"] != "received" || body["event_type"] != "push" {
		t.Errorf("unexpected body %v", body)
	}
	if captured == nil {
		t.Fatal("InsertEvent was not called")
	}
	if captured.Action != "push" || captured.Author != "alice" || captured.ToBranch != "main" || captured.Timestamp != "2024-01-01T00:00:00Z" {
		t.Errorf("unexpected row %+v", captured)
	}
	if captured.FromBranch != nil {
		t.Errorf("push row should have no from_branch, got %q", *captured.FromBranch)
	}
}

func TestServer_WebhookPullRequestMerged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)

	var captured *store.EventRecord
	mockStore.EXPECT().Connected().Return(true)
	mockStore.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, row *store.EventRecord) (string, error) {
		captured = row
		return "2", nil
	})

	srv := NewServer(":0", mockStore, Options{})
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, webhookRequest("pull_request", mergedBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", rec.Code)
	}
	if body := decodeMap(t, rec); body["event_type"] != "pull_request" {
		t.Errorf("event_type want pull_request got %s", body["event_type"])
	}
	if captured.Action != "merge" || captured.Author != "bob" || captured.ToBranch != "main" || captured.Timestamp != "2024-02-02T00:00:00Z" {
		t.Errorf("unexpected row %+v", captured)
	}
	if captured.FromBranch == nil || *captured.FromBranch != "feature" {
		t.Errorf("from_branch want feature got %v", captured.FromBranch)
	}
}

func TestServer_WebhookUnsupported(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	srv := NewServer(":0", store.NewMockStore(ctrl), Options{})

	for _, event := range []string{"issues", "release", ""} {
		rec := httptest.NewRecorder()
		srv.handleWebhook(rec, webhookRequest(event, pushBody))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: status want 400 got %d", event, rec.Code)
		}
		body := decodeMap(t, rec)
		if body["status"] != "unsupported event" || body["received_event"] != event {
			t.Errorf("%q: unexpected body %v", event, body)
		}
	}
}

func TestServer_WebhookMalformed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	srv := NewServer(":0", store.NewMockStore(ctrl), Options{})

	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, webhookRequest("push", "{not json"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status want 500 got %d", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["status"] != "error" || body["message"] == "" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestServer_WebhookNullBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	// No store calls expected: a null body is not an event.
	srv := NewServer(":0", store.NewMockStore(ctrl), Options{})

	for _, event := range []string{"push", "pull_request"} {
		for _, body := range []string{"null", " null\n"} {
			rec := httptest.NewRecorder()
			srv.handleWebhook(rec, webhookRequest(event, body))
			if rec.Code != http.StatusInternalServerError {
				t.Errorf("%s %q: status want 500 got %d", event, body, rec.Code)
			}
			if got := decodeMap(t, rec)["status"]; got != "error" {
				t.Errorf("%s %q: status field want error got %s", event, body, got)
			}
		}
	}
}

func TestServer_WebhookCancelledRequestStillPersists(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().Connected().Return(true)
	mockStore.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *store.EventRecord) (string, error) {
			if err := ctx.Err(); err != nil {
				t.Errorf("insert context already done: %v", err)
			}
			return "7", nil
		})
	pub := &ctxCheckingPublisher{t: t}

	srv := NewServer(":0", mockStore, Options{Publisher: pub})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, webhookRequest("push", pushBody).WithContext(ctx))

	if rec.Code != http.StatusOK {
		t.Errorf("status want 200 got %d", rec.Code)
	}
	if pub.calls != 1 {
		t.Errorf("want 1 publish got %d", pub.calls)
	}
}

type ctxCheckingPublisher struct {
	t     *testing.T
	calls int
}

func (p *ctxCheckingPublisher) Publish(ctx context.Context, _ store.StoredEvent) error {
	p.calls++
	if err := ctx.Err(); err != nil {
		p.t.Errorf("publish context already done: %v", err)
	}
	return nil
}

func TestServer_PersistLogsRequestID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().Connected().Return(true)
	mockStore.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).Return("", errors.New("write failed"))

	srv := NewServer(":0", mockStore, Options{})
	var buf bytes.Buffer
	srv.log = slog.New(slog.NewJSONHandler(&buf, nil))

	// No delivery header: the id is generated by the middleware.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, webhookRequest("push", pushBody))

	id := rec.Header().Get("X-Request-ID")
	if id == "" {
		t.Fatal("missing X-Request-ID")
	}
	if !strings.Contains(buf.String(), `"request_id":"`+id+`"`) {
		t.Errorf("handler log does not carry request id %s: %s", id, buf.String())
	}
}

func TestServer_WebhookInsertErrorStillReceived(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().Connected().Return(true)
	mockStore.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).Return("", errors.New("write failed"))
	pub := &recordingPublisher{}

	srv := NewServer(":0", mockStore, Options{Publisher: pub})
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, webhookRequest("push", pushBody))

	if rec.Code != http.StatusOK {
		t.Errorf("status want 200 got %d", rec.Code)
	}
	if len(pub.got) != 0 {
		t.Errorf("failed insert must not be mirrored, got %d", len(pub.got))
	}
}

func TestServer_WebhookDisconnectedStore(t *testing.T) {
	srv := NewServer(":0", store.NewDisconnected(errors.New("dial tcp: refused")), Options{})

	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, webhookRequest("push", pushBody))
	if rec.Code != http.StatusOK {
		t.Errorf("push status want 200 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.handleLatestEvents(rec, httptest.NewRequest(http.MethodGet, "/latest-events", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("latest status want 500 got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("latest body want [] got %s", got)
	}
}

func TestServer_WebhookMirrorsStoredEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().Connected().Return(true).Times(2)
	mockStore.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).Return("41", nil)
	mockStore.EXPECT().InsertEvent(gomock.Any(), gomock.Any()).Return("42", nil)
	pub := &recordingPublisher{}

	srv := NewServer(":0", mockStore, Options{Publisher: pub})
	rec := httptest.NewRecorder()
	srv.handleWebhook(rec, webhookRequest("push", pushBody))

	if len(pub.got) != 1 || pub.got[0].ID != "41" || pub.got[0].Author != "alice" {
		t.Fatalf("unexpected mirrored events %+v", pub.got)
	}

	pub.err = errors.New("broker down")
	rec = httptest.NewRecorder()
	srv.handleWebhook(rec, webhookRequest("pull_request", mergedBody))
	if rec.Code != http.StatusOK {
		t.Errorf("publish failure must not fail the webhook, got %d", rec.Code)
	}
}

func TestServer_LatestEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)
	from := "feature"
	mockStore.EXPECT().Connected().Return(true)
	mockStore.EXPECT().LatestEvents(gomock.Any(), store.DefaultLatestLimit).Return([]store.StoredEvent{
		{ID: "2", EventRecord: store.EventRecord{Action: "merge", Author: "bob", ToBranch: "main", FromBranch: &from, Timestamp: "2024-02-02T00:00:00Z"}},
		{ID: "1", EventRecord: store.EventRecord{Action: "push", Author: "alice", ToBranch: "main", Timestamp: "2024-01-01T00:00:00Z"}},
	}, nil)

	srv := NewServer(":0", mockStore, Options{})
	rec := httptest.NewRecorder()
	srv.handleLatestEvents(rec, httptest.NewRequest(http.MethodGet, "/latest-events", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", rec.Code)
	}
	var body []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 2 {
		t.Fatalf("want 2 events got %d", len(body))
	}
	if body[0]["_id"] != "2" || body[0]["from_branch"] != "feature" || body[1]["_id"] != "1" {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := body[1]["from_branch"]; ok {
		t.Errorf("push event should not carry from_branch: %v", body[1])
	}
}

func TestServer_LatestEventsEmptyStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().Connected().Return(true)
	mockStore.EXPECT().LatestEvents(gomock.Any(), gomock.Any()).Return(nil, nil)

	srv := NewServer(":0", mockStore, Options{})
	rec := httptest.NewRecorder()
	srv.handleLatestEvents(rec, httptest.NewRequest(http.MethodGet, "/latest-events", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status want 200 got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body want [] got %s", got)
	}
}

func TestServer_LatestEventsQueryError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().Connected().Return(true)
	mockStore.EXPECT().LatestEvents(gomock.Any(), gomock.Any()).Return(nil, errors.New("query failed"))

	srv := NewServer(":0", mockStore, Options{})
	rec := httptest.NewRecorder()
	srv.handleLatestEvents(rec, httptest.NewRequest(http.MethodGet, "/latest-events", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status want 500 got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body want [] got %s", got)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	srv := NewServer(":0", store.NewMockStore(ctrl), Options{})

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/webhook"},
		{http.MethodPost, "/latest-events"},
		{http.MethodDelete, "/health"},
		{http.MethodPut, "/stats"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status want 405 got %d", tt.method, tt.path, rec.Code)
		}
	}
}

func TestServer_Health(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().Connected().Return(true)
	mockStore.EXPECT().Ping(gomock.Any()).Return(nil)

	srv := NewServer(":0", mockStore, Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status want 200 got %d", rec.Code)
	}
	if body := decodeMap(t, rec); body["status"] != "ok" {
		t.Errorf("body.status want ok got %s", body["status"])
	}
}

func TestServer_HealthDegraded(t *testing.T) {
	srv := NewServer(":0", store.NewDisconnected(nil), Options{})

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status want 503 got %d", rec.Code)
	}
	if body := decodeMap(t, rec); body["status"] != "degraded" {
		t.Errorf("body.status want degraded got %s", body["status"])
	}
}

func TestServer_HealthPingFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().Connected().Return(true)
	mockStore.EXPECT().Ping(gomock.Any()).Return(errors.New("conn reset"))

	srv := NewServer(":0", mockStore, Options{})
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status want 503 got %d", rec.Code)
	}
	if body := decodeMap(t, rec); body["status"] != "unhealthy" || body["error"] != "conn reset" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestServer_Stats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().EventsCount(gomock.Any()).Return(int64(42), nil)

	srv := NewServer(":0", mockStore, Options{})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	srv.handleStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status want 200 got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if n, _ := body["events_stored"].(float64); n != 42 {
		t.Errorf("events_stored want 42 got %v", body["events_stored"])
	}
}

func TestServer_StatsError(t *testing.T) {
	srv := NewServer(":0", store.NewDisconnected(nil), Options{})
	rec := httptest.NewRecorder()
	srv.handleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status want 500 got %d", rec.Code)
	}
}
