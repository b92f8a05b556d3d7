package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/adapter/logging"
	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/domain"
)

func event() domain.Event {
	id := uuid.New()
	return domain.Event{
		Type:          domain.EventBatchSealed,
		TeamSlug:      "acme",
		SuiteSlug:     "web",
		BatchID:       &id,
		Version:       "v1",
		SubscriberIDs: []string{"alice"},
	}
}

func TestWebhookPostsEvent(t *testing.T) {
	var got domain.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BatchSealed", r.Header.Get("X-Event-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(&config.NotifierConfig{WebhookURL: srv.URL, Timeout: 5})
	want := event()
	require.NoError(t, n.Notify(context.Background(), want))
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.BatchID, got.BatchID)
	assert.Equal(t, []string{"alice"}, got.SubscriberIDs)
}

func TestWebhookUsesClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"t0k3n","token_type":"bearer","expires_in":3600}`))
	})
	var auth string
	mux.HandleFunc("/hook", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	n := NewWebhookNotifier(&config.NotifierConfig{
		WebhookURL:   srv.URL + "/hook",
		ClientID:     "pipeline",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/token",
		Timeout:      5,
	})
	require.NoError(t, n.Notify(context.Background(), event()))
	assert.Equal(t, "Bearer t0k3n", auth)
}

func TestWebhookReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(&config.NotifierConfig{WebhookURL: srv.URL, Timeout: 5})
	assert.Error(t, n.Notify(context.Background(), event()))
}

type failing struct{}

func (failing) Notify(ctx context.Context, event domain.Event) error {
	return errors.New("broker down")
}

func TestFanoutDeliversToAll(t *testing.T) {
	rec := NewRecorder()
	f := Fanout{failing{}, NewLogNotifier(logging.NewNopLogger()), rec}

	err := f.Notify(context.Background(), event())
	assert.ErrorContains(t, err, "broker down")
	assert.Len(t, rec.OfType(domain.EventBatchSealed), 1)
}
