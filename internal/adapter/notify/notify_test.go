package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/panelsim/internal/domain"
)

var sample = Notification{
	RunID:       "run-1",
	Status:      domain.RunStatusSucceeded,
	DownloadURL: "/api/runs/run-1/download",
	Ts:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
}

func TestWebhookPostsJSON(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.URL).Notify(context.Background(), sample))
	assert.Equal(t, sample, got)
}

func TestWebhookNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Notify(context.Background(), sample)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookDisabled(t *testing.T) {
	assert.NoError(t, NewWebhook("  ").Notify(context.Background(), sample))
}

type fakePublisher struct {
	mu   sync.Mutex
	subj []string
	data [][]byte
	err  error
}

func (p *fakePublisher) Publish(subj string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subj = append(p.subj, subj)
	p.data = append(p.data, data)
	return p.err
}

func TestNATSPublishesPerStatusSubject(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNATS(pub, "")

	require.NoError(t, n.Notify(context.Background(), sample))
	require.Len(t, pub.subj, 1)
	assert.Equal(t, "panelsim.runs.succeeded", pub.subj[0])

	var got Notification
	require.NoError(t, json.Unmarshal(pub.data[0], &got))
	assert.Equal(t, sample, got)
	assert.NoError(t, n.Close())
}

func TestNATSPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("disconnected")}
	err := NewNATS(pub, "custom").Notify(context.Background(), sample)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom.succeeded")
}

type failing struct{ msg string }

func (f failing) Notify(context.Context, Notification) error { return errors.New(f.msg) }

func TestMultiDeliversToAll(t *testing.T) {
	pub := &fakePublisher{}
	m := Multi{failing{"first"}, NewNATS(pub, "s"), Nop{}, failing{"second"}}

	err := m.Notify(context.Background(), sample)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
	assert.Len(t, pub.subj, 1)

	assert.NoError(t, Multi{Nop{}}.Notify(context.Background(), sample))
}
