package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/martinsmelkis/bartering-app-backend-sub000/internal/errors"
)

type stubFileQueue struct {
	notices map[string][]json.RawMessage
	err     error
}

func (s *stubFileQueue) QueuePendingFile(ctx context.Context, userID string, notice json.RawMessage) error {
	if s.err != nil {
		return s.err
	}
	s.notices[userID] = append(s.notices[userID], notice)
	return nil
}

func newFileServer(queue *stubFileQueue) *httptest.Server {
	h := NewFileNoticeHandler(queue)
	r := chi.NewRouter()
	r.Mount("/v1/files", h.Routes())
	return httptest.NewServer(r)
}

func TestQueueFileNotice(t *testing.T) {
	t.Run("queues a valid notice", func(t *testing.T) {
		queue := &stubFileQueue{notices: make(map[string][]json.RawMessage)}
		server := newFileServer(queue)
		defer server.Close()

		resp, err := http.Post(
			server.URL+"/v1/files/pending/bob",
			"application/json",
			strings.NewReader(`{"fileId":"f1","name":"photo.jpg"}`),
		)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.Len(t, queue.notices["bob"], 1)
		assert.JSONEq(t, `{"fileId":"f1","name":"photo.jpg"}`, string(queue.notices["bob"][0]))
	})

	t.Run("rejects a non-JSON body", func(t *testing.T) {
		queue := &stubFileQueue{notices: make(map[string][]json.RawMessage)}
		server := newFileServer(queue)
		defer server.Close()

		resp, err := http.Post(server.URL+"/v1/files/pending/bob", "text/plain", strings.NewReader("not json"))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Empty(t, queue.notices["bob"])
	})

	t.Run("surfaces queue failures", func(t *testing.T) {
		queue := &stubFileQueue{notices: make(map[string][]json.RawMessage), err: assert.AnError}
		server := newFileServer(queue)
		defer server.Close()

		resp, err := http.Post(server.URL+"/v1/files/pending/bob", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("maps a redis outage to bad gateway", func(t *testing.T) {
		queue := &stubFileQueue{notices: make(map[string][]json.RawMessage), err: apperrors.External("redis", assert.AnError)}
		server := newFileServer(queue)
		defer server.Close()

		resp, err := http.Post(server.URL+"/v1/files/pending/bob", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}
