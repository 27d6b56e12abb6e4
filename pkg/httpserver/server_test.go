package httpserver_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaflowhq/ideaflow/pkg/httpserver"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newRecorder(handler http.HandlerFunc) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	return rec
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServer_RunAndShutdown(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	srv := httpserver.New(httpserver.WithAddr(addr))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	}()

	var resp *http.Response
	var err error
	require.Eventually(t, func() bool {
		resp, err = http.Get(fmt.Sprintf("http://%s/", addr))
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_StartFailure(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	// Address already in use.
	srv := httpserver.New(httpserver.WithAddr(l.Addr().String()))
	err = srv.Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestServer_ShutdownBeforeRun(t *testing.T) {
	t.Parallel()

	srv := httpserver.New()
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()

		handler := httpserver.HealthCheckHandler(context.Background(), noopLogger())
		rec := newRecorder(handler)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ALIVE", rec.Body.String())
	})

	t.Run("readiness ok", func(t *testing.T) {
		t.Parallel()

		handler := httpserver.HealthCheckHandler(context.Background(), noopLogger(),
			func(context.Context) error { return nil })
		rec := newRecorder(handler)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "READY", rec.Body.String())
	})

	t.Run("readiness failure", func(t *testing.T) {
		t.Parallel()

		handler := httpserver.HealthCheckHandler(context.Background(), noopLogger(),
			func(context.Context) error { return errors.New("db down") })
		rec := newRecorder(handler)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "NOT_READY", rec.Body.String())
	})
}
