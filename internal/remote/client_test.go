package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mapforge/internal/apperr"
)

func newClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithRetry(3, time.Millisecond)}, opts...)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("not a url")
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestLoadSendsMapIDAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/map/editor/load", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "42", body["mapId"])

		_, _ = w.Write([]byte(`{"mapInfo":{"name":"yard"}}`))
	}))
	defer srv.Close()

	data, err := newClient(t, srv, WithToken("secret")).Load(context.Background(), "42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"mapInfo":{"name":"yard"}}`, string(data))
}

func TestLoadNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).Load(context.Background(), "x")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).Load(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOversizedResponseIsRejected(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"mapInfo":{"name":"a very long yard name"}}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv, WithMaxResponseSize(16)).Load(context.Background(), "x")
	require.ErrorIs(t, err, ErrResponseTooLarge)
	require.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Equal(t, int32(1), calls.Load())

	data, err := newClient(t, srv, WithMaxResponseSize(1024)).Load(context.Background(), "x")
	require.NoError(t, err)
	assert.Contains(t, string(data), "yard")
}

func TestServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv).Load(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestServerErrorGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(t, srv, WithRetry(2, time.Millisecond)).Load(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSaveUploadsMultipartFile(t *testing.T) {
	doc := []byte(`{"mapInfo":{"id":"7","version":"2.3"}}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/map/model/7/editor-data/upload", r.URL.Path)

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "map_2.3.json", hdr.Filename)
		got, _ := io.ReadAll(f)
		assert.Equal(t, doc, got)

		_, _ = w.Write([]byte(`{"code":200,"msg":"ok"}`))
	}))
	defer srv.Close()

	require.NoError(t, newClient(t, srv).Save(context.Background(), "7", doc))
}

func TestSaveRejectedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":500,"msg":"disk full"}`))
	}))
	defer srv.Close()

	err := newClient(t, srv).Save(context.Background(), "7", []byte(`{}`))
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSaveEnvelopeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":404,"msg":"map does not exist"}`))
	}))
	defer srv.Close()

	err := newClient(t, srv).Save(context.Background(), "7", []byte(`{}`))
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient(t, srv).Load(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "map_1.0.json", FileName([]byte(`{}`)))
	assert.Equal(t, "map_1.0.json", FileName([]byte(`garbage`)))
	assert.Equal(t, "map_4.json", FileName([]byte(`{"mapInfo":{"version":"4"}}`)))
}
