package restclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type echo struct {
	Method string `json:"method"`
	Query  string `json:"query"`
	Key    string `json:"key"`
}

func TestDoDecodesAndSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"method":"` + r.Method + `","query":"` + r.URL.RawQuery + `","key":"` + r.Header.Get("x-api-key") + `"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second, WithHeader("x-api-key", "k1"))
	got, raw, err := Do[echo](context.Background(), c, http.MethodGet, "/x", url.Values{"a": {"1"}}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.Equal(t, "GET", got.Method)
	require.Equal(t, "a=1", got.Query)
	require.Equal(t, "k1", got.Key)
}

func TestStatusErrorCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, _, err := Do[echo](context.Background(), New(srv.URL, time.Second), http.MethodGet, "/", nil, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	require.Equal(t, 7*time.Second, se.RetryAfter)
}

func TestMalformedBodyAndTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	_, _, err := Do[echo](context.Background(), New(srv.URL, time.Second), http.MethodGet, "/", nil, nil)
	require.ErrorIs(t, err, ErrDecode)
	srv.Close()

	_, _, err = Do[echo](context.Background(), New(srv.URL, time.Second), http.MethodGet, "/", nil, nil)
	require.ErrorIs(t, err, ErrTransport)
}
