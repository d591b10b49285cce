package captcha

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lead-intake/pkg/logging"
)

func TestSiteVerifier_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "shh", r.PostForm.Get("secret"))
		assert.Equal(t, "tok-123", r.PostForm.Get("response"))
		assert.Equal(t, "192.0.2.10", r.PostForm.Get("remoteip"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"hostname":"example.com"}`))
	}))
	defer srv.Close()

	v := NewSiteVerifier("shh", srv.URL, time.Second, logging.Discard())
	res := v.Verify(context.Background(), "tok-123", "192.0.2.10")

	assert.True(t, res.Success)
	assert.Empty(t, res.ErrorCodes)
}

func TestSiteVerifier_RejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	defer srv.Close()

	res := NewSiteVerifier("shh", srv.URL, time.Second, logging.Discard()).Verify(context.Background(), "bad", "")

	assert.False(t, res.Success)
	assert.Equal(t, []string{"invalid-input-response"}, res.ErrorCodes)
}

func TestSiteVerifier_FailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			code: CodeInternalError,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			},
			code: CodeBadResponse,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
				_, _ = w.Write([]byte(`{"success":true}`))
			},
			code: CodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			v := NewSiteVerifier("shh", srv.URL, 50*time.Millisecond, logging.Discard())
			res := v.Verify(context.Background(), "tok", "")

			assert.False(t, res.Success)
			assert.Equal(t, []string{tt.code}, res.ErrorCodes)
		})
	}
}

func TestSiteVerifier_MissingTokenSkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	res := NewSiteVerifier("shh", srv.URL, time.Second, logging.Discard()).Verify(context.Background(), "  ", "")

	assert.False(t, res.Success)
	assert.Equal(t, []string{CodeMissingInput}, res.ErrorCodes)
	assert.False(t, called)
}

func TestSiteVerifier_DoesNotLogToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["timeout-or-duplicate"]}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	v := NewSiteVerifier("shh", srv.URL, time.Second, logging.NewWithWriter(&buf, "debug"))
	v.Verify(context.Background(), "super-secret-token-value", "")

	assert.NotEmpty(t, buf.String())
	assert.NotContains(t, buf.String(), "super-secret-token-value")
	assert.NotContains(t, buf.String(), "shh")
}

func TestSiteVerifier_TruncatedBodyIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "64")
		_, _ = w.Write([]byte(`{"success":tr`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	v := NewSiteVerifier("shh", srv.URL, time.Second, logging.NewWithWriter(&buf, "debug"))
	res := v.Verify(context.Background(), "tok", "")

	assert.False(t, res.Success)
	assert.Equal(t, []string{CodeBadResponse}, res.ErrorCodes)
	assert.Contains(t, buf.String(), "captcha response read failed")
}

func TestNoopVerifier(t *testing.T) {
	assert.True(t, NoopVerifier{}.Verify(context.Background(), "", "").Success)
}
