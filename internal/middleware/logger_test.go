package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestLoggerOmitsPrompt(t *testing.T) {
	var buf bytes.Buffer
	var seen string
	h := RequestLogger(log.New(&buf, "", 0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query().Get("message")
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/stream/abc?message=my+secret+question&debug=1", nil))

	assert.Equal(t, "my secret question", seen)
	assert.Contains(t, buf.String(), "/api/stream/abc?debug=1")
	assert.NotContains(t, buf.String(), "secret")
}

func TestRequestLoggerKeepsOtherRequests(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogger(log.New(&buf, "", 0))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/session/abc/export?format=markdown", nil))

	assert.Contains(t, buf.String(), "/api/session/abc/export?format=markdown")
	assert.Contains(t, buf.String(), "204")
}
