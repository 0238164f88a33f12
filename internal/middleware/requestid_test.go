package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveRequestID sends one request carrying header (when non-empty) through
// RequestID and returns the ID seen by the handler and the response header.
func serveRequestID(t *testing.T, header string) (seen, echoed string) {
	t.Helper()
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	if header != "" {
		req.Header.Set("X-Request-ID", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	return seen, rec.Header().Get("X-Request-ID")
}

func TestRequestID_Generated(t *testing.T) {
	t.Parallel()
	seen, echoed := serveRequestID(t, "")

	assert.Equal(t, seen, echoed)
	parsed, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestRequestID_Reused(t *testing.T) {
	t.Parallel()
	seen, echoed := serveRequestID(t, "minio:event-42.a_b")
	assert.Equal(t, "minio:event-42.a_b", seen)
	assert.Equal(t, seen, echoed)
}

func TestValidRequestID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		id   string
		want bool
	}{
		{"abc-123_DEF", true},
		{"arn:aws:s3:::bucket.1", true},
		{strings.Repeat("x", maxRequestIDLen), true},
		{"", false},
		{strings.Repeat("x", maxRequestIDLen+1), false},
		{"id\nlevel=ERROR", false},
		{"id\rforged", false},
		{"two words", false},
		{"<b>", false},
		{"ünïcode", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validRequestID(tt.id), "%q", tt.id)
	}
}

func TestRequestID_ReplacesInvalid(t *testing.T) {
	t.Parallel()
	seen, echoed := serveRequestID(t, "forged\tid")
	assert.NotEqual(t, "forged\tid", seen)
	assert.Equal(t, seen, echoed)
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, RequestIDFromContext(req.Context()))
}
