package response

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRequestIDEngine(seen *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		*seen = RequestID(c)
		Success(c, http.StatusOK, nil)
	})
	return r
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"generated when absent", "", false},
		{"client id kept", "trace-abc-123", true},
		{"too long replaced", strings.Repeat("a", maxRequestIDLen+1), false},
		{"control chars replaced", "bad\tid", false},
		{"spaces replaced", "bad id", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			r := newRequestIDEngine(&seen)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			if got == "" || got != seen {
				t.Fatalf("header %q, context %q", got, seen)
			}
			if tt.keep && got != tt.header {
				t.Errorf("expected client id %q, got %q", tt.header, got)
			}
			if !tt.keep && got == tt.header {
				t.Errorf("expected generated id, got client value %q", got)
			}
			if !strings.Contains(w.Body.String(), `"request_id":"`+got+`"`) {
				t.Errorf("metadata missing request id: %s", w.Body.String())
			}
		})
	}
}
