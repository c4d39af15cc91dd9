package httpgin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIdentityMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware(), UserIDMiddleware())
	r.GET("/me", RequireUser(), func(c *gin.Context) {
		c.String(http.StatusOK, userID(c))
	})

	tests := []struct {
		name       string
		user       string
		requestID  string
		wantStatus int
		wantBody   string
		keepReqID  bool
	}{
		{name: "anonymous", wantStatus: http.StatusUnauthorized},
		{name: "blank user", user: "   ", wantStatus: http.StatusUnauthorized},
		{name: "user", user: " alice ", requestID: "req-1", wantStatus: http.StatusOK, wantBody: "alice", keepReqID: true},
		{name: "oversized request id", user: "bob", requestID: strings.Repeat("x", 65), wantStatus: http.StatusOK, wantBody: "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.user != "" {
				req.Header.Set(HeaderUserID, tt.user)
			}
			if tt.requestID != "" {
				req.Header.Set(headerRequestID, tt.requestID)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}

			got := w.Header().Get(headerRequestID)
			assert.NotEmpty(t, got)
			if tt.keepReqID {
				assert.Equal(t, tt.requestID, got)
			} else {
				assert.NotEqual(t, tt.requestID, got)
			}
		})
	}
}
