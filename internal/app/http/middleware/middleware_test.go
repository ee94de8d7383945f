package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"course-checkout/internal/infra/identity"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier map[string]*identity.Identity

func (s stubVerifier) Verify(_ context.Context, token string) (*identity.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, errors.New("bad token")
}

func authRouter(v identity.Verifier, mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(v)}, mw...)
	handlers = append(handlers, func(c *gin.Context) {
		uid, email := Caller(c)
		c.JSON(http.StatusOK, gin.H{"uid": uid, "email": email})
	})
	r.GET("/me", handlers...)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	v := stubVerifier{
		"good":  {UID: "u1", Email: "u1@example.com", Role: "student"},
		"admin": {UID: "a1", Role: "admin"},
	}

	tests := []struct {
		name   string
		header string
		mw     []gin.HandlerFunc
		want   int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer  ", want: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", want: http.StatusOK},
		{name: "admin route as student", header: "Bearer good", mw: []gin.HandlerFunc{RequireRole("admin")}, want: http.StatusForbidden},
		{name: "admin route as admin", header: "Bearer admin", mw: []gin.HandlerFunc{RequireRole("admin")}, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			authRouter(v, tt.mw...).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestAuthMiddleware_SetsCaller(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	authRouter(stubVerifier{"good": {UID: "u1", Email: "u1@example.com"}}).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uid":"u1","email":"u1@example.com"}`, w.Body.String())
}

func TestAuthMiddleware_NoVerifier(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	authRouter(nil).ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func echoRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.POST("/echo", mw, func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.Data(http.StatusOK, "application/json", body)
	})
	return r
}

func TestSanitize(t *testing.T) {
	r := echoRouter(SanitizeAndCleanInputMiddleware(1024))

	body := `{"courseId":"<script>alert(1)</script>go-101","nested":{"list":["<b>x</b>",3]},"n":5}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"courseId":"go-101","nested":{"list":["x",3]},"n":5}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("{oops")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"big":"`+strings.Repeat("a", 2048)+`"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(0.001, 2)
	r := gin.New()
	r.GET("/x", l.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2"), "buckets are per client")
}
