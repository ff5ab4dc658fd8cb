package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	usersvc "github.com/LeeSeungPhill/user-api-svc"
	"github.com/LeeSeungPhill/user-api-svc/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type resolverFunc func(ctx context.Context, token string) (usersvc.Account, error)

func (f resolverFunc) ResolveCurrentAccount(ctx context.Context, token string) (usersvc.Account, error) {
	return f(ctx, token)
}

func newTestEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	r := newTestEngine(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ctxRequestID)) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	generated := rec.Header().Get(headerRequestID)
	if generated == "" || rec.Body.String() != generated {
		t.Fatalf("expected generated request id in header and context, got %q / %q", generated, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "abc-123")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get(headerRequestID) != "abc-123" {
		t.Fatalf("expected caller request id echoed, got %q", rec.Header().Get(headerRequestID))
	}
}

func TestRecoveryAnswers500(t *testing.T) {
	var buf bytes.Buffer
	r := newTestEngine(Recovery(zerolog.New(&buf)))
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Detail != detailInternal {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "kaboom") {
		t.Fatalf("expected panic logged, got %q", buf.String())
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	r := newTestEngine(RequestID(), RequestLogger(zerolog.New(&buf).Level(zerolog.InfoLevel)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/bad", "/healthz"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the 400 line at info level, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["level"] != "warn" || entry["path"] != "/bad" || entry["status"] != float64(400) {
		t.Fatalf("unexpected log entry %v", entry)
	}
	if entry["request_id"] == nil {
		t.Fatal("expected request_id in log entry")
	}
}

func TestCORS(t *testing.T) {
	r := newTestEngine(CORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("expected allowed origin echoed, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected no CORS headers for unknown origin")
	}

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Fatalf("expected default allowed headers, got %q", rec.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestRequireAccount(t *testing.T) {
	resolver := resolverFunc(func(_ context.Context, token string) (usersvc.Account, error) {
		switch token {
		case "good":
			return usersvc.Account{AcctNo: 7}, nil
		case "locked":
			return usersvc.Account{}, usersvc.ErrAccountForbidden
		case "broken":
			return usersvc.Account{}, usersvc.ErrInfrastructure
		default:
			return usersvc.Account{}, usersvc.ErrTokenInvalid
		}
	})

	r := newTestEngine(RequireAccount(resolver))
	r.GET("/x", func(c *gin.Context) {
		acct, ok := middleware.AccountFromContext(c.Request.Context())
		if !ok || c.GetString(ctxAccessToken) != "good" {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"acct_no": acct.AcctNo})
	})

	tests := []struct {
		header string
		want   int
	}{
		{"Bearer good", http.StatusOK},
		{"", http.StatusUnauthorized},
		{"Basic Zm9vOmJhcg==", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer locked", http.StatusForbidden},
		{"Bearer broken", http.StatusInternalServerError},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.header, tc.want, rec.Code)
		}
		if tc.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("%q: expected WWW-Authenticate header", tc.header)
		}
	}
}
