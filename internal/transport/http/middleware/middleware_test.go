package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	applog "github.com/ErlanBelekov/medico-billing/internal/log"
	"github.com/ErlanBelekov/medico-billing/internal/metrics"
	"github.com/ErlanBelekov/medico-billing/internal/session"
	"github.com/ErlanBelekov/medico-billing/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testKey = "middleware-test-secret-32-chars!!"

func init() {
	gin.SetMode(gin.TestMode)
}

func newIssuer(t *testing.T) *session.Issuer {
	t.Helper()
	iss, err := session.NewIssuer(session.Config{Secret: []byte(testKey)})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return iss
}

// newEngine protects GET /protected with Session and GET /admin with Session+RequireRole.
// Handlers echo the user id and the id seen by the log context.
func newEngine(iss *session.Issuer) *gin.Engine {
	r := gin.New()
	r.GET("/protected", middleware.Session(iss), func(c *gin.Context) {
		c.String(http.StatusOK, "%s|%s", c.GetString(middleware.UserIDKey), applog.UserIDFromContext(c.Request.Context()))
	})
	r.GET("/admin", middleware.Session(iss), middleware.RequireRole(domain.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func mint(t *testing.T, iss *session.Issuer, role domain.Role) string {
	t.Helper()
	tok, _, err := iss.Mint(&domain.User{ID: "user-abc", Email: "a@x.com", Role: role})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return tok
}

func do(r http.Handler, path, cookie string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: cookie})
	}
	r.ServeHTTP(w, req)
	return w
}

func TestSession_MissingCookie_Unauthorized(t *testing.T) {
	w := do(newEngine(newIssuer(t)), "/protected", "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"Unauthorized"`) {
		t.Errorf("body = %s, want Unauthorized message", w.Body.String())
	}
}

func TestSession_BadToken_InvalidToken(t *testing.T) {
	w := do(newEngine(newIssuer(t)), "/protected", "not.a.jwt")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"Invalid token"`) {
		t.Errorf("body = %s, want Invalid token message", w.Body.String())
	}
}

func TestSession_ExpiredToken_InvalidToken(t *testing.T) {
	past, err := session.NewIssuer(session.Config{
		Secret: []byte(testKey),
		Clock:  func() time.Time { return time.Now().Add(-48 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	tok := mint(t, past, domain.RoleUser)

	w := do(newEngine(newIssuer(t)), "/protected", tok)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSession_ValidToken_SetsUserID(t *testing.T) {
	iss := newIssuer(t)
	w := do(newEngine(iss), "/protected", mint(t, iss, domain.RoleUser))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "user-abc|user-abc" {
		t.Errorf("body = %q, want user-abc|user-abc", got)
	}
}

func TestRequireRole(t *testing.T) {
	iss := newIssuer(t)
	r := newEngine(iss)

	if w := do(r, "/admin", mint(t, iss, domain.RoleUser)); w.Code != http.StatusForbidden {
		t.Errorf("user role: status = %d, want 403", w.Code)
	}
	if w := do(r, "/admin", mint(t, iss, domain.RoleAdmin)); w.Code != http.StatusOK {
		t.Errorf("admin role: status = %d, want 200", w.Code)
	}
}

func TestRequestID_PreservesOrGenerates(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, applog.RequestIDFromContext(c.Request.Context()))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" || w.Header().Get(middleware.RequestIDHeader) != "abc-123" {
		t.Errorf("supplied id not preserved: body=%q header=%q", w.Body.String(), w.Header().Get(middleware.RequestIDHeader))
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "has spaces\tand tabs")
	r.ServeHTTP(w, req)
	if got := w.Body.String(); got == "" || strings.ContainsAny(got, " \t") {
		t.Errorf("invalid id should be replaced, got %q", got)
	}
}

func TestSecurity_Headers(t *testing.T) {
	for _, hsts := range []bool{false, true} {
		r := gin.New()
		r.Use(middleware.Security(hsts))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Error("missing nosniff")
		}
		if got := w.Header().Get("Strict-Transport-Security") != ""; got != hsts {
			t.Errorf("hsts=%v: header present = %v", hsts, got)
		}
	}
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Metrics())
	r.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/users/:id", "200")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/42", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("counter delta = %v, want 1", got)
	}
}
