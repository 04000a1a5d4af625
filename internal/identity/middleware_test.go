package identity_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/mcptrust/internal/identity"
)

func newGuardedRouter(ti *identity.TokenIssuer, scope string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/guarded", identity.RequireToken(ti, scope), func(c *gin.Context) {
		c.String(http.StatusOK, identity.ClaimsFromCtx(c).Subject)
	})
	return r
}

func doGuarded(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireToken(t *testing.T) {
	ti := newTestTokenIssuer(t)
	r := newGuardedRouter(ti, identity.ScopeServersWrite)

	good, _ := ti.Issue("ops", nil)
	narrow, _ := ti.Issue("ops", []string{identity.ScopeChallengesWrite})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"missing scope", "Bearer " + narrow, http.StatusForbidden},
		{"valid", "Bearer " + good, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doGuarded(r, tc.header)
			if w.Code != tc.want {
				t.Errorf("status: got %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestRequireToken_injectsClaims(t *testing.T) {
	ti := newTestTokenIssuer(t)
	r := newGuardedRouter(ti, "")

	token, _ := ti.Issue("alice", []string{identity.ScopeChallengesWrite})
	w := doGuarded(r, "Bearer "+token)
	if w.Code != http.StatusOK || w.Body.String() != "alice" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}
