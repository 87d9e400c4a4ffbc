package identity

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func newTestResolver() *Resolver {
	return NewResolver("test-secret", "guest_token", 24*time.Hour, false)
}

func testContext(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func TestResolve_MintsGuestOnFirstContact(t *testing.T) {
	r := newTestResolver()
	c, w := testContext(httptest.NewRequest(http.MethodGet, "/", nil))

	p := r.Resolve(c)

	if p.GuestID == "" {
		t.Fatal("expected guest id to be minted")
	}
	if !strings.HasPrefix(p.GuestID, "guest:") {
		t.Errorf("guest id %q missing guest: prefix", p.GuestID)
	}
	if p.Tier != TierGuest {
		t.Errorf("tier = %q, want %q", p.Tier, TierGuest)
	}
	if p.IsAuthenticated() {
		t.Error("guest should not be authenticated")
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "guest_token" {
		t.Fatalf("expected guest_token cookie, got %v", cookies)
	}
}

func TestResolve_StableGuestAcrossRequests(t *testing.T) {
	r := newTestResolver()

	c1, w1 := testContext(httptest.NewRequest(http.MethodGet, "/", nil))
	first := r.Resolve(c1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range w1.Result().Cookies() {
		req.AddCookie(cookie)
	}
	c2, w2 := testContext(req)
	second := r.Resolve(c2)

	if first.GuestID != second.GuestID {
		t.Errorf("guest id changed between requests: %q vs %q", first.GuestID, second.GuestID)
	}
	if len(w2.Result().Cookies()) != 0 {
		t.Error("second request should not set a new cookie")
	}
}

func TestResolve_UserTokenWins(t *testing.T) {
	r := newTestResolver()

	claims := &userClaims{
		Tier: "premium",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user:42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c, _ := testContext(req)

	p := r.Resolve(c)

	if p.UserID != "user:42" {
		t.Errorf("UserID = %q, want user:42", p.UserID)
	}
	if p.Tier != "premium" {
		t.Errorf("Tier = %q, want premium", p.Tier)
	}
	if p.Owner() != "user:42" {
		t.Errorf("Owner() = %q, want user:42", p.Owner())
	}
	if !p.IsAuthenticated() {
		t.Error("user principal should be authenticated")
	}
}

func TestResolve_BadUserTokenFallsBackToGuest(t *testing.T) {
	r := newTestResolver()

	// Signed with the wrong secret.
	claims := &jwt.RegisteredClaims{
		Subject:   "user:42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	c, _ := testContext(req)

	p := r.Resolve(c)

	if p.UserID != "" {
		t.Errorf("forged token accepted, UserID = %q", p.UserID)
	}
	if p.GuestID == "" {
		t.Error("expected fallback to guest identity")
	}
}

func TestResolve_TamperedGuestCookieReminted(t *testing.T) {
	r := newTestResolver()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "guest_token", Value: "not-a-jwt"})
	c, w := testContext(req)

	p := r.Resolve(c)

	if p.GuestID == "" {
		t.Fatal("expected fresh guest id")
	}
	if len(w.Result().Cookies()) != 1 {
		t.Error("expected replacement cookie to be set")
	}
}

func TestMiddleware_StoresPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := newTestResolver()

	router := gin.New()
	router.Use(r.Middleware())

	var got Principal
	router.GET("/", func(c *gin.Context) {
		got = FromContext(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got.Owner() == "" {
		t.Error("middleware did not store a principal")
	}
}

func TestOwner_EmptyPrincipal(t *testing.T) {
	var p Principal
	if p.Owner() != "" {
		t.Errorf("Owner() of zero principal = %q, want empty", p.Owner())
	}
}
