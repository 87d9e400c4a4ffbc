// Package identity derives the acting principal for a request: a verified
// user token if one is presented, otherwise a stable anonymous guest id
// carried in a long-lived signed cookie. Credential verification (login,
// password hashing, OAuth) lives outside this service; we only verify
// signatures.
package identity

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	contextKey = "principal"

	TierGuest = "guest"
	TierFree  = "free"
)

// Principal identifies the caller for ownership and quota checks.
type Principal struct {
	UserID  string
	GuestID string
	Tier    string
}

// Owner returns the id that resources created by this principal are owned
// by: the user id for authenticated callers, the guest id otherwise.
func (p Principal) Owner() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.GuestID
}

func (p Principal) IsAuthenticated() bool {
	return p.UserID != ""
}

type userClaims struct {
	Tier string `json:"tier,omitempty"`
	jwt.RegisteredClaims
}

type Resolver struct {
	jwtSecret       []byte
	guestCookieName string
	guestTokenTTL   time.Duration
	secureCookies   bool
}

func NewResolver(jwtSecret, guestCookieName string, guestTokenTTL time.Duration, secureCookies bool) *Resolver {
	return &Resolver{
		jwtSecret:       []byte(jwtSecret),
		guestCookieName: guestCookieName,
		guestTokenTTL:   guestTokenTTL,
		secureCookies:   secureCookies,
	}
}

// Middleware resolves the principal once per request and stores it in the
// gin context. First-time anonymous visitors get a guest id minted and set
// as a signed cookie so their identity survives across requests.
func (r *Resolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextKey, r.Resolve(c))
		c.Next()
	}
}

// Resolve determines the principal for the current request.
func (r *Resolver) Resolve(c *gin.Context) Principal {
	// A valid Authorization bearer token wins.
	if auth := c.GetHeader("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		if p, err := r.verifyUserToken(auth[7:]); err == nil {
			return p
		}
	}

	if cookie, err := c.Cookie(r.guestCookieName); err == nil {
		if guestID, err := r.verifyGuestToken(cookie); err == nil {
			return Principal{GuestID: guestID, Tier: TierGuest}
		}
	}

	return r.mintGuest(c)
}

func (r *Resolver) verifyUserToken(tokenString string) (Principal, error) {
	claims := &userClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return Principal{}, fmt.Errorf("invalid user token: %w", err)
	}

	tier := claims.Tier
	if tier == "" {
		tier = TierFree
	}
	return Principal{UserID: claims.Subject, Tier: tier}, nil
}

func (r *Resolver) verifyGuestToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid guest token: %w", err)
	}
	return claims.Subject, nil
}

func (r *Resolver) mintGuest(c *gin.Context) Principal {
	guestID := "guest:" + uuid.NewString()

	tokenString, err := r.SignGuestToken(guestID)
	if err != nil {
		// Can't persist the identity; the request still proceeds with a
		// one-off guest id.
		return Principal{GuestID: guestID, Tier: TierGuest}
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     r.guestCookieName,
		Value:    tokenString,
		Expires:  time.Now().Add(r.guestTokenTTL),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	return Principal{GuestID: guestID, Tier: TierGuest}
}

// SignGuestToken issues a signed token carrying a guest id.
func (r *Resolver) SignGuestToken(guestID string) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   guestID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(r.guestTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.jwtSecret)
}

// FromContext returns the principal resolved by the middleware.
func FromContext(c *gin.Context) Principal {
	if v, ok := c.Get(contextKey); ok {
		if p, ok := v.(Principal); ok {
			return p
		}
	}
	return Principal{Tier: TierGuest}
}
