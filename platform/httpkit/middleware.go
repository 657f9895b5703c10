package httpkit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"raccordement_backend/platform/config"
	"raccordement_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	ContextUserIDKey    = "userID"
	ContextRolesKey     = "roles"
	ContextRequestIDKey = "requestID"

	HeaderRequestID = "X-Request-ID"

	errMissingToken = "missing token"
	errInvalidToken = "invalid token"
)

type (
	clientIPKey struct{}
	actorKey    struct{}
)

// ClientIPFromContext returns the caller IP recorded by RequestID.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// ActorFromContext returns the authenticated user recorded by AuthRequired.
func ActorFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actorKey{}).(uuid.UUID)
	return id, ok
}

// RequestID propagates or creates an X-Request-ID and stores it on the
// request context for the logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Header(HeaderRequestID, id)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, id)
		ctx = context.WithValue(ctx, clientIPKey{}, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger logs every request and the errors handlers attached to it.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		reqLog := log.WithContext(c.Request.Context())
		for _, ginErr := range c.Errors {
			if status >= http.StatusInternalServerError {
				reqLog.HTTPError(c.Request.Method, path, status, ginErr.Err, c.ClientIP())
			}
		}
		reqLog.HTTPRequest(c.Request.Method, path, status, float64(time.Since(start).Microseconds())/1000, c.ClientIP())
	}
}

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// KeyedRateLimiter keeps one token bucket per key (client IP, API key id).
type KeyedRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

func NewKeyedRateLimiter(r rate.Limit, burst int, log *logger.Logger) *KeyedRateLimiter {
	return &KeyedRateLimiter{rate: r, burst: burst, log: log}
}

// Allow consumes a token for key.
func (l *KeyedRateLimiter) Allow(key string) bool {
	limiter, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	return limiter.(*rate.Limiter).Allow()
}

// RateLimit limits by client IP.
func (l *KeyedRateLimiter) RateLimit() gin.HandlerFunc {
	return l.RateLimitBy(func(c *gin.Context) string { return c.ClientIP() })
}

// RateLimitBy limits by the key extracted from the request.
func (l *KeyedRateLimiter) RateLimitBy(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if !l.Allow(key) {
			if l.log != nil {
				l.log.RateLimitExceeded(c.ClientIP(), c.Request.URL.Path)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// AuthRateLimiter is the strict limiter for sign-in and password routes.
type AuthRateLimiter struct {
	*KeyedRateLimiter
}

// NewAuthRateLimiter allows 5 requests per minute per IP.
func NewAuthRateLimiter(log *logger.Logger) *AuthRateLimiter {
	return &AuthRateLimiter{KeyedRateLimiter: NewKeyedRateLimiter(rate.Limit(5.0/60.0), 5, log)}
}

// NewPublicRateLimiter is used by the anonymous funnel and contact form:
// 1 request per second per IP with a burst of 20.
func NewPublicRateLimiter(log *logger.Logger) *KeyedRateLimiter {
	return NewKeyedRateLimiter(rate.Limit(1), 20, log)
}

// AccessClaims are the claims carried by a validated access token.
type AccessClaims struct {
	UserID uuid.UUID
	Roles  []string
}

// AuthRequired validates the access token from the Authorization header,
// or from the token query parameter for websocket upgrades.
func AuthRequired(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			rawToken = c.Query("token")
			if rawToken == "" {
				abortUnauthorized(c, errMissingToken)
				return
			}
		}

		claims, err := ParseAccessToken(rawToken, cfg)
		if err != nil {
			abortUnauthorized(c, errInvalidToken)
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextRolesKey, claims.Roles)
		ctx := context.WithValue(c.Request.Context(), logger.UserIDKey, claims.UserID.String())
		ctx = context.WithValue(ctx, actorKey{}, claims.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole admits users whose token carries role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetIdentity(c).HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
			return
		}
		c.Next()
	}
}

// ParseAccessToken validates an HS256 access token.
func ParseAccessToken(rawToken string, cfg config.JWTConfig) (AccessClaims, error) {
	parsed, err := jwt.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(cfg.GetJWTAccessSecret()), nil
	})
	if err != nil || !parsed.Valid {
		return AccessClaims{}, errors.New(errInvalidToken)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return AccessClaims{}, errors.New(errInvalidToken)
	}
	if tokenType, _ := claims["type"].(string); tokenType != "access" {
		return AccessClaims{}, errors.New(errInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return AccessClaims{}, errors.New(errInvalidToken)
	}

	return AccessClaims{UserID: userID, Roles: extractRoles(claims["roles"])}, nil
}

func extractRoles(value interface{}) []string {
	roles := make([]string, 0)
	switch typed := value.(type) {
	case []string:
		return append(roles, typed...)
	case []interface{}:
		for _, item := range typed {
			if text, ok := item.(string); ok {
				roles = append(roles, text)
			}
		}
	}
	return roles
}

func extractBearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return rawToken, rawToken != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: message})
}
