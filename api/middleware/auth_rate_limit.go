package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/retailhive/retailhive-backend/api/responses"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
	"github.com/retailhive/retailhive-backend/pkg/logger"
)

// maxCredentialBody caps how much of a login or register body is buffered
// to find the identity.
const maxCredentialBody = 64 << 10

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// RateLimitPolicy throttles one credential endpoint. A zero limit disables
// that dimension; a zero window disables the policy.
type RateLimitPolicy struct {
	Name        string
	Window      time.Duration
	PerIP       int
	PerIdentity int
}

func (p RateLimitPolicy) active() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerIdentity > 0)
}

func (p RateLimitPolicy) label() string {
	if name := strings.ToLower(strings.TrimSpace(p.Name)); name != "" {
		return name
	}
	return "auth"
}

// rateBucket is a single counter checked for a request.
type rateBucket struct {
	scope   string
	subject string
	limit   int
}

func (b rateBucket) key(policy string) string {
	return "rl:" + b.scope + ":" + policy + ":" + b.subject
}

// AuthRateLimit counts attempts per client IP and per submitted identity
// (email, falling back to username) and answers 429 once either counter
// passes its limit inside the window.
func AuthRateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.active() || store == nil {
			return next
		}
		label := policy.label()

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			buckets := make([]rateBucket, 0, 2)
			if ip := clientIP(r); policy.PerIP > 0 && ip != "" {
				buckets = append(buckets, rateBucket{scope: "ip", subject: ip, limit: policy.PerIP})
			}
			if policy.PerIdentity > 0 && r.Body != nil {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxCredentialBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if identity := identityFromBody(body); identity != "" {
					buckets = append(buckets, rateBucket{scope: "identity", subject: digest(identity), limit: policy.PerIdentity})
				}
			}

			for _, bucket := range buckets {
				count, err := store.IncrWithTTL(ctx, bucket.key(label), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(bucket.limit) {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"policy":   label,
							"scope":    bucket.scope,
							"subject":  bucket.subject,
							"attempts": count,
							"limit":    bucket.limit,
						}), "auth rate limit exceeded")
					}
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func identityFromBody(payload []byte) string {
	var creds struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if json.Unmarshal(payload, &creds) != nil {
		return ""
	}
	identity := creds.Email
	if strings.TrimSpace(identity) == "" {
		identity = creds.Username
	}
	return strings.ToLower(strings.TrimSpace(identity))
}

func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
