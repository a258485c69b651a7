package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zhanibekov/libris-backend/api/responses"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
	"github.com/zhanibekov/libris-backend/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// AuthRateLimitPolicy holds the window and per-dimension limits for one
// credential endpoint. A zero-value policy disables throttling.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

// NewAuthRateLimitPolicy builds a policy named after the endpoint it guards.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{
		name:       name,
		window:     window,
		ipLimit:    ipLimit,
		emailLimit: emailLimit,
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// AuthRateLimit throttles credential endpoints on two dimensions: the caller
// IP and the submitted email. Emails are hashed before they reach Redis or
// the logs.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	t := &authThrottle{policy: policy, store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if t.handle(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

type authThrottle struct {
	policy AuthRateLimitPolicy
	store  rateLimiterStore
	logg   *logger.Logger
}

// handle reports whether the request may proceed; on false it has already
// written a response.
func (t *authThrottle) handle(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()

	if t.policy.ipLimit > 0 {
		if ip := clientIP(r); ip != "" {
			key := fmt.Sprintf("rl:ip:%s:%s", t.policy.name, ip)
			if !t.check(ctx, w, key, t.policy.ipLimit, map[string]any{"scope": "ip", "ip": ip}) {
				return false
			}
		}
	}

	if t.policy.emailLimit > 0 {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
			return false
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if hash := emailFingerprint(body); hash != "" {
			key := fmt.Sprintf("rl:email:%s:%s", t.policy.name, hash)
			if !t.check(ctx, w, key, t.policy.emailLimit, map[string]any{"scope": "email", "email_hash": hash}) {
				return false
			}
		}
	}

	return true
}

// check bumps the counter behind key and writes the throttled response when
// the limit is exceeded.
func (t *authThrottle) check(ctx context.Context, w http.ResponseWriter, key string, limit int, fields map[string]any) bool {
	count, err := t.store.IncrWithTTL(ctx, key, t.policy.window)
	if err != nil {
		responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if count <= int64(limit) {
		return true
	}

	if t.logg != nil {
		fields["policy"] = t.policy.name
		fields["attempts"] = count
		fields["limit"] = limit
		fields["window_seconds"] = int(t.policy.window.Seconds())
		t.logg.Warn(t.logg.WithFields(ctx, fields), "auth.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
	return false
}

// emailFingerprint pulls the email out of a JSON body and returns its SHA-256
// hex digest, or "" when the body has no usable email.
func emailFingerprint(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

// clientIP prefers proxy headers over RemoteAddr since the app runs behind a
// router that terminates TLS.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
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
