package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/zhanibekov/libris-backend/api/responses"
	pkgerrors "github.com/zhanibekov/libris-backend/pkg/errors"
	"github.com/zhanibekov/libris-backend/pkg/logger"
	pkgredis "github.com/zhanibekov/libris-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotentRoute names a method+pattern that requires an Idempotency-Key.
// When suffix is set the pattern must both start with path and end with
// suffix, which covers parameterized routes like /loans/{loanId}/return.
type idempotentRoute struct {
	method string
	path   string
	suffix string
	ttl    time.Duration
}

func (rt idempotentRoute) matches(method, pattern string) bool {
	if rt.method != method {
		return false
	}
	if rt.suffix == "" {
		return pattern == rt.path
	}
	return strings.HasPrefix(pattern, rt.path) && strings.HasSuffix(pattern, rt.suffix)
}

var idempotentRoutes = []idempotentRoute{
	{method: http.MethodPost, path: "/api/v1/auth/register", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, path: "/api/v1/book-requests", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, path: "/api/admin/v1/books", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, path: "/api/admin/v1/fees", ttl: defaultIdempotencyTTL},
	// Ledger mutations keep records for longer so slow retries still replay.
	{method: http.MethodPost, path: "/api/admin/v1/loans", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, path: "/api/admin/v1/loans/", suffix: "/return", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, path: "/api/admin/v1/fees/", suffix: "/pay", ttl: criticalIdempotencyTTL},
}

func lookupIdempotentRoute(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, rt := range idempotentRoutes {
		if rt.matches(method, pattern) {
			return rt.ttl, true
		}
	}
	return 0, false
}

// idempotencyRecord is the cached outcome of the first request with a key.
// The body is base64 so it round-trips through JSON regardless of content.
type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

// Idempotency replays the stored response for repeated mutation requests
// that carry the same Idempotency-Key, and rejects key reuse across
// different request bodies.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, required := lookupIdempotentRoute(r.Method, routePattern(r))
			if !required || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if idempotencyKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			scope := strings.Join([]string{UserIDFromContext(ctx), r.Method, r.URL.Path}, "|")
			key := store.IdempotencyKey(scope, idempotencyKey)

			stored, getErr := store.Get(ctx, key)
			if getErr != nil && !errors.Is(getErr, redis.Nil) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, getErr, "check idempotency"))
				return
			}
			if stored != "" {
				replayRecord(ctx, logg, w, stored, requestHash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			saveRecord(ctx, logg, store, key, capture.record(requestHash), ttl)
		})
	}
}

// replayRecord serves a previously stored response, refusing when the body
// hash shows the key was reused for a different request.
func replayRecord(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, stored, requestHash string) {
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != requestHash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}

	if ct := record.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

// saveRecord persists the captured response. Failures here are logged, not
// surfaced: the client already has its response.
func saveRecord(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, key string, record idempotencyRecord, ttl time.Duration) {
	payload, err := json.Marshal(record)
	if err != nil {
		logError(ctx, logg, "marshal idempotency record", err)
		return
	}
	if _, err := store.SetNX(ctx, key, string(payload), ttl); err != nil {
		logError(ctx, logg, "persist idempotency record", err)
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// routePattern prefers the chi pattern, which keeps path parameters as
// placeholders, over the raw URL path.
func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) record(requestHash string) idempotencyRecord {
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	rec := idempotencyRecord{
		Status:      status,
		Body:        base64.StdEncoding.EncodeToString(r.body.Bytes()),
		RequestHash: requestHash,
	}
	if ct := r.Header().Get("Content-Type"); ct != "" {
		rec.Headers = map[string]string{"Content-Type": ct}
	}
	return rec
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
