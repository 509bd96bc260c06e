package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"

	"academy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	// How long the in-progress marker lives if the handler never finishes.
	provisionalLockTTL = 60 * time.Second

	// Largest non-multipart body hashed for reuse detection.
	maxHashedBody = 1 << 20
)

var errCorruptEntry = errors.New("corrupt idempotency entry")

var reIdempotencyKey = regexp.MustCompile(`^[A-Za-z0-9_\-]{8,128}$`)

type idempEntry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	BodySHA256  string    `json:"body_sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

// bodyRecorder tees everything the handler writes into buf.
type bodyRecorder struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response when a mutating request repeats its
// Idempotency-Key. Requests without the header pass through untouched, as does
// everything when rdb is nil. Keys are scoped by method, route and caller.
func Idempotency(rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		reqKey := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if reqKey == "" {
			c.Next()
			return
		}
		if !reIdempotencyKey.MatchString(reqKey) {
			c.AbortWithStatusJSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid "+IdempotencyHeader))
			return
		}

		// Multipart uploads are keyed on the header alone; their bodies are not buffered.
		var bhash string
		if !isMultipart(c.Request) {
			var body []byte
			if c.Request.Body != nil {
				var err error
				body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxHashedBody))
				if err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, response.Error(http.StatusRequestEntityTooLarge, "request body too large"))
						return
					}
					c.AbortWithStatusJSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "failed to read request body"))
					return
				}
			}
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
			bhash = bodyHash(body)
		}

		key := buildIdempotencyKey(c.Request.Method, c.FullPath(), callerOf(c), reqKey)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		pending := idempEntry{InProgress: true, BodySHA256: bhash, CreatedAt: time.Now().UTC()}
		ok, err := provisionalSet(ctx, rdb, key, pending)
		var cur idempEntry
		if err == nil && !ok {
			cur, err = loadEntry(ctx, rdb, key)
			if errors.Is(err, redis.Nil) || errors.Is(err, errCorruptEntry) {
				// the entry expired or cannot be decoded, so treat it as a miss
				log.WithError(err).WithField("key", key).Warn("discarding idempotency entry")
				if err = rdb.Del(ctx, key).Err(); err == nil {
					ok, err = provisionalSet(ctx, rdb, key, pending)
				}
				if err == nil && !ok {
					cur, err = loadEntry(ctx, rdb, key)
				}
			}
		}
		if err != nil {
			log.WithError(err).Warn("idempotency store unavailable")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, response.Error(http.StatusServiceUnavailable, "idempotency store unavailable"))
			return
		}
		if !ok {
			if cur.BodySHA256 != bhash {
				c.AbortWithStatusJSON(http.StatusConflict, response.Error(http.StatusConflict, IdempotencyHeader+" reused with different body"))
				return
			}
			if !cur.InProgress && cur.Code != 0 {
				c.Header(ReplayedHeader, "true")
				c.Data(cur.Code, cur.ContentType, cur.Body)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusConflict, response.Error(http.StatusConflict, "request is already in progress"))
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = rec
		c.Next()

		// Server errors are not cached so the client can retry.
		if rec.Status() >= http.StatusInternalServerError {
			if err := rdb.Del(context.Background(), key).Err(); err != nil {
				log.WithError(err).WithField("key", key).Warn("failed to release idempotency key")
			}
			return
		}
		final := idempEntry{
			Code:        rec.Status(),
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.buf.Bytes(),
			BodySHA256:  bhash,
			CreatedAt:   time.Now().UTC(),
		}
		if err := saveFinal(context.Background(), rdb, key, final, ttl); err != nil {
			log.WithError(err).WithField("key", key).Warn("failed to store idempotent response")
		}
	}
}

func callerOf(c *gin.Context) string {
	if v, ok := c.Get(CtxUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id.String()
		}
	}
	return "anonymous"
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func buildIdempotencyKey(method, path, caller, requestKey string) string {
	return "idemp:" + strings.ToLower(method) + ":" + path + ":" + caller + ":" + requestKey
}

// ---- Redis helpers ----

func provisionalSet(ctx context.Context, rdb *redis.Client, key string, entry idempEntry) (bool, error) {
	payload, _ := json.Marshal(entry)
	return rdb.SetNX(ctx, key, payload, provisionalLockTTL).Result()
}

func loadEntry(ctx context.Context, rdb *redis.Client, key string) (idempEntry, error) {
	var e idempEntry
	v, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(v, &e); err != nil {
		return idempEntry{}, fmt.Errorf("%w: %v", errCorruptEntry, err)
	}
	return e, nil
}

func saveFinal(ctx context.Context, rdb *redis.Client, key string, entry idempEntry, ttl time.Duration) error {
	payload, _ := json.Marshal(entry)
	return rdb.Set(ctx, key, payload, ttl).Err()
}
