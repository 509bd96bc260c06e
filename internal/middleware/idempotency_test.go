package middleware

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func init() { gin.SetMode(gin.TestMode) }

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// setupRouter mounts a counting handler behind the middleware.
func setupRouter(rdb *redis.Client, status int, calls *int32) *gin.Engine {
	r := gin.New()
	r.Use(Idempotency(rdb, 30*time.Second, logrus.New()))
	h := func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(status, gin.H{"call": n, "echo": string(body)})
	}
	r.POST("/applications", h)
	r.GET("/applications", h)
	return r
}

func doReq(r *gin.Engine, method, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/applications", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyReplaysResponse(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var calls int32
	r := setupRouter(rdb, http.StatusCreated, &calls)

	first := doReq(r, http.MethodPost, `{"position_id":"p1"}`, "key-0001-abcdef")
	if first.Code != http.StatusCreated {
		t.Fatalf("first call: want 201, got %d", first.Code)
	}
	second := doReq(r, http.MethodPost, `{"position_id":"p1"}`, "key-0001-abcdef")
	if second.Code != http.StatusCreated {
		t.Fatalf("replay: want 201, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("replayed body differs:\n%s\n%s", first.Body, second.Body)
	}
	if second.Header().Get(ReplayedHeader) != "true" {
		t.Error("replay header missing")
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var calls int32
	r := setupRouter(rdb, http.StatusCreated, &calls)

	doReq(r, http.MethodPost, `{"a":1}`, "key-0002-abcdef")
	rec := doReq(r, http.MethodPost, `{"a":2}`, "key-0002-abcdef")
	if rec.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", rec.Code)
	}
}

func TestIdempotencyInProgress(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	var calls int32
	r := setupRouter(rdb, http.StatusCreated, &calls)

	// Simulate a concurrent request holding the lock.
	key := buildIdempotencyKey(http.MethodPost, "/applications", "anonymous", "key-0003-abcdef")
	if err := mr.Set(key, `{"in_progress":true,"body_sha256":"`+bodyHash([]byte(`{}`))+`"}`); err != nil {
		t.Fatal(err)
	}
	rec := doReq(r, http.MethodPost, `{}`, "key-0003-abcdef")
	if rec.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", rec.Code)
	}
	if calls != 0 {
		t.Errorf("handler should not run, ran %d times", calls)
	}
}

func TestIdempotencyServerErrorNotCached(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	var calls int32
	r := setupRouter(rdb, http.StatusInternalServerError, &calls)

	doReq(r, http.MethodPost, `{}`, "key-0004-abcdef")
	key := buildIdempotencyKey(http.MethodPost, "/applications", "anonymous", "key-0004-abcdef")
	if mr.Exists(key) {
		t.Fatal("5xx response should release the key")
	}
	doReq(r, http.MethodPost, `{}`, "key-0004-abcdef")
	if calls != 2 {
		t.Errorf("handler ran %d times, want 2", calls)
	}
}

func TestIdempotencyPassThrough(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var calls int32
	r := setupRouter(rdb, http.StatusOK, &calls)

	doReq(r, http.MethodGet, "", "key-0005-abcdef")
	doReq(r, http.MethodGet, "", "key-0005-abcdef")
	doReq(r, http.MethodPost, `{}`, "")
	doReq(r, http.MethodPost, `{}`, "")
	if calls != 4 {
		t.Errorf("handler ran %d times, want 4", calls)
	}

	if rec := doReq(r, http.MethodPost, `{}`, "bad key!"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed key: want 400, got %d", rec.Code)
	}

	noRedis := setupRouter(nil, http.StatusOK, &calls)
	if rec := doReq(noRedis, http.MethodPost, `{}`, "key-0006-abcdef"); rec.Code != http.StatusOK {
		t.Errorf("nil client should pass through, got %d", rec.Code)
	}
}

func TestIdempotencyStoreDown(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	var calls int32
	r := setupRouter(rdb, http.StatusCreated, &calls)
	mr.Close()

	rec := doReq(r, http.MethodPost, `{}`, "key-0007-abcdef")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
}

func TestIdempotencyCorruptEntryIsAMiss(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	var calls int32
	r := setupRouter(rdb, http.StatusCreated, &calls)

	key := buildIdempotencyKey(http.MethodPost, "/applications", "anonymous", "key-0008-abcdef")
	if err := mr.Set(key, `{"in_progress":tr`); err != nil {
		t.Fatal(err)
	}
	rec := doReq(r, http.MethodPost, `{}`, "key-0008-abcdef")
	if rec.Code != http.StatusCreated {
		t.Fatalf("corrupt entry: want 201, got %d", rec.Code)
	}
	replay := doReq(r, http.MethodPost, `{}`, "key-0008-abcdef")
	if replay.Header().Get(ReplayedHeader) != "true" {
		t.Error("response after a corrupt entry was not stored")
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}

func TestIdempotencyMultipartIsNotBuffered(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var calls int32
	r := setupRouter(rdb, http.StatusCreated, &calls)

	payload := strings.Repeat("%PDF", 512<<10)
	upload := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "licence.pdf")
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, payload)
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/applications", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set(IdempotencyHeader, "key-0009-abcdef")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	first := upload()
	if first.Code != http.StatusCreated {
		t.Fatalf("upload above the hashing limit: want 201, got %d", first.Code)
	}
	if !strings.Contains(first.Body.String(), "licence.pdf") {
		t.Error("handler did not receive the multipart body")
	}
	if second := upload(); second.Header().Get(ReplayedHeader) != "true" {
		t.Error("retried upload was not replayed")
	}
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	_, rdb := newMiniredisClient(t)
	var calls int32
	r := setupRouter(rdb, http.StatusCreated, &calls)

	rec := doReq(r, http.MethodPost, `{"notes":"`+strings.Repeat("x", maxHashedBody)+`"}`, "key-0010-abcdef")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("want 413, got %d", rec.Code)
	}
	if calls != 0 {
		t.Errorf("handler ran %d times, want 0", calls)
	}
}
