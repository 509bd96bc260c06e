package cache

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestOpenRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	rdb, err := OpenRedis(mr.Addr(), 0)
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	defer rdb.Close()

	if rdb, err := OpenRedis("", 0); rdb != nil || err != nil {
		t.Errorf("empty addr should disable redis, got %v, %v", rdb, err)
	}

	mr.Close()
	if _, err := OpenRedis(mr.Addr(), 0); err == nil {
		t.Error("expected an error for an unreachable server")
	}
}
