package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hyperjump/healthrag/internal/models"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)
	c, err := NewRedisCache(context.Background(), "redis://"+mr.Addr()+"/0", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_roundTrip(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()
	key := Key("build-1", "what are the symptoms of diabetes?")

	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	want := &models.QueryResult{Question: "What are the symptoms of diabetes?", Response: "Thirst.", Sources: []string{"WHO"}}
	if err := c.Set(ctx, key, want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Response != want.Response || len(got.Sources) != 1 || got.Sources[0] != "WHO" {
		t.Errorf("got %+v", got)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Error("entry should expire")
	}
}

func TestKey_namespaced(t *testing.T) {
	a := Key("build-1", "q")
	if a != Key("build-1", "q") {
		t.Error("Key must be deterministic")
	}
	if a == Key("build-2", "q") {
		t.Error("different namespaces must not collide")
	}
}

func TestRedisCache_unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisCache(context.Background(), "redis://"+addr, time.Minute); err == nil {
		t.Error("expected error for unreachable server")
	}
	if _, err := NewRedisCache(context.Background(), "not a url", time.Minute); err == nil {
		t.Error("expected error for bad url")
	}
}

func TestRedisCache_corruptEntry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()
	c := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	defer c.Close()
	_ = mr.Set(Key("ns", "q"), "{not json")
	if _, _, err := c.Get(context.Background(), Key("ns", "q")); err == nil {
		t.Error("expected decode error")
	}
}
