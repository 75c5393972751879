package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/user-console/internal/config"
	"github.com/Sternrassler/user-console/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) (string, func()) {
	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Redis container not available: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return host + ":" + port.Port(), func() { redisC.Terminate(ctx) }
}

func testConfig(apiURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0"},
		API: config.APIConfig{
			BaseURL:    apiURL,
			UserAgent:  "user-console-test/1.0",
			Timeout:    2 * time.Second,
			MaxRetries: 1,
		},
	}
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	body, _ := io.ReadAll(w.Result().Body)
	return w.Code, string(body)
}

func TestNewApp_WithoutRedis(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()

	a, err := newApp(context.Background(), testConfig(api.URL()), zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.Close()

	if a.redis != nil || a.client.GetCache() != nil {
		t.Error("Redis should be disabled without REDIS_URL")
	}

	h := a.server.Router()

	if code, body := get(t, h, "/health"); code != http.StatusOK || !strings.Contains(body, "ok") {
		t.Errorf("GET /health = %d %q", code, body)
	}
	if code, _ := get(t, h, "/ready"); code != http.StatusOK {
		t.Errorf("GET /ready = %d, want 200", code)
	}
	if code, body := get(t, h, "/"); code != http.StatusOK || !strings.Contains(body, "Showing 1–5 of 12") {
		t.Errorf("GET / = %d, body missing listing", code)
	}
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()

	// Reserve a port and release it so nothing listens there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	cfg := testConfig(api.URL())
	cfg.Redis.URL = addr

	if _, err := newApp(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("Expected error for unreachable Redis")
	}
}

func TestNewApp_WithRedis(t *testing.T) {
	addr, cleanup := setupTestRedis(t)
	defer cleanup()

	api := testutil.NewMockUserAPI()
	defer api.Close()

	cfg := testConfig(api.URL())
	cfg.Redis.URL = "redis://" + addr + "/0"
	cfg.API.RateLimit = 50

	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.Close()

	if a.client.GetCache() == nil {
		t.Fatal("cache should be enabled with Redis")
	}

	h := a.server.Router()
	get(t, h, "/")
	get(t, h, "/")

	// Each visit without a cookie is a new session; the second listing
	// fetch is answered from the cache.
	if n := len(api.ListQueries()); n != 1 {
		t.Errorf("API list requests = %d, want 1", n)
	}

	rc := redis.NewClient(&redis.Options{Addr: addr})
	defer rc.Close()
	keys, err := rc.Keys(context.Background(), "users:*").Result()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) == 0 {
		t.Error("expected cached listing keys in Redis")
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	api := testutil.NewMockUserAPI()
	defer api.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig(api.URL()), zerolog.Nop()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
