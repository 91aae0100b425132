package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/placemark-app/placemark-client/pkg/auth"
	"github.com/placemark-app/placemark-client/pkg/cache"
	"github.com/placemark-app/placemark-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis starts an in-memory Redis server for one test.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func newTestClient(t *testing.T, serverURL string, mutate func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(serverURL, "PlacemarkTest/1.0")
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		errorMsg string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("https://api.placemark.app", "TestApp/1.0.0"),
		},
		{
			name:     "missing base url",
			config:   Config{UserAgent: "TestApp/1.0.0"},
			errorMsg: "base url is required",
		},
		{
			name:     "unsupported scheme",
			config:   Config{BaseURL: "ftp://api.placemark.app", UserAgent: "TestApp/1.0.0"},
			errorMsg: `base url scheme must be http or https, got "ftp"`,
		},
		{
			name:     "missing host",
			config:   Config{BaseURL: "https://", UserAgent: "TestApp/1.0.0"},
			errorMsg: "base url must have a host",
		},
		{
			name:     "empty user agent",
			config:   Config{BaseURL: "https://api.placemark.app"},
			errorMsg: "user-agent is required",
		},
		{
			name:     "negative retries",
			config:   Config{BaseURL: "https://api.placemark.app", UserAgent: "TestApp/1.0.0", MaxRetries: -1},
			errorMsg: "max_retries must be >= 0 (got -1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.errorMsg != "" {
				if err == nil {
					t.Fatalf("Expected error %q but got nil", tt.errorMsg)
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.GetCache() != nil {
				t.Error("Expected no cache without Redis")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("https://api.placemark.app", "TestApp/1.0.0")

	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
	}
	if cfg.Redis != nil || cfg.Tokens != nil {
		t.Error("Expected no Redis and no token source by default")
	}
}

func TestDo_SetsHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Tokens = auth.StaticToken("secret-token")
	})

	resp, err := c.Get(context.Background(), "/places", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	if ua := got.Get("User-Agent"); ua != "PlacemarkTest/1.0" {
		t.Errorf("User-Agent = %q", ua)
	}
	if accept := got.Get("Accept"); accept != "application/json" {
		t.Errorf("Accept = %q", accept)
	}
	if authz := got.Get("Authorization"); authz != "Bearer secret-token" {
		t.Errorf("Authorization = %q", authz)
	}
	if _, err := uuid.Parse(got.Get(RequestIDHeader)); err != nil {
		t.Errorf("%s = %q, not a UUID: %v", RequestIDHeader, got.Get(RequestIDHeader), err)
	}
}

func TestDo_AnonymousWithoutToken(t *testing.T) {
	var authz string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Tokens = auth.StaticToken("")
	})

	resp, err := c.Get(context.Background(), "/places", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	resp.Body.Close()

	if authz != "" {
		t.Errorf("Authorization = %q, want empty", authz)
	}
}

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) {
	return "", errors.New("keychain locked")
}

func TestDo_TokenSourceError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Tokens = failingTokens{}
	})

	if _, err := c.Get(context.Background(), "/places", nil); err == nil {
		t.Fatal("Expected error from token source")
	}
	if calls != 0 {
		t.Errorf("Server called %d times, want 0", calls)
	}
}

func TestGetJSON_DecodesBodyAndQuery(t *testing.T) {
	var gotQuery url.Values
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Blue Bottle","id":7}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	query := url.Values{"take": {"10"}, "categoryList": {"cafe", "bar"}}
	var out struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := c.GetJSON(context.Background(), "/folders/3/places", query, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}

	if out.ID != 7 || out.Name != "Blue Bottle" {
		t.Errorf("decoded = %+v", out)
	}
	if gotPath != "/folders/3/places" {
		t.Errorf("path = %q", gotPath)
	}
	if got := gotQuery["categoryList"]; len(got) != 2 || got[0] != "cafe" || got[1] != "bar" {
		t.Errorf("categoryList = %v", got)
	}
}

func TestGetJSON_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	var out map[string]any
	err := c.GetJSON(context.Background(), "/places", nil, &out)
	if err == nil {
		t.Fatal("Expected decode error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("decode error should not be an APIError: %v", err)
	}
}

func TestGetJSON_ErrorStatus(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantClass    ErrorClass
		wantMessage  string
		unauthorized bool
		notFound     bool
	}{
		{"unauthorized", 401, `{"message":"token expired"}`, ErrorClassClient, "token expired", true, false},
		{"not found", 404, ``, ErrorClassClient, "Not Found", false, true},
		{"bad request", 400, `{"error":"bad take"}`, ErrorClassClient, "bad take", false, false},
		{"server error", 500, `boom`, ErrorClassServer, "boom", false, false},
		{"rate limited", 429, ``, ErrorClassRateLimit, "Too Many Requests", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, nil)

			err := c.GetJSON(context.Background(), "/places", nil, nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.wantClass)
			}
			if apiErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMessage)
			}
			if IsUnauthorized(err) != tt.unauthorized {
				t.Errorf("IsUnauthorized = %v, want %v", IsUnauthorized(err), tt.unauthorized)
			}
			if IsNotFound(err) != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", IsNotFound(err), tt.notFound)
			}
			if calls != 1 {
				t.Errorf("requests = %d, want 1 (no automatic retry)", calls)
			}
		})
	}
}

func TestDo_RetriesWhenEnabled(t *testing.T) {
	backoffScale = 0.001
	t.Cleanup(func() { backoffScale = 1.0 })

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.MaxRetries = 2
	})

	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.GetJSON(context.Background(), "/places", nil, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if !out.OK {
		t.Error("Expected decoded body from third attempt")
	}
	if calls != 3 {
		t.Errorf("requests = %d, want 3", calls)
	}
}

func TestDo_RetriesExhausted(t *testing.T) {
	backoffScale = 0.001
	t.Cleanup(func() { backoffScale = 1.0 })

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.MaxRetries = 1
	})

	_, err := c.Get(context.Background(), "/places", nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("error = %v, want wrapped 502 APIError", err)
	}
	if calls != 2 {
		t.Errorf("requests = %d, want 2", calls)
	}
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	c := newTestClient(t, serverURL, nil)

	_, err := c.Get(context.Background(), "/places", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, ErrorClassNetwork)
	}
	if apiErr.RequestID == "" {
		t.Error("Expected request id on network error")
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.MaxRetries = 3
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/places", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestDo_ConditionalRequestServedFromCache(t *testing.T) {
	redisClient, _ := setupTestRedis(t)

	var calls int32
	var ifNoneMatch string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n > 1 {
			ifNoneMatch = r.Header.Get("If-None-Match")
			if ifNoneMatch == `"v1"` {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Write([]byte(`{"items":[1,2]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Redis = redisClient
	})
	ctx := context.Background()

	var first, second struct {
		Items []int `json:"items"`
	}
	if err := c.GetJSON(ctx, "/places", url.Values{"take": {"10"}}, &first); err != nil {
		t.Fatalf("first GetJSON failed: %v", err)
	}
	if err := c.GetJSON(ctx, "/places", url.Values{"take": {"10"}}, &second); err != nil {
		t.Fatalf("second GetJSON failed: %v", err)
	}

	if ifNoneMatch != `"v1"` {
		t.Errorf("If-None-Match = %q, want %q", ifNoneMatch, `"v1"`)
	}
	if len(second.Items) != 2 {
		t.Errorf("cached items = %v, want [1 2]", second.Items)
	}
}

func TestDo_CacheIsolatedPerToken(t *testing.T) {
	redisClient, _ := setupTestRedis(t)

	var conditional int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" {
			atomic.AddInt32(&conditional, 1)
		}
		w.Header().Set("ETag", `"`+r.Header.Get("Authorization")+`"`)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	alice := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Redis = redisClient
		cfg.Tokens = auth.StaticToken("alice")
	})
	bob := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Redis = redisClient
		cfg.Tokens = auth.StaticToken("bob")
	})

	ctx := context.Background()
	if err := alice.GetJSON(ctx, "/folders", nil, nil); err != nil {
		t.Fatalf("alice GetJSON failed: %v", err)
	}
	if err := bob.GetJSON(ctx, "/folders", nil, nil); err != nil {
		t.Fatalf("bob GetJSON failed: %v", err)
	}

	if conditional != 0 {
		t.Errorf("conditional requests = %d, want 0 (entries must not be shared)", conditional)
	}
}

func TestDo_UnauthorizedEvictsSessionPages(t *testing.T) {
	redisClient, mr := setupTestRedis(t)

	var revoked atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if revoked.Load() && r.Header.Get("Authorization") == "Bearer alice" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"session expired"}`))
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	alice := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Redis = redisClient
		cfg.Tokens = auth.StaticToken("alice")
	})
	bob := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Redis = redisClient
		cfg.Tokens = auth.StaticToken("bob")
	})

	ctx := context.Background()
	for _, path := range []string{"/folders", "/folders/12/places"} {
		if err := alice.GetJSON(ctx, path, nil, nil); err != nil {
			t.Fatalf("alice GetJSON(%s) failed: %v", path, err)
		}
	}
	if err := bob.GetJSON(ctx, "/folders", nil, nil); err != nil {
		t.Fatalf("bob GetJSON failed: %v", err)
	}

	revoked.Store(true)
	if err := alice.GetJSON(ctx, "/places", nil, nil); !IsUnauthorized(err) {
		t.Fatalf("error = %v, want unauthorized", err)
	}

	aliceKey := cache.CacheKey{Endpoint: "/folders/12/places", Principal: cache.Fingerprint("alice")}
	if _, err := alice.GetCache().Get(ctx, aliceKey); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("alice page still cached after 401: err = %v", err)
	}
	if mr.Exists(cache.PrincipalIndexKey(cache.Fingerprint("alice"))) {
		t.Error("alice key index still present")
	}

	bobKey := cache.CacheKey{Endpoint: "/folders", Principal: cache.Fingerprint("bob")}
	if _, err := bob.GetCache().Get(ctx, bobKey); err != nil {
		t.Errorf("bob page evicted: %v", err)
	}
}

func TestDo_UnvalidatedResponseNotCached(t *testing.T) {
	redisClient, mr := setupTestRedis(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Redis = redisClient
	})

	if err := c.GetJSON(context.Background(), "/places", nil, nil); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}

	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, cache.KeyPrefix) {
			t.Errorf("unexpected cache entry %q", key)
		}
	}
}

func TestDo_BlockedByRateLimiter(t *testing.T) {
	redisClient, mr := setupTestRedis(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	mr.Set(ratelimit.RedisKeyRemaining, "0")
	mr.Set(ratelimit.RedisKeyResetTimestamp, strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Redis = redisClient
	})

	_, err := c.Get(context.Background(), "/places", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
	if calls != 0 {
		t.Errorf("requests = %d, want 0", calls)
	}
}

func TestDo_RecordsRateLimitHeaders(t *testing.T) {
	redisClient, mr := setupTestRedis(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ratelimit.HeaderRemaining, "42")
		w.Header().Set(ratelimit.HeaderReset, "60")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Redis = redisClient
	})

	if err := c.GetJSON(context.Background(), "/places", nil, nil); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}

	remaining, err := mr.Get(ratelimit.RedisKeyRemaining)
	if err != nil {
		t.Fatalf("remaining not stored: %v", err)
	}
	if remaining != "42" {
		t.Errorf("remaining = %q, want 42", remaining)
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/places", "/places"},
		{"/folders/12/places", "/folders/:id/places"},
		{"/collections/links", "/collections/links"},
		{"/v1/folders/7", "/v1/folders/:id"},
	}

	for _, tt := range tests {
		if got := routeLabel(tt.path); got != tt.want {
			t.Errorf("routeLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
