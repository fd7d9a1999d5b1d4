package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commerce-search-api/internal/models"
)

func testClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		APIKey:        "pub-key",
		SearchBaseURL: baseURL,
		AgentBaseURL:  baseURL,
		RetryCount:    0,
		RetryDelay:    time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client
}

func TestNewClientRejectsMissingAPIKey(t *testing.T) {
	_, err := NewClient(Config{SearchBaseURL: "https://example.com"})
	assert.Error(t, err)
}

func TestGetAddsKeyAndTimestamp(t *testing.T) {
	var query map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	body, err := client.Get(context.Background(), "/search/shoes", Params{"page": 2}, nil)

	require.NoError(t, err)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "pub-key", query["key"][0])
	assert.Equal(t, "2", query["page"][0])
	assert.NotEmpty(t, query["_dt"][0])
}

func TestGetDoesNotMutateCallerParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	params := Params{"page": 1}
	_, err := client.Get(context.Background(), "/search/x", params, nil)

	require.NoError(t, err)
	assert.Equal(t, Params{"page": 1}, params)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *Config) { cfg.RetryCount = 2 })
	body, err := client.Get(context.Background(), "/search/x", Params{}, nil)

	require.NoError(t, err)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetDoesNotRetryRateLimitOrAuth(t *testing.T) {
	tests := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{http.StatusTooManyRequests, func(t *testing.T, err error) {
			var rateErr *models.RateLimitError
			assert.ErrorAs(t, err, &rateErr)
		}},
		{http.StatusUnauthorized, func(t *testing.T, err error) {
			var authErr *models.AuthenticationError
			assert.ErrorAs(t, err, &authErr)
		}},
		{http.StatusForbidden, func(t *testing.T, err error) {
			var authErr *models.AuthenticationError
			assert.ErrorAs(t, err, &authErr)
		}},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := testClient(t, server.URL, func(cfg *Config) { cfg.RetryCount = 3 })
			_, err := client.Get(context.Background(), "/search/x", Params{}, nil)

			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestGetExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *Config) { cfg.RetryCount = 2 })
	_, err := client.Get(context.Background(), "/search/x", Params{}, nil)

	require.Error(t, err)
	var upstreamErr *models.UpstreamRequestError
	assert.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetAdminRequiresSecretToken(t *testing.T) {
	client := testClient(t, "https://example.com", nil)
	_, err := client.GetAdmin(context.Background(), "/v1/collections", Params{})

	var configErr *models.ConfigurationError
	assert.ErrorAs(t, err, &configErr)
}

func TestGetAdminVerifiesOnceAndUsesBasicAuth(t *testing.T) {
	var verifyCalls int32
	var adminUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/verify":
			atomic.AddInt32(&verifyCalls, 1)
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "secret-token", user)
			assert.Equal(t, "", pass)
			w.Write([]byte(`{}`))
		default:
			adminUser, _, _ = r.BasicAuth()
			w.Write([]byte(`{"collections":[]}`))
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *Config) { cfg.SecretToken = "secret-token" })

	_, err := client.GetAdmin(context.Background(), "/v1/collections", Params{})
	require.NoError(t, err)
	_, err = client.GetAdmin(context.Background(), "/v1/collections", Params{})
	require.NoError(t, err)

	// verification runs once per instance, not once per call
	assert.Equal(t, int32(1), atomic.LoadInt32(&verifyCalls))
	assert.Equal(t, "secret-token", adminUser)
}

func TestVerifyFailureIsNotPermanent(t *testing.T) {
	var verifyCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&verifyCalls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *Config) { cfg.SecretToken = "secret-token" })

	require.Error(t, client.Verify(context.Background()))
	// the failed attempt must not poison later ones
	require.NoError(t, client.Verify(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&verifyCalls))
}

func TestSendJSONUsesBearerAuth(t *testing.T) {
	var authHeader, method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/verify" {
			w.Write([]byte(`{}`))
			return
		}
		authHeader = r.Header.Get("Authorization")
		method = r.Method
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *Config) { cfg.SecretToken = "secret-token" })
	_, err := client.SendJSON(context.Background(), http.MethodDelete, "/v2/items", Params{}, map[string]any{"items": []any{}})

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", authHeader)
	assert.Equal(t, http.MethodDelete, method)
}

func TestAgentFetchSniffsBodyKind(t *testing.T) {
	sseBody := "event: start\ndata: {\"thread_id\":\"t\"}\n\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("shape") == "sse" {
			w.Write([]byte(sseBody))
			return
		}
		w.Write([]byte(`{"message":"hello"}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)

	jsonBody, err := client.AgentFetch(context.Background(), "/v1/intent/q", Params{}, nil)
	require.NoError(t, err)
	assert.Equal(t, BodyJSON, jsonBody.Kind)
	assert.Equal(t, "hello", jsonBody.JSON["message"])

	streamBody, err := client.AgentFetch(context.Background(), "/v1/intent/q", Params{"shape": "sse"}, nil)
	require.NoError(t, err)
	assert.Equal(t, BodySSE, streamBody.Kind)
	assert.Equal(t, sseBody, string(streamBody.SSE))
}

func TestAgentStreamErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	_, err := client.AgentStream(context.Background(), "/v1/intent/q", Params{}, nil)

	var rateErr *models.RateLimitError
	assert.ErrorAs(t, err, &rateErr)
}

func TestAttributionHeadersAndParams(t *testing.T) {
	var header http.Header
	var query map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		query = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, nil)
	attr := &Attribution{
		ForwardedFor:   "10.0.0.1",
		UserAgent:      "test-agent",
		ClientToken:    "tok",
		ClientID:       "cid",
		InstanceID:     "iid",
		SessionID:      "sid",
		OriginReferrer: "https://shop.example",
	}
	_, err := client.Get(context.Background(), "/search/x", Params{}, attr)

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", header.Get("X-Forwarded-For"))
	assert.Equal(t, "test-agent", header.Get("User-Agent"))
	assert.Equal(t, "tok", header.Get("x-cnstrc-token"))
	assert.Equal(t, "cid", query["c"][0])
	assert.Equal(t, "iid", query["i"][0])
	assert.Equal(t, "sid", query["s"][0])
	assert.Equal(t, "https://shop.example", query["origin_referrer"][0])
}
