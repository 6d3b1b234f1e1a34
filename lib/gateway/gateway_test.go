package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.Handler, token string) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), Options{
		BaseUrl: server.URL,
		Tokens:  staticTokens(token),
	})
	if err != nil {
		t.Fatal(err)
	}
	return client, server
}

func TestEnsureAuthenticated(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler(), "")
	require.ErrorIs(t, client.EnsureAuthenticated(), ErrAuthRequired)

	client, _ = newTestClient(t, http.NotFoundHandler(), "tok")
	require.NoError(t, client.EnsureAuthenticated())
}

func TestBearerAndDefaultHeaders(t *testing.T) {
	var gotAuth, gotContentType, gotClientId string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotClientId = r.Header.Get("X-Client-Id")
		w.Write([]byte(`{"success":true}`))
	})
	client, _ := newTestClient(t, handler, "secret-token")

	var out struct {
		Success bool `json:"success"`
	}
	err := client.Post(context.Background(), "/scrape-reviews", map[string]any{}, &out)
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Equal(t, "Bearer secret-token", gotAuth)
	require.Equal(t, "application/json", gotContentType)
	require.NotEmpty(t, gotClientId)
}

func TestHeaderOverride(t *testing.T) {
	var gotContentType string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	})
	client, _ := newTestClient(t, handler, "tok")

	err := client.Request(context.Background(), "/save-products", RequestOptions{
		Method:  "POST",
		Body:    `{"raw":"payload"}`,
		Headers: map[string]string{"content-type": "application/json5"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "application/json5", gotContentType)
}

func TestClassify401(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client, _ := newTestClient(t, handler, "stale-token")

	expired := false
	client.SetOnAuthExpired(func() { expired = true })

	err := client.Get(context.Background(), "/auth/profile", nil)
	require.ErrorIs(t, err, ErrAuthExpired)
	require.True(t, expired)
}

func TestNoAuth401IsNotSessionExpiry(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid email or password"}`))
	})
	client, _ := newTestClient(t, handler, "existing-session-token")

	expired := false
	client.SetOnAuthExpired(func() { expired = true })

	err := client.Request(context.Background(), "/auth/login", RequestOptions{
		Method: "POST",
		Body:   map[string]string{"email": "a@b.com", "password": "nope"},
		NoAuth: true,
	}, nil)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "Invalid email or password", serverErr.Message)
	require.False(t, expired)
}

func TestClassify403(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	client, _ := newTestClient(t, handler, "tok")

	err := client.Get(context.Background(), "/auth/profile", nil)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestServerErrorMessage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"scrape worker crashed"}`))
	})
	client, _ := newTestClient(t, handler, "tok")

	err := client.Get(context.Background(), "/scrape-products", nil)
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, 500, serverErr.StatusCode)
	require.Equal(t, "scrape worker crashed", serverErr.Message)
}

func TestServerErrorFallbackMessage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})
	client, _ := newTestClient(t, handler, "tok")

	err := client.Get(context.Background(), "/health", nil)
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Contains(t, serverErr.Message, "502")
}

func TestNetworkError(t *testing.T) {
	client, server := newTestClient(t, http.NotFoundHandler(), "tok")
	server.Close()

	err := client.Get(context.Background(), "/health", nil)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}
