package legifrance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, expiresIn int64, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-1",
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	}))
}

func newTestClient(t *testing.T, tokenURL, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     tokenURL,
		BaseURL:      baseURL,
	})
	require.NoError(t, err)
	return c
}

func TestGetTokenCachesWhileValid(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, 3600, &calls)
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	for i := 0; i < 5; i++ {
		tok, err := c.GetToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, "tok-1", tok)
	}
	require.Equal(t, int64(1), calls.Load())
}

func TestGetTokenRefetchesWithinSafetyMargin(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, 3600, &calls)
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	_, err := c.GetToken(context.Background())
	require.NoError(t, err)

	// Force the cached expiry to 10 seconds from now: with a 60-second
	// safety margin the token must not be reused.
	c.mu.Lock()
	c.expiresAt = time.Now().Add(10 * time.Second)
	c.mu.Unlock()

	_, err = c.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), calls.Load())
}

func TestGetTokenSingleFlight(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-sf",
			"expires_in":   int64(3600),
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	errCh := make(chan error, 8)
	tokCh := make(chan string, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := c.GetToken(context.Background())
			errCh <- err
			tokCh <- tok
		}()
	}
	// Give the goroutines time to pile onto the in-flight fetch.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errCh)
	close(tokCh)
	for err := range errCh {
		require.NoError(t, err)
	}
	for tok := range tokCh {
		require.Equal(t, "tok-sf", tok)
	}
	require.Equal(t, int64(1), calls.Load())
}

func TestGetTokenShortLivedUsesFloor(t *testing.T) {
	var calls atomic.Int64
	srv := newTokenServer(t, 20, &calls)
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	_, err := c.GetToken(context.Background())
	require.NoError(t, err)
	c.mu.Lock()
	lifetime := time.Until(c.expiresAt)
	c.mu.Unlock()
	require.InDelta(t, float64(30*time.Second), float64(lifetime), float64(2*time.Second))
}

func TestSearchNormalizesResults(t *testing.T) {
	var tokenCalls atomic.Int64
	tokenSrv := newTokenServer(t, 3600, &tokenCalls)
	defer tokenSrv.Close()

	searchSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "LEGI", req.Fond)
		require.Equal(t, "clause de non-concurrence", req.Recherche.Champs[0].Criteres[0].Valeur)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"totalResultNumber": 1,
			"results": []map[string]interface{}{{
				"titles": []map[string]string{{"cid": "LEGITEXT000006069570", "title": "Code du travail"}},
				"sections": []map[string]interface{}{{
					"extracts": []map[string]interface{}{{
						"id":     "x",
						"values": []string{"la clause de non-concurrence", "doit être limitée"},
					}},
				}},
			}},
		})
	}))
	defer searchSrv.Close()

	c := newTestClient(t, tokenSrv.URL, searchSrv.URL)
	results, err := c.Search(context.Background(), "clause de non-concurrence", "LEGI", 1, 10, "", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "LEGITEXT000006069570", results[0].ID)
	require.Equal(t, "Code du travail", results[0].Title)
	require.Equal(t, "la clause de non-concurrence doit être limitée", results[0].Snippet)
	require.Equal(t, "LEGI", results[0].Fond)
	require.Contains(t, results[0].URL, "legifrance.gouv.fr")
}

func TestSearchNon2xxIsTypedError(t *testing.T) {
	var tokenCalls atomic.Int64
	tokenSrv := newTokenServer(t, 3600, &tokenCalls)
	defer tokenSrv.Close()

	searchSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service indisponible", http.StatusServiceUnavailable)
	}))
	defer searchSrv.Close()

	c := newTestClient(t, tokenSrv.URL, searchSrv.URL)
	_, err := c.Search(context.Background(), "q", "JORF", 1, 10, "", nil)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	require.NotEmpty(t, apiErr.UserMessage)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}
