package legifrance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/clausea/clausea/internal/model"
	"github.com/clausea/clausea/internal/pkg/logutil"
)

const (
	defaultTokenURL = "https://oauth.piste.gouv.fr/api/oauth/token"
	defaultBaseURL  = "https://api.piste.gouv.fr/dila/legifrance/lf-engine-app"

	// A cached token is reused only while it still has at least this much
	// lifetime left.
	tokenSafetyMargin = 60 * time.Second
	// Floor applied to the stored lifetime so a token is never cached as
	// already expired.
	tokenMinLifetime = 30 * time.Second
)

// APIError is the typed failure of the external search service. It carries
// its own HTTP status and a user-facing message, distinct from provider
// errors.
type APIError struct {
	Status      int
	UserMessage string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("legifrance: %s (status %d)", e.UserMessage, e.Status)
}

// Filter is one facet restriction of a search, matching the PISTE criteria
// payload.
type Filter struct {
	Facet  string   `json:"facette"`
	Values []string `json:"valeurs,omitempty"`
	Date   string   `json:"singleDate,omitempty"`
}

type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	HTTPClient   *http.Client
}

// Client queries the Légifrance search API. The bearer token is cached
// process-wide; refreshes are single-flighted so concurrent callers never
// issue duplicate token requests.
type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	baseURL      string
	httpClient   *http.Client
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	sf        singleflight.Group
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("legifrance client_id and client_secret are required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     tokenURL,
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   httpClient,
		now:          time.Now,
	}, nil
}

// GetToken returns a valid bearer token, fetching one through the
// client-credentials exchange when the cache is empty or about to expire.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	if tok, ok := c.cachedToken(); ok {
		return tok, nil
	}
	v, err, _ := c.sf.Do("token", func() (interface{}, error) {
		// Re-check under the flight: a concurrent caller may have already
		// refreshed.
		if tok, ok := c.cachedToken(); ok {
			return tok, nil
		}
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return "", false
	}
	if !c.now().Before(c.expiresAt.Add(-tokenSafetyMargin)) {
		return "", false
	}
	return c.token, true
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", "openid")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		logutil.GetLogger(ctx).Warn("legifrance token exchange failed",
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(body))),
		)
		return "", &APIError{
			Status:      resp.StatusCode,
			UserMessage: "Authentification auprès du service Légifrance impossible.",
		}
	}
	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", &APIError{Status: http.StatusBadGateway, UserMessage: "Réponse de jeton Légifrance invalide."}
	}

	lifetime := time.Duration(tok.ExpiresIn-60) * time.Second
	if lifetime < tokenMinLifetime {
		lifetime = tokenMinLifetime
	}
	c.mu.Lock()
	c.token = tok.AccessToken
	c.expiresAt = c.now().Add(lifetime)
	c.mu.Unlock()
	return tok.AccessToken, nil
}

type searchRequest struct {
	Fond      string          `json:"fond"`
	Recherche searchRecherche `json:"recherche"`
}

type searchRecherche struct {
	Champs         []searchChamp `json:"champs"`
	Filtres        []Filter      `json:"filtres,omitempty"`
	PageNumber     int           `json:"pageNumber"`
	PageSize       int           `json:"pageSize"`
	Sort           string        `json:"sort"`
	TypePagination string        `json:"typePagination"`
}

type searchChamp struct {
	TypeChamp string          `json:"typeChamp"`
	Criteres  []searchCritere `json:"criteres"`
	Operateur string          `json:"operateur"`
}

type searchCritere struct {
	TypeRecherche string `json:"typeRecherche"`
	Valeur        string `json:"valeur"`
	Operateur     string `json:"operateur"`
}

type searchResponse struct {
	TotalResultNumber int `json:"totalResultNumber"`
	Results           []struct {
		Titles []struct {
			CID   string `json:"cid"`
			Title string `json:"title"`
		} `json:"titles"`
		Sections []struct {
			Extracts []struct {
				ID     string   `json:"id"`
				Values []string `json:"values"`
			} `json:"extracts"`
		} `json:"sections"`
	} `json:"results"`
}

// Search issues one POST against the given fond and normalizes the hits.
// Non-2xx responses become an *APIError.
func (c *Client) Search(ctx context.Context, query, fond string, page, pageSize int, sort string, filters []Filter) ([]model.ExternalResult, error) {
	token, err := c.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if sort == "" {
		sort = "PERTINENCE"
	}
	payload := searchRequest{
		Fond: fond,
		Recherche: searchRecherche{
			Champs: []searchChamp{{
				TypeChamp: "ALL",
				Criteres: []searchCritere{{
					TypeRecherche: "INDETERMINEE",
					Valeur:        query,
					Operateur:     "ET",
				}},
				Operateur: "ET",
			}},
			Filtres:        filters,
			PageNumber:     page,
			PageSize:       pageSize,
			Sort:           sort,
			TypePagination: "DEFAUT",
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		logutil.GetLogger(ctx).Warn("legifrance search failed",
			zap.String("fond", fond),
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(body))),
		)
		return nil, &APIError{
			Status:      resp.StatusCode,
			UserMessage: fmt.Sprintf("La recherche Légifrance a échoué pour le fonds %s.", fond),
		}
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	results := make([]model.ExternalResult, 0, len(out.Results))
	for _, r := range out.Results {
		var id, title string
		if len(r.Titles) > 0 {
			id = r.Titles[0].CID
			title = r.Titles[0].Title
		}
		var snippets []string
		for _, section := range r.Sections {
			for _, extract := range section.Extracts {
				snippets = append(snippets, strings.Join(extract.Values, " "))
			}
		}
		if id == "" && len(snippets) == 0 {
			continue
		}
		results = append(results, model.ExternalResult{
			ID:      id,
			Title:   title,
			Snippet: strings.TrimSpace(strings.Join(snippets, " ")),
			URL:     resultURL(fond, id),
			Fond:    fond,
		})
	}
	return results, nil
}

func resultURL(fond, id string) string {
	if id == "" {
		return ""
	}
	switch strings.ToUpper(fond) {
	case "JORF":
		return "https://www.legifrance.gouv.fr/jorf/id/" + id
	case "CODE_DATE", "CODE_ETAT":
		return "https://www.legifrance.gouv.fr/codes/id/" + id
	case "JURI":
		return "https://www.legifrance.gouv.fr/juri/id/" + id
	default:
		return "https://www.legifrance.gouv.fr/loda/id/" + id
	}
}
