package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talent-trends/internal/config"
	"talent-trends/internal/domain"
)

func newTestClient(t *testing.T, tokenURL, graphqlURL string) *WCLClient {
	t.Helper()
	c := NewWCLClient(&config.Config{
		WCLClientID:     "client-id",
		WCLClientSecret: "client-secret",
	}, zerolog.Nop())
	if tokenURL != "" {
		c.tokenURL = tokenURL
	}
	if graphqlURL != "" {
		c.graphqlURL = graphqlURL
	}
	return c
}

func tokenServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "grant_type=client_credentials")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   86400,
		})
	}))
}

func TestAccessTokenFetchedOnceAndCached(t *testing.T) {
	var calls atomic.Int64
	srv := tokenServer(t, &calls)
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")

	for i := 0; i < 3; i++ {
		token, err := c.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "test-token", token)
	}
	assert.Equal(t, int64(1), calls.Load())
}

func TestAccessTokenMissingCredentials(t *testing.T) {
	c := NewWCLClient(&config.Config{}, zerolog.Nop())

	_, err := c.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAccessTokenUpstreamRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"invalid_client"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")

	_, err := c.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrAuth)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid_client")
}

func TestAccessTokenMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"not_a_token":true}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")

	_, err := c.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrAuth)
}

// graphqlServer captures each request body and replies with the canned
// response for the query it recognizes.
func graphqlServer(t *testing.T, responses map[string]string, requests *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if requests != nil {
			*requests = append(*requests, string(body))
		}

		for marker, resp := range responses {
			if strings.Contains(string(body), marker) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, resp)
				return
			}
		}
		t.Fatalf("unexpected graphql request: %s", body)
	}))
}

func TestGetRankings(t *testing.T) {
	var calls atomic.Int64
	tokenSrv := tokenServer(t, &calls)
	defer tokenSrv.Close()

	var requests []string
	gqlSrv := graphqlServer(t, map[string]string{
		"characterRankings": `{"data":{"worldData":{"encounter":{"characterRankings":{"rankings":[
			{"name":"Thrall","report":{"code":"AbCd1234","fightID":7}},
			{"name":"Jaina","report":{"code":"XyZw5678","fightID":3}}
		]}}}}}`,
	}, &requests)
	defer gqlSrv.Close()

	c := newTestClient(t, tokenSrv.URL, gqlSrv.URL)

	entries, err := c.GetRankings(context.Background(), domain.QueryParameters{
		Class:     "Death_Knight",
		Spec:      "Unholy",
		Encounter: 3135,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.RankingEntry{Name: "Thrall", ReportCode: "AbCd1234", FightID: 7}, entries[0])
	assert.Equal(t, domain.RankingEntry{Name: "Jaina", ReportCode: "XyZw5678", FightID: 3}, entries[1])

	// Class name reaches upstream in concatenated form, no region filter.
	require.Len(t, requests, 1)
	assert.Contains(t, requests[0], `"DeathKnight"`)
	assert.NotContains(t, requests[0], "serverRegion")
}

func TestGetRankingsWithRegion(t *testing.T) {
	var calls atomic.Int64
	tokenSrv := tokenServer(t, &calls)
	defer tokenSrv.Close()

	var requests []string
	gqlSrv := graphqlServer(t, map[string]string{
		"characterRankings": `{"data":{"worldData":{"encounter":{"characterRankings":{"rankings":[]}}}}}`,
	}, &requests)
	defer gqlSrv.Close()

	c := newTestClient(t, tokenSrv.URL, gqlSrv.URL)

	entries, err := c.GetRankings(context.Background(), domain.QueryParameters{
		Class:     "Mage",
		Spec:      "Fire",
		Encounter: 3129,
		Region:    "EU",
	})
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.Len(t, requests, 1)
	assert.Contains(t, requests[0], "serverRegion")
	assert.Contains(t, requests[0], `"EU"`)
}

func TestGetRankingsErrorPayload(t *testing.T) {
	var calls atomic.Int64
	tokenSrv := tokenServer(t, &calls)
	defer tokenSrv.Close()

	gqlSrv := graphqlServer(t, map[string]string{
		"characterRankings": `{"errors":[{"message":"encounter not found"}]}`,
	}, nil)
	defer gqlSrv.Close()

	c := newTestClient(t, tokenSrv.URL, gqlSrv.URL)

	_, err := c.GetRankings(context.Background(), domain.QueryParameters{
		Class: "Mage", Spec: "Fire", Encounter: 1,
	})
	require.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "encounter not found")
}

func TestGetRankingsMissingArray(t *testing.T) {
	var calls atomic.Int64
	tokenSrv := tokenServer(t, &calls)
	defer tokenSrv.Close()

	gqlSrv := graphqlServer(t, map[string]string{
		"characterRankings": `{"data":{"worldData":{"encounter":{"characterRankings":null}}}}`,
	}, nil)
	defer gqlSrv.Close()

	c := newTestClient(t, tokenSrv.URL, gqlSrv.URL)

	_, err := c.GetRankings(context.Background(), domain.QueryParameters{
		Class: "Mage", Spec: "Fire", Encounter: 3129,
	})
	require.ErrorIs(t, err, ErrFetch)
}

func TestGetReportActors(t *testing.T) {
	var calls atomic.Int64
	tokenSrv := tokenServer(t, &calls)
	defer tokenSrv.Close()

	gqlSrv := graphqlServer(t, map[string]string{
		"masterData": `{"data":{"reportData":{"report":{"masterData":{"actors":[
			{"id":12,"name":"Thrall"},
			{"id":19,"name":"Jaina"}
		]}}}}}`,
	}, nil)
	defer gqlSrv.Close()

	c := newTestClient(t, tokenSrv.URL, gqlSrv.URL)

	actors, err := c.GetReportActors(context.Background(), "AbCd1234", []int{7})
	require.NoError(t, err)
	assert.Equal(t, []domain.Actor{{ID: 12, Name: "Thrall"}, {ID: 19, Name: "Jaina"}}, actors)
}

func TestGetReportActorsUnknownReport(t *testing.T) {
	var calls atomic.Int64
	tokenSrv := tokenServer(t, &calls)
	defer tokenSrv.Close()

	gqlSrv := graphqlServer(t, map[string]string{
		"masterData": `{"data":{"reportData":{"report":null}}}`,
	}, nil)
	defer gqlSrv.Close()

	c := newTestClient(t, tokenSrv.URL, gqlSrv.URL)

	_, err := c.GetReportActors(context.Background(), "missing", []int{1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetTalentCode(t *testing.T) {
	var calls atomic.Int64
	tokenSrv := tokenServer(t, &calls)
	defer tokenSrv.Close()

	gqlSrv := graphqlServer(t, map[string]string{
		"talentImportCode": `{"data":{"reportData":{"report":{"fights":[
			{"talentImportCode":"CwQAhGSnd..."}
		]}}}}`,
	}, nil)
	defer gqlSrv.Close()

	c := newTestClient(t, tokenSrv.URL, gqlSrv.URL)

	code, err := c.GetTalentCode(context.Background(), "AbCd1234", 7, 12)
	require.NoError(t, err)
	assert.Equal(t, "CwQAhGSnd...", code)
}

func TestGetTalentCodeAbsent(t *testing.T) {
	var calls atomic.Int64
	tokenSrv := tokenServer(t, &calls)
	defer tokenSrv.Close()

	gqlSrv := graphqlServer(t, map[string]string{
		"talentImportCode": `{"data":{"reportData":{"report":{"fights":[{"talentImportCode":""}]}}}}`,
	}, nil)
	defer gqlSrv.Close()

	c := newTestClient(t, tokenSrv.URL, gqlSrv.URL)

	_, err := c.GetTalentCode(context.Background(), "AbCd1234", 7, 12)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNormalizeClassName(t *testing.T) {
	assert.Equal(t, "DeathKnight", normalizeClassName("Death_Knight"))
	assert.Equal(t, "DemonHunter", normalizeClassName("Demon Hunter"))
	assert.Equal(t, "Mage", normalizeClassName("Mage"))
}
