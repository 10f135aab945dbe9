package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"

	"talent-trends/internal/config"
	"talent-trends/internal/constants"
	"talent-trends/internal/domain"
)

const (
	DefaultTokenURL   = "https://www.warcraftlogs.com/oauth/token"
	DefaultGraphQLURL = "https://www.warcraftlogs.com/api/v2/client"
)

// WCLClient talks to the WarcraftLogs v2 API: an OAuth client-credentials
// token endpoint plus a GraphQL endpoint for rankings and report data.
type WCLClient struct {
	clientID     string
	clientSecret string
	tokenURL     string
	graphqlURL   string
	client       *fasthttp.Client
	logger       zerolog.Logger

	// Process-wide token cell: many concurrent streams read, the first
	// fetch writes. singleflight collapses racing first fetches into one
	// upstream call.
	tokenMu sync.RWMutex
	token   string
	tokenSF singleflight.Group
}

func NewWCLClient(cfg *config.Config, logger zerolog.Logger) *WCLClient {
	return &WCLClient{
		clientID:     cfg.WCLClientID,
		clientSecret: cfg.WCLClientSecret,
		tokenURL:     DefaultTokenURL,
		graphqlURL:   DefaultGraphQLURL,
		logger:       logger,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// AccessToken returns the cached bearer token, fetching it on first use.
//
// TODO: honor expires_in from the token response. A long-lived process
// eventually presents an expired token and every stream fails on auth until
// restart.
func (c *WCLClient) AccessToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	cached := c.token
	c.tokenMu.RUnlock()
	if cached != "" {
		return cached, nil
	}

	v, err, _ := c.tokenSF.Do("token", func() (any, error) {
		c.tokenMu.RLock()
		cached := c.token
		c.tokenMu.RUnlock()
		if cached != "" {
			return cached, nil
		}

		token, err := c.fetchToken(ctx)
		if err != nil {
			return "", err
		}

		c.tokenMu.Lock()
		c.token = token
		c.tokenMu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *WCLClient) fetchToken(ctx context.Context) (string, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return "", ErrMissingCredentials
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))

	ctx, cancel := context.WithTimeout(ctx, constants.TokenTimeout)
	defer cancel()

	status, body, err := c.doPost(ctx, c.tokenURL,
		"application/x-www-form-urlencoded",
		[]byte("grant_type=client_credentials"),
		"Basic "+basic)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if status != fasthttp.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrAuth, status, body)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: malformed token response: %w", ErrAuth, err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access_token", ErrAuth)
	}

	c.logger.Info().Int64("expires_in", parsed.ExpiresIn).Msg("warcraftlogs token acquired")
	return parsed.AccessToken, nil
}

const rankingsQuery = `query ($encounterID: Int!, $className: String!, $specName: String!, $pageSize: Int!) {
    worldData {
        encounter(id: $encounterID) {
            characterRankings(className: $className, specName: $specName, metric: dps, difficulty: 5, page: 1, pageSize: $pageSize)
        }
    }
}`

const rankingsQueryRegion = `query ($encounterID: Int!, $className: String!, $specName: String!, $pageSize: Int!, $region: String!) {
    worldData {
        encounter(id: $encounterID) {
            characterRankings(className: $className, specName: $specName, metric: dps, difficulty: 5, page: 1, pageSize: $pageSize, serverRegion: $region)
        }
    }
}`

// GetRankings fetches the first page of the dps leaderboard for the given
// class/spec/encounter, optionally filtered to one region. Entries come back
// in upstream rank order.
func (c *WCLClient) GetRankings(ctx context.Context, params domain.QueryParameters) ([]domain.RankingEntry, error) {
	query := rankingsQuery
	variables := map[string]any{
		"encounterID": params.Encounter,
		"className":   normalizeClassName(params.Class),
		"specName":    params.Spec,
		"pageSize":    constants.RankingsPageSize,
	}
	if params.Region != "" {
		query = rankingsQueryRegion
		variables["region"] = params.Region
	}

	var payload struct {
		WorldData struct {
			Encounter struct {
				CharacterRankings *struct {
					Rankings []struct {
						Name   string `json:"name"`
						Report struct {
							Code    string `json:"code"`
							FightID int    `json:"fightID"`
						} `json:"report"`
					} `json:"rankings"`
				} `json:"characterRankings"`
			} `json:"encounter"`
		} `json:"worldData"`
	}

	if err := c.doGraphQL(ctx, query, variables, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	rankings := payload.WorldData.Encounter.CharacterRankings
	if rankings == nil || rankings.Rankings == nil {
		return nil, fmt.Errorf("%w: response missing rankings", ErrFetch)
	}

	entries := make([]domain.RankingEntry, 0, len(rankings.Rankings))
	for _, r := range rankings.Rankings {
		entries = append(entries, domain.RankingEntry{
			Name:       r.Name,
			ReportCode: r.Report.Code,
			FightID:    r.Report.FightID,
		})
	}
	return entries, nil
}

const actorsQuery = `query ($code: String!, $fightIDs: [Int]!) {
    reportData {
        report(code: $code) {
            fights(fightIDs: $fightIDs) {
                id
            }
            masterData {
                actors(type: "Player") {
                    id
                    name
                }
            }
        }
    }
}`

// GetReportActors returns the player actors of a report, in roster order.
func (c *WCLClient) GetReportActors(ctx context.Context, code string, fightIDs []int) ([]domain.Actor, error) {
	var payload struct {
		ReportData struct {
			Report *struct {
				MasterData struct {
					Actors []struct {
						ID   int    `json:"id"`
						Name string `json:"name"`
					} `json:"actors"`
				} `json:"masterData"`
			} `json:"report"`
		} `json:"reportData"`
	}

	variables := map[string]any{"code": code, "fightIDs": fightIDs}
	if err := c.doGraphQL(ctx, actorsQuery, variables, &payload); err != nil {
		return nil, err
	}
	if payload.ReportData.Report == nil {
		return nil, fmt.Errorf("%w: report %s", ErrNotFound, code)
	}

	actors := make([]domain.Actor, 0, len(payload.ReportData.Report.MasterData.Actors))
	for _, a := range payload.ReportData.Report.MasterData.Actors {
		actors = append(actors, domain.Actor{ID: a.ID, Name: a.Name})
	}
	return actors, nil
}

const talentCodeQuery = `query ($code: String!, $fightIDs: [Int]!, $actorID: Int!) {
    reportData {
        report(code: $code) {
            fights(fightIDs: $fightIDs) {
                talentImportCode(actorID: $actorID)
            }
        }
    }
}`

// GetTalentCode returns the talent import string for one actor in one fight.
func (c *WCLClient) GetTalentCode(ctx context.Context, code string, fightID, actorID int) (string, error) {
	var payload struct {
		ReportData struct {
			Report *struct {
				Fights []struct {
					TalentImportCode string `json:"talentImportCode"`
				} `json:"fights"`
			} `json:"report"`
		} `json:"reportData"`
	}

	variables := map[string]any{"code": code, "fightIDs": []int{fightID}, "actorID": actorID}
	if err := c.doGraphQL(ctx, talentCodeQuery, variables, &payload); err != nil {
		return "", err
	}
	if payload.ReportData.Report == nil {
		return "", fmt.Errorf("%w: report %s", ErrNotFound, code)
	}

	for _, f := range payload.ReportData.Report.Fights {
		if f.TalentImportCode != "" {
			return f.TalentImportCode, nil
		}
	}
	return "", fmt.Errorf("%w: talent code for actor %d in report %s fight %d", ErrNotFound, actorID, code, fightID)
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (c *WCLClient) doGraphQL(ctx context.Context, query string, variables map[string]any, out any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	status, respBody, err := c.doPost(ctx, c.graphqlURL, "application/json", body, "Bearer "+token)
	if err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	if status != fasthttp.StatusOK {
		return fmt.Errorf("graphql request failed: status %d: %s", status, respBody)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("graphql response missing data")
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}
	return nil
}

func (c *WCLClient) doPost(ctx context.Context, url, contentType string, body []byte, authorization string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	req.Header.Set("Authorization", authorization)
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if ok {
		err := c.client.DoDeadline(req, resp, deadline)
		if err != nil {
			return 0, nil, err
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return 0, nil, err
		}
	}

	// resp.Body() is reused after release.
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return resp.StatusCode(), out, nil
}

// normalizeClassName strips the separators used in class keys so the
// upstream query sees the concatenated form ("Death_Knight" -> "DeathKnight").
func normalizeClassName(class string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(class)
}
