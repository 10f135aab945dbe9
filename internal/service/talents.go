package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"talent-trends/internal/api"
	"talent-trends/internal/constants"
	"talent-trends/internal/domain"
	"talent-trends/internal/stream"
)

// WCLAPI is the slice of the WarcraftLogs client the pipeline uses.
type WCLAPI interface {
	AccessToken(ctx context.Context) (string, error)
	GetRankings(ctx context.Context, params domain.QueryParameters) ([]domain.RankingEntry, error)
	GetReportActors(ctx context.Context, code string, fightIDs []int) ([]domain.Actor, error)
	GetTalentCode(ctx context.Context, code string, fightID, actorID int) (string, error)
}

type TalentService struct {
	wcl    WCLAPI
	logger zerolog.Logger
}

func NewTalentService(wcl WCLAPI, logger zerolog.Logger) *TalentService {
	return &TalentService{wcl: wcl, logger: logger}
}

// Stream runs one full pipeline: acquire token, fetch rankings, then resolve
// entries one at a time in rank order, pushing each finished record onto out.
// It always closes out before returning; a failed push means the consumer is
// gone and stops the run without further upstream calls.
func (s *TalentService) Stream(ctx context.Context, params domain.QueryParameters, out *stream.Stream) {
	defer out.Close()

	logger := s.logger.With().
		Str("class", params.Class).
		Str("spec", params.Spec).
		Int("encounter", params.Encounter).
		Str("region", params.Region).
		Logger()

	tokenCtx, cancel := context.WithTimeout(ctx, constants.TokenTimeout)
	_, err := s.wcl.AccessToken(tokenCtx)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("token acquisition failed")
		out.Send(ctx, domain.StreamItem{Err: terminalMessage(err)})
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	entries, err := s.wcl.GetRankings(fetchCtx, params)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("rankings fetch failed")
		out.Send(ctx, domain.StreamItem{Err: terminalMessage(err)})
		return
	}

	logger.Info().Int("entries", len(entries)).Msg("rankings fetched")

	rank := 0
	for _, entry := range entries {
		if rank >= constants.MaxRankedRecords {
			break
		}
		if entry.Name == domain.AnonymousName {
			continue
		}

		record := s.buildRecord(ctx, logger, rank+1, entry)
		if !out.Send(ctx, domain.StreamItem{Record: record}) {
			logger.Debug().Int("rank", record.Rank).Msg("consumer gone, stopping stream")
			return
		}
		rank++
	}

	logger.Info().Int("records", rank).Msg("stream completed")
}

func (s *TalentService) buildRecord(ctx context.Context, logger zerolog.Logger, rank int, entry domain.RankingEntry) *domain.TalentRecord {
	record := &domain.TalentRecord{
		Rank:   rank,
		Name:   entry.Name,
		LogURL: domain.LogURL(entry.ReportCode, entry.FightID),
	}

	if entry.ReportCode == "" || entry.FightID == 0 {
		record.TalentString = domain.MissingReportData
		return record
	}

	talents, err := s.resolve(ctx, logger, entry)
	if err != nil {
		logger.Warn().Err(err).
			Str("player", entry.Name).
			Str("report", entry.ReportCode).
			Int("fight", entry.FightID).
			Msg("talent resolution failed")
		record.TalentString = domain.TalentUnavailable
		return record
	}

	record.TalentString = talents
	return record
}

// resolve performs the two dependent lookups for one entry: find the actor
// id behind the display name, then fetch that actor's talent code for the
// fight. Stage two only runs with a stage-one result.
func (s *TalentService) resolve(ctx context.Context, logger zerolog.Logger, entry domain.RankingEntry) (string, error) {
	actorCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	actors, err := s.wcl.GetReportActors(actorCtx, entry.ReportCode, []int{entry.FightID})
	cancel()
	if err != nil {
		return "", fmt.Errorf("actor roster lookup failed: %w", err)
	}

	actor, err := matchActor(actors, entry.Name, logger)
	if err != nil {
		return "", err
	}

	codeCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	code, err := s.wcl.GetTalentCode(codeCtx, entry.ReportCode, entry.FightID, actor.ID)
	cancel()
	if err != nil {
		return "", fmt.Errorf("talent code lookup failed: %w", err)
	}
	return code, nil
}

// matchActor picks the first roster actor whose name equals the display
// name. Duplicate names inside one report are ambiguous upstream; we log
// them rather than guess differently.
func matchActor(actors []domain.Actor, name string, logger zerolog.Logger) (domain.Actor, error) {
	var (
		found   domain.Actor
		matches int
	)
	for _, a := range actors {
		if a.Name != name {
			continue
		}
		if matches == 0 {
			found = a
		}
		matches++
	}

	if matches == 0 {
		return domain.Actor{}, fmt.Errorf("%w: actor %q in roster", api.ErrNotFound, name)
	}
	if matches > 1 {
		logger.Warn().Str("player", name).Int("matches", matches).Msg("duplicate actor names in report, using first")
	}
	return found, nil
}

// terminalMessage maps a fatal pipeline error to the message shown to the
// consumer, without leaking wrapped transport detail.
func terminalMessage(err error) string {
	switch {
	case errors.Is(err, api.ErrMissingCredentials):
		return "Server is missing WarcraftLogs API credentials"
	case errors.Is(err, api.ErrAuth):
		return "Failed to authenticate with WarcraftLogs"
	case errors.Is(err, api.ErrFetch):
		return "Failed to fetch rankings from WarcraftLogs"
	default:
		return "Failed to fetch talent data"
	}
}
