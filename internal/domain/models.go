package domain

import (
	"fmt"

	"talent-trends/internal/constants"
)

// Sentinel talent strings. A record is always fully populated; when
// resolution fails the talent string carries one of these instead.
const (
	TalentUnavailable = "[Talent data unavailable]"
	MissingReportData = "[Missing report data]"
)

// AnonymousName marks rankings entries whose owner hid their character.
// They are dropped before resolution and never consume a rank slot.
const AnonymousName = "Anonymous"

// QueryParameters identifies one leaderboard lookup. Immutable for the
// duration of a pipeline run. Region is empty when no region filter applies.
type QueryParameters struct {
	Class     string
	Spec      string
	Encounter int
	Region    string
}

// RankingEntry is one row of the upstream leaderboard, in the order the
// upstream returned it.
type RankingEntry struct {
	Name       string
	ReportCode string
	FightID    int
}

// Actor is a player participant within a recorded report.
type Actor struct {
	ID   int
	Name string
}

// TalentRecord is the finished unit delivered to the consumer. Rank is
// 1-based and contiguous over the emitted sequence.
type TalentRecord struct {
	Rank         int    `json:"rank"`
	Name         string `json:"name"`
	TalentString string `json:"talent_string"`
	LogURL       string `json:"log_url"`
}

// StreamItem is what flows over the delivery channel: either a completed
// record or a single terminal error message, never both.
type StreamItem struct {
	Record *TalentRecord
	Err    string
}

// LogURL builds the public report link for a ranking entry.
func LogURL(reportCode string, fightID int) string {
	return fmt.Sprintf("%s/reports/%s#fight=%d", constants.LogBaseURL, reportCode, fightID)
}
