package constants

import "time"

const (
	TokenTimeout       = 10 * time.Second
	ExternalAPITimeout = 10 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	// MaxRankedRecords caps how many records one stream emits.
	MaxRankedRecords = 10

	// RankingsPageSize is larger than MaxRankedRecords so Anonymous
	// entries can be skipped without coming up short.
	RankingsPageSize = 25

	StreamCapacity    = 10
	HeartbeatInterval = 15 * time.Second
)

const (
	LogBaseURL = "https://www.warcraftlogs.com"
)

const (
	ShutdownTimeout = 5 * time.Second
)
