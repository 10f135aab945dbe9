package api

import "errors"

// Error kinds the pipeline dispatches on. Token and rankings failures abort
// a whole run; ErrNotFound during per-entry resolution is entry-local.
var (
	ErrMissingCredentials = errors.New("warcraftlogs credentials not configured")
	ErrAuth               = errors.New("token exchange failed")
	ErrFetch              = errors.New("rankings fetch failed")
	ErrNotFound           = errors.New("not found")
)
