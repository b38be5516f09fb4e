package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeTokenRevoked           = "token_revoked"
	ErrCodeTokenUserMismatch      = "token_user_mismatch"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Resource errors
	ErrCodeNotFound     = "not_found"
	ErrCodeUserNotFound = "user_not_found"

	// Battle errors
	ErrCodeUnknownTier       = "unknown_tier"
	ErrCodeJoinFailed        = "join_failed"
	ErrCodeNoQuestions       = "no_questions"
	ErrCodeOpponentLeft      = "opponent_left"
	ErrCodeTokenIssueFailed  = "token_issue_failed"
	ErrCodeTokenRevokeFailed = "token_revoke_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeRateLimited        = "rate_limited"

	// Server errors
	ErrCodeInternalError = "internal_error"
	ErrCodeUpstreamError = "upstream_error"

	// History / leaderboard errors
	ErrCodeHistoryFetchFailed     = "history_fetch_failed"
	ErrCodeStatsFetchFailed       = "stats_fetch_failed"
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
	ErrCodeUnknownWindow          = "unknown_leaderboard_window"
)
