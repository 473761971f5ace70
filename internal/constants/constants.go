package constants

// Session and context keys
const (
	SessionCookieName    = "timetracker_session"
	ContextKeyUserID     = "user_id"
	ContextKeyUser       = "current_user"
	ContextKeyProject    = "project"
	ContextKeyTimeEntry  = "time_entry"
	ContextKeyTask       = "task"
	RedisSessionPoolSize = 10
)

// Validation limits
const (
	MinPasswordLength   = 8
	MaxAIGeneratedTasks = 20
	MaxActivityBatch    = 500
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)
