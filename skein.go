package skein

import (
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/skeinflow/skein/internal/persistence"
	"github.com/skeinflow/skein/pkg/api"
)

// Re-export the core types so users don't need to dig into pkg/api.

type (
	State           = api.State
	Inputs          = api.Inputs
	Result          = api.Result
	Action          = api.Action
	StreamingAction = api.StreamingAction
	Emit            = api.Emit
	ActionFunc      = api.ActionFunc
	StreamFunc      = api.StreamFunc
	ActionOption    = api.ActionOption

	Condition  = api.Condition
	Transition = api.Transition
	Graph      = api.Graph

	Application = api.Application
	StepResult  = api.StepResult
	RunResult   = api.RunResult
	RunOption   = api.RunOption
	HaltReason  = api.HaltReason
	Stream      = api.Stream

	Status     = api.Status
	Checkpoint = api.Checkpoint
	Persister  = api.Persister

	Tracker    = api.Tracker
	AppInfo    = api.AppInfo
	AppContext = api.AppContext
	Hooks      = api.Hooks
	Metrics    = api.Metrics

	SerdeRegistry = api.SerdeRegistry
	FieldSerde    = api.FieldSerde
	SerdeFuncs    = api.SerdeFuncs

	KeyNotFoundError     = api.KeyNotFoundError
	UndeclaredWriteError = api.UndeclaredWriteError
	NoTransitionError    = api.NoTransitionError
	MissingInputsError   = api.MissingInputsError
	ActionError          = api.ActionError
	TaskError            = api.TaskError
)

// Re-export constructors and helpers.

var (
	NewState           = api.NewState
	FromFunc           = api.FromFunc
	StreamingFromFunc  = api.StreamingFromFunc
	WithRequiredInputs = api.WithRequiredInputs
	Bind               = api.Bind

	Default = api.Default
	When    = api.When
	Expr    = api.Expr
	And     = api.And
	Or      = api.Or
	Not     = api.Not

	NewTransition      = api.NewTransition
	NewMultiTransition = api.NewMultiTransition
	NewGraph           = api.NewGraph

	WithHaltBefore = api.WithHaltBefore
	WithHaltAfter  = api.WithHaltAfter
	WithInputs     = api.WithInputs

	NewSerdeRegistry    = api.NewSerdeRegistry
	NewLoggingTracker   = api.NewLoggingTracker
	NewCompositeTracker = api.NewCompositeTracker
	AppContextFrom      = api.AppContextFrom
)

// Re-export sentinel errors.

var (
	ErrNotFound   = api.ErrNotFound
	ErrHalted     = api.ErrHalted
	ErrNoProgress = api.ErrNoProgress
)

// Re-export halt reasons and checkpoint statuses for convenience.

const (
	HaltTerminal      = api.HaltTerminal
	HaltBefore        = api.HaltBefore
	HaltAfter         = api.HaltAfter
	HaltMissingInputs = api.HaltMissingInputs
	HaltNoTransition  = api.HaltNoTransition

	StatusRunning = api.StatusRunning
	StatusHalted  = api.StatusHalted
	StatusFailed  = api.StatusFailed
)

// Persister constructors
// These wrap the internal/persistence package so external callers never
// need to import internal packages.

type (
	MemoryPersister = persistence.MemoryPersister
	SQLitePersister = persistence.SQLitePersister
	RedisPersister  = persistence.RedisPersister

	SQLiteOption = persistence.SQLiteOption
	RedisOption  = persistence.RedisOption
)

var (
	WithSQLiteSerde = persistence.WithSQLiteSerde
	WithRedisPrefix = persistence.WithRedisPrefix
	WithRedisTTL    = persistence.WithRedisTTL
	WithRedisSerde  = persistence.WithRedisSerde
)

// NewMemoryPersister returns a goroutine-safe, non-durable persister.
// Best for tests and local development.
func NewMemoryPersister() *MemoryPersister {
	return persistence.NewMemory()
}

// NewSQLitePersister returns a persister that stores checkpoints in a
// SQLite database, initializing the schema if needed. The caller imports
// the driver, for example:
//
//	import _ "modernc.org/sqlite"
func NewSQLitePersister(db *sql.DB, opts ...SQLiteOption) (*SQLitePersister, error) {
	return persistence.NewSQLite(db, opts...)
}

// NewRedisPersister returns a persister that stores checkpoints in Redis.
func NewRedisPersister(client *redis.Client, opts ...RedisOption) *RedisPersister {
	return persistence.NewRedis(client, opts...)
}
