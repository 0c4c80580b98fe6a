package ports

import "github.com/bft-labs/mirage/pkg/log"

// Logger is the structured logging interface used by inner layers.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

// Re-export field constructors so inner layers need a single import.
var (
	String   = log.String
	Int      = log.Int
	Int64    = log.Int64
	Bool     = log.Bool
	Duration = log.Duration
	Err      = log.Err
	Any      = log.Any
)
