// Package backend resolves which storage backend serves reads and which
// backend(s) receive writes. The decision is made once from startup
// configuration; nothing here ever queries a backend.
package backend

import (
	"fmt"
	"os"
	"strings"
)

// ID identifies one of the two storage backends.
type ID string

const (
	// SQLite is the ORM-accessed relational store (backend A).
	SQLite ID = "sqlite"
	// Supabase is the hosted Postgres service (backend B).
	Supabase ID = "supabase"
)

// Mode is the process-wide backend mode, read once at startup.
type Mode string

const (
	ModeSQLite   Mode = "sqlite"
	ModeSupabase Mode = "supabase"
	// ModeDual writes to both backends during migration while reads stay
	// on SQLite, the designated primary.
	ModeDual Mode = "both"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSQLite, "":
		return ModeSQLite, nil
	case ModeSupabase:
		return ModeSupabase, nil
	case ModeDual:
		return ModeDual, nil
	default:
		return "", fmt.Errorf("backend: unknown mode %q (want sqlite, supabase, or both)", s)
	}
}

// serverlessEnvVars are set by the platforms we deploy to. Any of them
// present means there is no persistent local filesystem, which rules the
// SQLite backend out regardless of the configured mode.
var serverlessEnvVars = []string{
	"VERCEL",
	"AWS_LAMBDA_FUNCTION_NAME",
	"FUNCTION_TARGET",
	"K_SERVICE",
}

// DetectServerless reports whether the process runs in a serverless
// environment.
func DetectServerless() bool {
	for _, name := range serverlessEnvVars {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// Selector answers, in O(1) and without side effects, which backend is
// authoritative for reads and which backends receive writes. It is
// immutable after construction and safe for concurrent use.
type Selector struct {
	mode Mode
}

// NewSelector builds a selector from the configured mode. A serverless
// environment forces Supabase-only operation.
func NewSelector(mode Mode, serverless bool) Selector {
	if serverless {
		mode = ModeSupabase
	}
	return Selector{mode: mode}
}

// Mode returns the effective backend mode.
func (s Selector) Mode() Mode { return s.mode }

// PrimaryForReads returns the backend every read is served from. In dual
// mode reads stay on SQLite so behavior is unchanged while the migration
// backfills Supabase.
func (s Selector) PrimaryForReads() ID {
	if s.mode == ModeSupabase {
		return Supabase
	}
	return SQLite
}

// WriteTargets returns the backends that receive each write, primary
// first.
func (s Selector) WriteTargets() []ID {
	switch s.mode {
	case ModeSupabase:
		return []ID{Supabase}
	case ModeDual:
		return []ID{SQLite, Supabase}
	default:
		return []ID{SQLite}
	}
}

// IsDualWrite reports whether writes go to both backends.
func (s Selector) IsDualWrite() bool { return s.mode == ModeDual }
