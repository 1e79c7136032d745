package main

import (
	"github.com/hiveboardgame/realtime/internal/config"
)

// Config is the process-wide configuration, loaded once in main and
// threaded through NewServer — the same role the teacher's
// cmd/server/config.go Config/LoadConfig pair play, now backed by
// internal/config so internal/jobs and internal/store share the exact
// values the HTTP layer was configured with.
type Config = config.Config

// LoadConfig reads configuration from the environment (and an
// optional .env file).
func LoadConfig() Config {
	return config.Load()
}
