package common

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

const (
	// The API mostly waits on upstream HTTP and RPC calls, so a moderately
	// relaxed GC is enough.
	defaultGOGC = 200

	smallServerMemLimit = 1 * 1024 * 1024 * 1024
	largeServerMemLimit = 4 * 1024 * 1024 * 1024
)

// InitRuntime applies GC and memory defaults unless GOGC / GOMEMLIMIT are set
// in the environment.
func InitRuntime() {
	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(defaultGOGC)
		log.Info().Int("GOGC", defaultGOGC).Msg("[runtime] set GOGC")
	}

	if os.Getenv("GOMEMLIMIT") == "" {
		limit := int64(smallServerMemLimit)
		if runtime.NumCPU() > 4 {
			limit = largeServerMemLimit
		}
		debug.SetMemoryLimit(limit)
		log.Info().
			Float64("GOMEMLIMIT_GB", float64(limit)/1024/1024/1024).
			Msg("[runtime] set memory limit")
	}

	log.Info().
		Int("num_cpu", runtime.NumCPU()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Str("go_version", runtime.Version()).
		Msg("[runtime] current runtime settings")
}
