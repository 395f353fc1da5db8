package logutil

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// DebugEnvVar enables debug logging when set to "1".
const DebugEnvVar = "SCREENPUB_DEBUG"

var debugEnabled atomic.Bool

// Setup configures the standard logger. Debug output is enabled when debug is
// true or DebugEnvVar is "1".
func Setup(debug bool) {
	log.SetOutput(os.Stderr)
	if debug || strings.TrimSpace(os.Getenv(DebugEnvVar)) == "1" {
		debugEnabled.Store(true)
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
		return
	}
	debugEnabled.Store(false)
	log.SetFlags(log.LstdFlags)
}

// DebugEnabled reports whether Debugf writes anything.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// Debugf logs only when debug output is enabled.
func Debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	log.Printf("debug: "+format, args...)
}

// Every returns a rate limiter for noisy log lines: it reports true at most
// once per period.
func Every(period time.Duration) func() bool {
	var last atomic.Int64
	return func() bool {
		now := time.Now().UnixNano()
		for {
			prev := last.Load()
			if prev != 0 && time.Duration(now-prev) < period {
				return false
			}
			if last.CompareAndSwap(prev, now) {
				return true
			}
		}
	}
}
