package pubstatic

import (
	"os"
	"strings"
)

// RunModeEnv is the environment variable consulted for the run mode when
// none is passed explicitly.
const RunModeEnv = "ELEVENTY_RUN_MODE"

// RunMode tells the pipeline whether it runs a production build or a local
// preview. It is fixed for the lifetime of one build.
type RunMode string

const (
	RunModeBuild RunMode = "build"
	RunModeServe RunMode = "serve"
	RunModeWatch RunMode = "watch"
)

// ParseRunMode normalizes s. Unknown values are kept as-is; only "build"
// counts as production.
func ParseRunMode(s string) RunMode {
	return RunMode(strings.ToLower(strings.TrimSpace(s)))
}

// ModeFromEnv reads RunModeEnv. An unset variable yields RunModeBuild so a
// library caller that forgets to pick a mode never publishes drafts.
func ModeFromEnv() RunMode {
	v := os.Getenv(RunModeEnv)
	if strings.TrimSpace(v) == "" {
		return RunModeBuild
	}
	return ParseRunMode(v)
}

// IsProduction reports whether m is a production build.
func (m RunMode) IsProduction() bool {
	return m == RunModeBuild
}

func (m RunMode) String() string {
	return string(m)
}
