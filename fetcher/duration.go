package fetcher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
)

const DefaultMinDuration = 120

// DurationPolicy resolves the minimum video length in seconds for a
// channel. Precedence: in-process overrides, then overrides read from an
// optional JSON file (channel URL to seconds), then the global default.
type DurationPolicy struct {
	defaultSeconds int
	overrides      map[string]int
	fileOverrides  map[string]int
}

// NewDurationPolicy builds a policy. The file at path may be absent or
// malformed, both degrade to an empty file mapping with a logged warning.
func NewDurationPolicy(defaultSeconds int, overrides map[string]int, path string, logger *slog.Logger) *DurationPolicy {
	if defaultSeconds < 0 {
		defaultSeconds = DefaultMinDuration
	}
	if overrides == nil {
		overrides = map[string]int{}
	}

	return &DurationPolicy{
		defaultSeconds: defaultSeconds,
		overrides:      overrides,
		fileOverrides:  loadDurationOverrides(path, logger),
	}
}

func (p *DurationPolicy) Resolve(channelURL string) int {
	if seconds, ok := p.overrides[channelURL]; ok {
		return seconds
	}
	if seconds, ok := p.fileOverrides[channelURL]; ok {
		return seconds
	}

	return p.defaultSeconds
}

func loadDurationOverrides(path string, logger *slog.Logger) map[string]int {
	if path == "" {
		return map[string]int{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("could not read duration overrides", "path", path, "error", err)
		}
		return map[string]int{}
	}
	overrides := map[string]int{}
	if err := json.Unmarshal(data, &overrides); err != nil {
		logger.Warn("duration overrides file is malformed, ignoring it", "path", path, "error", err)
		return map[string]int{}
	}

	return overrides
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts the ISO-8601 duration subset YouTube emits
// (PT1H2M3S, P1DT2H) into seconds.
func ParseISODuration(value string) (int, error) {
	m := isoDurationPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("invalid ISO-8601 duration: %q", value)
	}
	seconds := 0
	for i, factor := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration: %q", value)
		}
		seconds += n * factor
	}

	return seconds, nil
}
