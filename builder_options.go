package surfacehash

import (
	"slices"

	log "github.com/sirupsen/logrus"
)

const (
	maxPayloadSize = 8

	// defaultMaxAttempts bounds the grow-and-retry loop. Each retry widens
	// every extent by 2·d, so 32 attempts already adds 64·d to each axis.
	defaultMaxAttempts = 32
)

// BuildOption is a functional option for configuring builds.
type BuildOption func(*buildConfig)

// WriteOption is a functional option for configuring index files.
type WriteOption func(*writeConfig)

type buildConfig struct {
	initialExtents []uint32
	maxAttempts    int
	logger         log.FieldLogger
	ambiguityCheck bool
	retryNotify    func(attempt int, err error)
}

type writeConfig struct {
	userMetadata []byte
}

func defaultBuildConfig() *buildConfig {
	return &buildConfig{
		maxAttempts:    defaultMaxAttempts,
		logger:         log.StandardLogger(),
		ambiguityCheck: true,
	}
}

// WithInitialExtents sets the starting box instead of the tight bounding box
// of the sample locations. Every location must lie inside it.
func WithInitialExtents(extents []uint32) BuildOption {
	return func(c *buildConfig) {
		c.initialExtents = slices.Clone(extents)
	}
}

// WithMaxAttempts caps the number of construction attempts. Values below 1
// are treated as 1.
func WithMaxAttempts(n int) BuildOption {
	return func(c *buildConfig) {
		c.maxAttempts = max(1, n)
	}
}

// WithLogger sets the logger used for build progress. Defaults to the
// logrus standard logger.
func WithLogger(l log.FieldLogger) BuildOption {
	return func(c *buildConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAmbiguityCheck controls whether Build rejects inputs where a stored
// location is consistent with more than one normal. Enabled by default.
// When disabled, such locations resolve to the lowest catalog normal and
// samples carrying another normal there are unreachable.
func WithAmbiguityCheck(enabled bool) BuildOption {
	return func(c *buildConfig) {
		c.ambiguityCheck = enabled
	}
}

// WithRetryNotify registers a callback invoked after each failed attempt
// that will be retried. attempt is 1-based.
func WithRetryNotify(fn func(attempt int, err error)) BuildOption {
	return func(c *buildConfig) {
		c.retryNotify = fn
	}
}

// WithUserMetadata sets the variable-length user metadata.
// The metadata is copied, so the caller can reuse the slice after this call.
func WithUserMetadata(data []byte) WriteOption {
	return func(c *writeConfig) {
		c.userMetadata = append([]byte(nil), data...) // Copy slice
	}
}
