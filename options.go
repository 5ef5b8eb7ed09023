package pathfinder

import "github.com/charmbracelet/log"

// Option configures a Domain at construction time, the same functional
// options shape the teacher library uses for its Client (options.go).
type Option func(*domainOptions)

type domainOptions struct {
	limits       ResourceLimits
	logger       *log.Logger
	minVersion   uint8
	maxVersion   uint8
	queueDepth   int
}

func defaultOptions() domainOptions {
	return domainOptions{
		logger:     log.Default(),
		minVersion: 1,
		maxVersion: 1,
		queueDepth: 64,
	}
}

// WithResourceLimits sets the per-user and per-total ceilings for the
// four countable resources (spec.md §4.4). The zero value is unlimited.
func WithResourceLimits(limits ResourceLimits) Option {
	return func(o *domainOptions) { o.limits = limits }
}

// WithLogger overrides the domain's logger. Defaults to log.Default().
func WithLogger(logger *log.Logger) Option {
	return func(o *domainOptions) { o.logger = logger }
}

// WithProtocolVersions sets the inclusive range of protocol versions
// this domain will negotiate during hello. Defaults to [1, 1].
func WithProtocolVersions(min, max uint8) Option {
	return func(o *domainOptions) { o.minVersion, o.maxVersion = min, max }
}

// WithCommandQueueDepth sets the buffer size of the domain's incoming
// command channel. Defaults to 64.
func WithCommandQueueDepth(n int) Option {
	return func(o *domainOptions) { o.queueDepth = n }
}
