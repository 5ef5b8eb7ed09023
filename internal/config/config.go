// Package config loads pathfinderd's runtime configuration through
// cobra flags bound to viper, replacing the teacher's flag.FlagSet +
// env-seeded defaults pattern (mirrored here from
// TypeTerrors-go.model-orchestrator/internal/config/orchestrator.go)
// with the richer cobra/viper combination the rest of the retrieval
// pack depends on.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DomainSpec configures one independently-administered domain
// (SPEC_FULL.md §4, "Per-domain independent configuration"): its own
// listen addresses, resource limits, and mDNS advertisement toggle.
type DomainSpec struct {
	Name          string
	TCPAddr       string
	WSAddr        string
	WSPath        string
	Advertise     bool
	ResourceLimits [4]ResourceLimit
}

// ResourceLimit mirrors pathfinder.Limits without importing the domain
// package, so config stays a leaf dependency.
type ResourceLimit struct {
	PerUser int
	Total   int
}

// Config is pathfinderd's fully resolved runtime configuration.
type Config struct {
	Domains []DomainSpec

	LogLevel   string
	LogNoColor bool

	MetricsAddr string

	OrphanSweepInterval time.Duration
}

// Bind registers every pathfinderd flag on fs and binds it into v,
// honoring a PATHFINDER_ env prefix for every flag (e.g.
// --tcp-addr / PATHFINDER_TCP_ADDR).
func Bind(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String("name", "default", "name of the single domain this process serves")
	fs.String("tcp-addr", ":7420", "TCP listen address")
	fs.String("ws-addr", "", "WebSocket listen address (empty disables the WS transport)")
	fs.String("ws-path", "/pathfinder", "HTTP path the WebSocket transport upgrades on")
	fs.Bool("advertise", false, "advertise this domain over mDNS")
	fs.String("metrics-addr", ":9420", "Prometheus /metrics listen address (empty disables it)")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("log-no-color", false, "disable ANSI color in log output")
	fs.Duration("orphan-sweep-interval", 0, "unused: orphan expiry is event-driven, kept for forward compatibility")

	fs.Int("limit-clients-per-user", 0, "max live clients per user (0 = unlimited)")
	fs.Int("limit-clients-total", 0, "max live clients domain-wide (0 = unlimited)")
	fs.Int("limit-services-per-user", 0, "max published services per user (0 = unlimited)")
	fs.Int("limit-services-total", 0, "max published services domain-wide (0 = unlimited)")
	fs.Int("limit-subscriptions-per-user", 0, "max standing subscriptions per user (0 = unlimited)")
	fs.Int("limit-subscriptions-total", 0, "max standing subscriptions domain-wide (0 = unlimited)")
	fs.Int("limit-filter-nodes-per-user", 0, "max total filter-grammar nodes per user (0 = unlimited)")
	fs.Int("limit-filter-nodes-total", 0, "max total filter-grammar nodes domain-wide (0 = unlimited)")

	v.SetEnvPrefix("pathfinder")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(fs)
}

// Load resolves a Config from whatever Bind populated v with.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		LogLevel:    v.GetString("log-level"),
		LogNoColor:  v.GetBool("log-no-color"),
		MetricsAddr: v.GetString("metrics-addr"),
	}

	name := strings.TrimSpace(v.GetString("name"))
	if name == "" {
		return Config{}, fmt.Errorf("config: domain name must not be empty")
	}

	tcpAddr := v.GetString("tcp-addr")
	wsAddr := v.GetString("ws-addr")
	if tcpAddr == "" && wsAddr == "" {
		return Config{}, fmt.Errorf("config: at least one of --tcp-addr or --ws-addr must be set")
	}

	spec := DomainSpec{
		Name:      name,
		TCPAddr:   tcpAddr,
		WSAddr:    wsAddr,
		WSPath:    v.GetString("ws-path"),
		Advertise: v.GetBool("advertise"),
		ResourceLimits: [4]ResourceLimit{
			{PerUser: v.GetInt("limit-clients-per-user"), Total: v.GetInt("limit-clients-total")},
			{PerUser: v.GetInt("limit-services-per-user"), Total: v.GetInt("limit-services-total")},
			{PerUser: v.GetInt("limit-subscriptions-per-user"), Total: v.GetInt("limit-subscriptions-total")},
			{PerUser: v.GetInt("limit-filter-nodes-per-user"), Total: v.GetInt("limit-filter-nodes-total")},
		},
	}
	cfg.Domains = []DomainSpec{spec}
	return cfg, nil
}
