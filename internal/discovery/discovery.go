// Package discovery optionally advertises a pathfinder domain's listen
// address over mDNS, so client libraries on the same LAN can find the
// rendezvous point without being handed an address out of band
// (SPEC_FULL.md §3.3). This is unrelated to the service catalogue a
// domain serves: it advertises the domain's own address, not the
// services published into it.
//
// Adapted from TypeTerrors-go.model-orchestrator/internal/discovery/
// announcer.go: the shape (AnnounceOptions, Announcer, sync.Once
// Stop) is kept; the defaulted service/domain names and instance
// derivation are specific to pathfinder.
package discovery

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
)

const (
	defaultService = "_pathfinder._tcp"
	defaultDomain  = "local."
)

// AnnounceOptions describes one domain's mDNS advertisement.
type AnnounceOptions struct {
	// Instance names this advertisement. Defaults to the hostname plus a
	// short random suffix, so multiple domains on one host don't collide.
	Instance string
	Service  string
	Domain   string
	Port     int
	// DomainName is the pathfinder Domain.Name, published as a TXT
	// record so browsers can tell domains on the same host apart.
	DomainName string
}

// Announcer manages the lifetime of one mDNS advertisement.
type Announcer struct {
	server *zeroconf.Server
	once   sync.Once
}

// NewAnnouncer publishes an mDNS record for opts and returns a
// controller. Callers must call Stop when the domain shuts down.
func NewAnnouncer(opts AnnounceOptions) (*Announcer, error) {
	opts = opts.withDefaults()
	if opts.Port <= 0 {
		return nil, fmt.Errorf("discovery: invalid port %d", opts.Port)
	}

	text := []string{"domain=" + opts.DomainName}
	server, err := zeroconf.Register(opts.Instance, opts.Service, opts.Domain, opts.Port, text, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register %s: %w", opts.Instance, err)
	}
	return &Announcer{server: server}, nil
}

// Stop removes the advertisement. Safe to call more than once.
func (a *Announcer) Stop() {
	a.once.Do(func() {
		if a.server != nil {
			a.server.Shutdown()
		}
	})
}

func (o AnnounceOptions) withDefaults() AnnounceOptions {
	if o.Service == "" {
		o.Service = defaultService
	}
	if o.Domain == "" {
		o.Domain = defaultDomain
	}
	if o.Instance == "" {
		host, err := os.Hostname()
		if err != nil || strings.TrimSpace(host) == "" {
			host = "pathfinder"
		}
		o.Instance = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	if o.DomainName == "" {
		o.DomainName = "default"
	}
	return o
}
