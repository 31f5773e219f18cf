package circuitbreaker

import (
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Registry hands out one breaker per upstream host so that a dead host stops
// receiving requests without affecting the others.
type Registry struct {
	cfg      Config
	mu       sync.Mutex
	breakers map[string]*HostBreaker
}

// NewRegistry creates a registry whose breakers share cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*HostBreaker),
	}
}

// ForHost returns the breaker for host, creating it on first use.
func (r *Registry) ForHost(host string) *HostBreaker {
	host = strings.ToLower(host)

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[host]; ok {
		return b
	}
	b := New(host, r.cfg)
	r.breakers[host] = b
	return b
}

// ForURL returns the breaker for the host of rawURL. Unparseable URLs share
// the breaker of the empty host.
func (r *Registry) ForURL(rawURL string) *HostBreaker {
	u, err := url.Parse(rawURL)
	if err != nil {
		return r.ForHost("")
	}
	return r.ForHost(u.Host)
}

// Open returns the hosts whose breakers are currently open, sorted.
func (r *Registry) Open() []string {
	var hosts []string
	for _, s := range r.Stats() {
		if s.State == StateOpen {
			hosts = append(hosts, s.Host)
		}
	}
	return hosts
}

// Stats returns a snapshot of every breaker, sorted by host.
func (r *Registry) Stats() []Stats {
	r.mu.Lock()
	breakers := make([]*HostBreaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	stats := make([]Stats, 0, len(breakers))
	for _, b := range breakers {
		stats = append(stats, b.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Host < stats[j].Host })
	return stats
}
