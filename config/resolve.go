package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// ResolveConfig centralizes redirect resolution settings
type ResolveConfig struct {
	Paths `yaml:",inline"`

	// Request settings
	Method       string        `yaml:"method"`        // HEAD or GET
	Timeout      time.Duration `yaml:"timeout"`       // Per-request timeout
	MaxRedirects int           `yaml:"max_redirects"` // Redirect hops followed per URL
	UserAgent    string        `yaml:"user_agent"`

	// Concurrency settings
	Workers   int `yaml:"workers"`    // URLs resolved in parallel
	RateLimit int `yaml:"rate_limit"` // Requests per second, 0 disables limiting

	// Retry settings
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`

	// Cache settings
	CachePath string        `yaml:"cache_path"` // bbolt file, empty disables caching
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	// Circuit breaker settings
	CBFailureThreshold int           `yaml:"cb_failure_threshold"` // Failures before a host's circuit opens
	CBTimeout          time.Duration `yaml:"cb_timeout"`           // Open time before probing a host again
	CBHalfOpenRequests int           `yaml:"cb_half_open_requests"`
}

// DefaultResolveConfig returns a ResolveConfig with sensible defaults
func DefaultResolveConfig() *ResolveConfig {
	return &ResolveConfig{
		Paths: Paths{Input: "migu.m3u", Output: "final.m3u"},

		Method:       http.MethodHead,
		Timeout:      10 * time.Second,
		MaxRedirects: 10,
		UserAgent:    "iptv-playlist/1.0",

		Workers:   5,
		RateLimit: 0,

		MaxRetries:     5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,

		CacheTTL: 24 * time.Hour,

		CBFailureThreshold: 5,
		CBTimeout:          30 * time.Second,
		CBHalfOpenRequests: 1,
	}
}

var validMethods = map[string]bool{
	http.MethodHead: true,
	http.MethodGet:  true,
}

// Validate performs validation on the resolver settings
func (c *ResolveConfig) Validate() error {
	var errors []string

	errors = append(errors, c.Paths.validate("resolve")...)

	if !validMethods[strings.ToUpper(c.Method)] {
		errors = append(errors, "Method must be HEAD or GET")
	}
	if c.Timeout <= 0 {
		errors = append(errors, "Timeout must be positive")
	}
	if c.MaxRedirects <= 0 {
		errors = append(errors, "MaxRedirects must be positive")
	}
	if c.Workers <= 0 {
		errors = append(errors, "Workers must be positive")
	}
	if c.RateLimit < 0 {
		errors = append(errors, "RateLimit must not be negative")
	}
	if c.MaxRetries < 0 {
		errors = append(errors, "MaxRetries must not be negative")
	}
	if c.InitialBackoff <= 0 {
		errors = append(errors, "InitialBackoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		errors = append(errors, "MaxBackoff must be positive")
	}
	if c.InitialBackoff > c.MaxBackoff {
		errors = append(errors, "InitialBackoff must be <= MaxBackoff")
	}
	if c.CachePath != "" && c.CacheTTL <= 0 {
		errors = append(errors, "CacheTTL must be positive when CachePath is set")
	}
	if c.CBFailureThreshold <= 0 {
		errors = append(errors, "CBFailureThreshold must be positive")
	}
	if c.CBTimeout <= 0 {
		errors = append(errors, "CBTimeout must be positive")
	}
	if c.CBHalfOpenRequests <= 0 {
		errors = append(errors, "CBHalfOpenRequests must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// envParser is a helper for parsing environment variables with validation
type envParser struct {
	errors []string
}

// applyResolve reads the RESOLVE_* variables into cfg
func (p *envParser) applyResolve(cfg *ResolveConfig) {
	p.parseEnum("RESOLVE_METHOD", &cfg.Method, validMethods)
	p.parseDuration("RESOLVE_TIMEOUT", &cfg.Timeout)
	p.parseInt("RESOLVE_MAX_REDIRECTS", &cfg.MaxRedirects)
	p.parseInt("RESOLVE_WORKERS", &cfg.Workers)
	p.parseNonNegativeInt("RESOLVE_RATE_LIMIT", &cfg.RateLimit)
	p.parseNonNegativeInt("RESOLVE_MAX_RETRIES", &cfg.MaxRetries)
	p.parseDuration("RESOLVE_INITIAL_BACKOFF", &cfg.InitialBackoff)
	p.parseDuration("RESOLVE_MAX_BACKOFF", &cfg.MaxBackoff)
	p.parseString("RESOLVE_CACHE_PATH", &cfg.CachePath)
	p.parseDuration("RESOLVE_CACHE_TTL", &cfg.CacheTTL)
	p.parseInt("RESOLVE_CB_FAILURE_THRESHOLD", &cfg.CBFailureThreshold)
	p.parseDuration("RESOLVE_CB_TIMEOUT", &cfg.CBTimeout)
	p.parseInt("RESOLVE_CB_HALF_OPEN_REQUESTS", &cfg.CBHalfOpenRequests)
}

// parseString copies a non-empty environment variable into target
func (p *envParser) parseString(envName string, target *string) {
	if val := os.Getenv(envName); val != "" {
		*target = val
	}
}

// parseDuration parses a duration environment variable, ensuring it's positive
func (p *envParser) parseDuration(envName string, target *time.Duration) {
	val := os.Getenv(envName)
	if val == "" {
		return
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("%s: invalid duration format (use '30s', '1m', etc.)", envName))
		return
	}

	if duration <= 0 {
		p.errors = append(p.errors, fmt.Sprintf("%s must be positive", envName))
		return
	}

	*target = duration
}

// parseInt parses an integer environment variable, ensuring it's positive
func (p *envParser) parseInt(envName string, target *int) {
	intVal, ok := p.atoi(envName)
	if !ok {
		return
	}

	if intVal <= 0 {
		p.errors = append(p.errors, fmt.Sprintf("%s must be positive", envName))
		return
	}

	*target = intVal
}

// parseNonNegativeInt is parseInt that also accepts zero
func (p *envParser) parseNonNegativeInt(envName string, target *int) {
	intVal, ok := p.atoi(envName)
	if !ok {
		return
	}

	if intVal < 0 {
		p.errors = append(p.errors, fmt.Sprintf("%s must not be negative", envName))
		return
	}

	*target = intVal
}

func (p *envParser) atoi(envName string) (int, bool) {
	val := os.Getenv(envName)
	if val == "" {
		return 0, false
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("%s: must be a valid integer", envName))
		return 0, false
	}
	return intVal, true
}

// parseEnum parses an enum environment variable from a set of valid values
func (p *envParser) parseEnum(envName string, target *string, validValues map[string]bool) {
	val := os.Getenv(envName)
	if val == "" {
		return
	}

	normalized := strings.ToUpper(val)
	if !validValues[normalized] {
		var validList []string
		for k := range validValues {
			validList = append(validList, k)
		}
		p.errors = append(p.errors, fmt.Sprintf("%s must be one of: %s", envName, strings.Join(validList, ", ")))
		return
	}

	*target = normalized
}
