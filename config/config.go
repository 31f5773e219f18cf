package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when neither a --config flag nor CONFIG_FILE names one
const DefaultFile = "iptv-playlist.yaml"

// Paths names the document a stage reads and the one it writes
type Paths struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

func (p Paths) validate(stage string) []string {
	var errs []string
	if p.Input == "" {
		errs = append(errs, fmt.Sprintf("%s: input path is required", stage))
	}
	if p.Output == "" {
		errs = append(errs, fmt.Sprintf("%s: output path is required", stage))
	}
	return errs
}

// ConvertConfig configures the source list to extended M3U conversion
type ConvertConfig struct {
	Paths        `yaml:",inline"`
	EPGURL       string   `yaml:"epg_url"`
	LogoBaseURL  string   `yaml:"logo_base_url"`
	NamePrefixes []string `yaml:"name_prefixes"`
	OnMalformed  string   `yaml:"on_malformed"`
}

// RewriteConfig configures the bracketed-host link rewriter
type RewriteConfig struct {
	Paths `yaml:",inline"`
	Host  string `yaml:"host"`
}

// FilterConfig configures the group filter
type FilterConfig struct {
	Paths `yaml:",inline"`
	Group string `yaml:"group"`
}

// ExtractConfig configures keyword extraction
type ExtractConfig struct {
	Paths      `yaml:",inline"`
	Mode       string `yaml:"mode"`
	Keyword    string `yaml:"keyword"`
	URLKeyword string `yaml:"url_keyword"`
}

// DedupConfig configures display-name de-duplication
type DedupConfig struct {
	Paths  `yaml:",inline"`
	Header bool `yaml:"header"`
}

// PipelineConfig configures the in-memory multi-stage run
type PipelineConfig struct {
	Paths  `yaml:",inline"`
	Stages []string `yaml:"stages"`
}

// Config holds the complete application configuration
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`

	Convert  ConvertConfig  `yaml:"convert"`
	Rewrite  RewriteConfig  `yaml:"rewrite"`
	Filter   FilterConfig   `yaml:"filter"`
	Extract  ExtractConfig  `yaml:"extract"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Resolve  ResolveConfig  `yaml:"resolve"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

var validLogLevels = map[string]bool{
	"DEBUG": true,
	"INFO":  true,
	"WARN":  true,
	"ERROR": true,
}

// ValidStages lists the stage names a pipeline may contain
var ValidStages = map[string]bool{
	"convert": true,
	"rewrite": true,
	"filter":  true,
	"extract": true,
	"dedup":   true,
	"resolve": true,
}

// ValidExtractModes lists the supported keyword extraction modes
var ValidExtractModes = map[string]bool{
	"extinf":         true,
	"url":            true,
	"any":            true,
	"extinf_and_url": true,
	"extinf_or_url":  true,
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToUpper(c.Log.Level)] {
		errs = append(errs, "log level must be one of: DEBUG, INFO, WARN, ERROR")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, "log format must be text or json")
	}

	errs = append(errs, c.Convert.validate()...)

	errs = append(errs, c.Rewrite.Paths.validate("rewrite")...)
	if strings.TrimSpace(c.Rewrite.Host) == "" {
		errs = append(errs, "rewrite: host is required")
	}

	errs = append(errs, c.Filter.Paths.validate("filter")...)
	if strings.TrimSpace(c.Filter.Group) == "" {
		errs = append(errs, "filter: group is required")
	}

	errs = append(errs, c.Extract.Paths.validate("extract")...)
	if !ValidExtractModes[c.Extract.Mode] {
		errs = append(errs, fmt.Sprintf("extract: unknown mode %q", c.Extract.Mode))
	}
	if strings.TrimSpace(c.Extract.Keyword) == "" {
		errs = append(errs, "extract: keyword is required")
	}
	if (c.Extract.Mode == "extinf_and_url" || c.Extract.Mode == "extinf_or_url") && strings.TrimSpace(c.Extract.URLKeyword) == "" {
		errs = append(errs, fmt.Sprintf("extract: url_keyword is required for mode %s", c.Extract.Mode))
	}

	errs = append(errs, c.Dedup.Paths.validate("dedup")...)

	if err := c.Resolve.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("resolve: %v", err))
	}

	errs = append(errs, c.Pipeline.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func (c ConvertConfig) validate() []string {
	errs := c.Paths.validate("convert")
	if c.EPGURL == "" {
		errs = append(errs, "convert: epg_url is required")
	}
	if c.LogoBaseURL == "" {
		errs = append(errs, "convert: logo_base_url is required")
	}
	if len(c.NamePrefixes) == 0 {
		errs = append(errs, "convert: at least one name prefix is required")
	}
	switch strings.ToLower(c.OnMalformed) {
	case "skip", "error":
	default:
		errs = append(errs, fmt.Sprintf("convert: on_malformed must be skip or error, got %q", c.OnMalformed))
	}
	return errs
}

func (c PipelineConfig) validate() []string {
	errs := c.Paths.validate("pipeline")
	if len(c.Stages) == 0 {
		errs = append(errs, "pipeline: at least one stage is required")
	}
	for i, stage := range c.Stages {
		if !ValidStages[stage] {
			errs = append(errs, fmt.Sprintf("pipeline: unknown stage %q", stage))
			continue
		}
		if stage == "convert" && i != 0 {
			errs = append(errs, "pipeline: convert can only be the first stage")
		}
	}
	return errs
}

// Default returns a Config with sensible default values
func Default() *Config {
	cfg := &Config{}

	cfg.Log.Level = "INFO"
	cfg.Log.Format = "text"

	cfg.Convert = ConvertConfig{
		Paths:        Paths{Input: "input.txt", Output: "output.m3u"},
		EPGURL:       "https://live.fanmingming.com/e.xml",
		LogoBaseURL:  "https://live.fanmingming.com/tv/",
		NamePrefixes: []string{"CCTV", "CETV"},
		OnMalformed:  "skip",
	}

	cfg.Rewrite = RewriteConfig{
		Paths: Paths{Input: "old.m3u", Output: "new.m3u"},
		Host:  "ottrrs.hl.chinamobile.com",
	}

	cfg.Filter = FilterConfig{
		Paths: Paths{Input: "old.m3u", Output: "new.m3u"},
		Group: "CCTV-Live",
	}

	cfg.Extract = ExtractConfig{
		Paths:   Paths{Input: "miguraw.m3u", Output: "migu_output.txt"},
		Mode:    "extinf",
		Keyword: "咪咕视频",
	}

	cfg.Dedup = DedupConfig{
		Paths:  Paths{Input: "migu_output.txt", Output: "migu.m3u"},
		Header: true,
	}

	cfg.Resolve = *DefaultResolveConfig()

	cfg.Pipeline = PipelineConfig{
		Paths:  Paths{Input: "input.txt", Output: "output.m3u"},
		Stages: []string{"convert", "rewrite", "filter"},
	}

	return cfg
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load loads configuration from a file (if present) and applies environment
// variable overrides. An explicitly named file must exist; the default file
// is optional.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultFile
	}

	var cfg *Config

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		cfg = loaded
	case explicit || !errors.Is(statErr, os.ErrNotExist):
		return nil, fmt.Errorf("failed to load config from %s: %w", path, statErr)
	default:
		cfg = Default()
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) error {
	parser := &envParser{}

	parser.parseEnum("LOG_LEVEL", &cfg.Log.Level, validLogLevels)
	parser.parseString("LOG_FORMAT", &cfg.Log.Format)
	parser.parseString("METRICS_FILE", &cfg.Metrics.Textfile)

	parser.parseString("CONVERT_EPG_URL", &cfg.Convert.EPGURL)
	parser.parseString("CONVERT_LOGO_BASE_URL", &cfg.Convert.LogoBaseURL)
	parser.parseString("REWRITE_HOST", &cfg.Rewrite.Host)
	parser.parseString("FILTER_GROUP", &cfg.Filter.Group)

	parser.applyResolve(&cfg.Resolve)

	if len(parser.errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(parser.errors, "\n  - "))
	}

	return nil
}
