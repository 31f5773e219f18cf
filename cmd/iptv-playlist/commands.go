package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alorle/iptv-playlist/config"
	"github.com/alorle/iptv-playlist/logging"
)

type rootOptions struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsFile string
}

func newRootCmd() *cobra.Command {
	var (
		opts rootOptions
		a    *app
	)

	rootCmd := &cobra.Command{
		Use:           "iptv-playlist",
		Short:         "Convert, rewrite, filter and clean up IPTV playlists",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Log.Level = strings.ToUpper(opts.logLevel)
			}
			if opts.logFormat != "" {
				cfg.Log.Format = opts.logFormat
			}
			if opts.metricsFile != "" {
				cfg.Metrics.Textfile = opts.metricsFile
			}
			// Flags bypass the checks config.Load ran on file and env values.
			if err := cfg.Validate(); err != nil {
				return err
			}

			a = newApp(cfg, defaultLogOutput)
			a.logger.Info("run started", map[string]interface{}{
				"event":   logging.EventRunStarted,
				"command": cmd.Name(),
			})
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file (default $CONFIG_FILE or "+config.DefaultFile+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: DEBUG, INFO, WARN or ERROR")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile when done")

	appFn := func() *app { return a }

	rootCmd.AddCommand(
		newConvertCmd(appFn),
		newRewriteCmd(appFn),
		newFilterCmd(appFn),
		newExtractCmd(appFn),
		newDedupCmd(appFn),
		newResolveCmd(appFn),
		newRunCmd(appFn),
	)

	return rootCmd
}

// pathFlags registers --input and --output on cmd.
func pathFlags(cmd *cobra.Command, input, output *string) {
	cmd.Flags().StringVarP(input, "input", "i", "", "source document (overrides config)")
	cmd.Flags().StringVarP(output, "output", "o", "", "destination document (overrides config)")
}

func override(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

// execute runs fn and logs how the run ended. Resources opened by the run
// are released even when fn fails.
func execute(a *app, cmd *cobra.Command, input, output string, fn func() error) error {
	err := fn()
	if closeErr := a.close(); err == nil {
		err = closeErr
	}

	fields := map[string]interface{}{
		"event":    logging.EventRunFinished,
		"command":  cmd.Name(),
		"input":    input,
		"output":   output,
		"duration": time.Since(a.start).Round(time.Millisecond).String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		a.logger.Error("run failed", fields)
		return err
	}
	a.logger.Info("run finished", fields)
	return nil
}

func newConvertCmd(appFn func() *app) *cobra.Command {
	var input, output, epgURL, logoBase, onMalformed string
	var prefixes []string

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a grouped \"name,url\" source list into an extended M3U playlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			c := &a.cfg.Convert
			override(&c.Input, input)
			override(&c.Output, output)
			override(&c.EPGURL, epgURL)
			override(&c.LogoBaseURL, logoBase)
			override(&c.OnMalformed, onMalformed)
			if len(prefixes) > 0 {
				c.NamePrefixes = prefixes
			}

			return execute(a, cmd, c.Input, c.Output, func() error {
				svc, err := a.convertService()
				if err != nil {
					return err
				}
				return svc.Run(cmd.Context(), c.Input, c.Output)
			})
		},
	}

	pathFlags(cmd, &input, &output)
	cmd.Flags().StringVar(&epgURL, "epg-url", "", "guide URL written as x-tvg-url in the header")
	cmd.Flags().StringVar(&logoBase, "logo-base-url", "", "base URL for channel logos")
	cmd.Flags().StringSliceVar(&prefixes, "prefix", nil, "channel brand prefixes collapsed in names (repeatable)")
	cmd.Flags().StringVar(&onMalformed, "on-malformed", "", "malformed channel lines: skip or error")
	return cmd
}

func newRewriteCmd(appFn func() *app) *cobra.Command {
	var input, output, host string

	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Strip bracketed address and port prefixes from links to a fixed host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			c := &a.cfg.Rewrite
			override(&c.Input, input)
			override(&c.Output, output)
			override(&c.Host, host)

			return execute(a, cmd, c.Input, c.Output, func() error {
				svc, err := a.rewriteService()
				if err != nil {
					return err
				}
				return svc.Run(cmd.Context(), c.Input, c.Output)
			})
		},
	}

	pathFlags(cmd, &input, &output)
	cmd.Flags().StringVar(&host, "host", "", "host whose links are rewritten")
	return cmd
}

func newFilterCmd(appFn func() *app) *cobra.Command {
	var input, output, group string

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Keep only the entries of one group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			c := &a.cfg.Filter
			override(&c.Input, input)
			override(&c.Output, output)
			override(&c.Group, group)

			return execute(a, cmd, c.Input, c.Output, func() error {
				svc, err := a.filterService()
				if err != nil {
					return err
				}
				return svc.Run(cmd.Context(), c.Input, c.Output)
			})
		},
	}

	pathFlags(cmd, &input, &output)
	cmd.Flags().StringVarP(&group, "group", "g", "", "group-title value to keep")
	return cmd
}

func newExtractCmd(appFn func() *app) *cobra.Command {
	var input, output, mode, keyword, urlKeyword string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the #EXTINF/URL records matching a keyword expression",
		Long: `Extract the #EXTINF/URL records matching a keyword expression.

Keywords may be wrapped in double quotes. "a&&b" requires every term,
"a||b" requires any term. Modes: extinf, url, any, extinf_and_url,
extinf_or_url. The combined modes test --keyword against the #EXTINF
line and --url-keyword against the URL line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			c := &a.cfg.Extract
			override(&c.Input, input)
			override(&c.Output, output)
			override(&c.Mode, mode)
			override(&c.Keyword, keyword)
			override(&c.URLKeyword, urlKeyword)

			return execute(a, cmd, c.Input, c.Output, func() error {
				svc, err := a.extractService()
				if err != nil {
					return err
				}
				return svc.Run(cmd.Context(), c.Input, c.Output)
			})
		},
	}

	pathFlags(cmd, &input, &output)
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "match mode")
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "keyword expression")
	cmd.Flags().StringVar(&urlKeyword, "url-keyword", "", "URL keyword expression for the combined modes")
	return cmd
}

func newDedupCmd(appFn func() *app) *cobra.Command {
	var input, output string
	var noHeader bool

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Keep the first entry for every channel name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			c := &a.cfg.Dedup
			override(&c.Input, input)
			override(&c.Output, output)
			if noHeader {
				c.Header = false
			}

			return execute(a, cmd, c.Input, c.Output, func() error {
				return a.dedupService().Run(cmd.Context(), c.Input, c.Output)
			})
		},
	}

	pathFlags(cmd, &input, &output)
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "do not write the #EXTM3U header")
	return cmd
}

func newResolveCmd(appFn func() *app) *cobra.Command {
	var input, output, method, cachePath string
	var workers, rateLimit int
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Replace stream URLs with the end of their redirect chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			c := &a.cfg.Resolve
			override(&c.Input, input)
			override(&c.Output, output)
			override(&c.Method, strings.ToUpper(method))
			override(&c.CachePath, cachePath)
			if cmd.Flags().Changed("workers") {
				c.Workers = workers
			}
			if cmd.Flags().Changed("rate-limit") {
				c.RateLimit = rateLimit
			}
			if cmd.Flags().Changed("timeout") {
				c.Timeout = timeout
			}

			return execute(a, cmd, c.Input, c.Output, func() error {
				svc, err := a.resolveService()
				if err != nil {
					return err
				}
				return svc.Run(cmd.Context(), c.Input, c.Output)
			})
		},
	}

	pathFlags(cmd, &input, &output)
	cmd.Flags().StringVar(&method, "method", "", "HTTP method: HEAD or GET")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "URLs resolved in parallel")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "requests per second, 0 for unlimited")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-request timeout")
	cmd.Flags().StringVar(&cachePath, "cache", "", "bbolt file caching resolutions")
	return cmd
}

func newRunCmd(appFn func() *app) *cobra.Command {
	var input, output string
	var stages []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run several stages in memory: one read, one write",
		Example: `  iptv-playlist run -i input.txt -o output.m3u
  iptv-playlist run --stages convert,rewrite,filter,resolve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			c := &a.cfg.Pipeline
			override(&c.Input, input)
			override(&c.Output, output)
			if len(stages) > 0 {
				c.Stages = stages
			}
			for _, st := range c.Stages {
				if !config.ValidStages[st] {
					return fmt.Errorf("unknown stage %q", st)
				}
			}

			return execute(a, cmd, c.Input, c.Output, func() error {
				svc, err := a.pipelineService(c.Stages)
				if err != nil {
					return err
				}
				return svc.Run(cmd.Context(), c.Input, c.Output)
			})
		},
	}

	pathFlags(cmd, &input, &output)
	cmd.Flags().StringSliceVar(&stages, "stages", nil, "comma-separated stage list")
	return cmd
}
