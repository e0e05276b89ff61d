package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"sessionq/internal/banner"
	"sessionq/internal/config"
)

// Version is set at build time with -ldflags.
var Version = "0.1.0"

var (
	cfgFile     string
	headers     []string
	useTUI      bool
	metricsAddr string
	traceOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "sessionq",
	Short: "sessionq - session bandwidth profiler",
	Long: `
sessionq runs a configurable number of end-to-end HTTP sessions against a
site in paced waves and reports how much data each session transferred,
how it splits across resource types, and what that traffic would cost.

It supports two modes:
1. Headless (Default): progress bar and a printed report
2. TUI (--tui): live dashboard that turns into the report view`,
	SilenceUsage: true,
	RunE:         runE,
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString(Version))
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(runCmd, dummyCmd, historyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sessionq.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.Bool("debug", false, "debug logging")
	pf.String("history-path", "", "run history database (default is $HOME/.sessionq/history.db)")
	bindFlag(pf.Lookup("log-level"), "log_level")
	bindFlag(pf.Lookup("debug"), "debug")
	bindFlag(pf.Lookup("history-path"), "history_path")

	addRunFlags(rootCmd)
	addRunFlags(runCmd)
}

// addRunFlags registers the run flags on cmd. Both the root command and
// "run" carry them, so each binds its own flag set at execution time.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntP("attempts", "n", 100, "total sessions to run")
	f.IntP("concurrency", "c", 3, "sessions per wave")
	f.Int("delay-min", 2000, "minimum pause between waves (ms)")
	f.Int("delay-max", 7000, "maximum pause between waves (ms)")
	f.StringP("url", "u", "", "target URL for a one-step journey")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Bool("assets", true, "fetch stylesheets, scripts and images referenced by pages")
	f.Int("max-assets", 50, "maximum assets fetched per page")
	f.Float64("asset-rate", 20, "asset requests per second per session (0 = unlimited)")
	f.String("success-marker", "", "text the final page must contain for a session to succeed")
	f.String("user-agent", "", "User-Agent header (default sessionq/<version>)")
	f.StringSliceVarP(&headers, "header", "H", []string{}, "HTTP header (e.g. \"Key: Value\")")
	f.String("proxy", "", "single egress proxy URL for all session traffic")
	f.StringP("out", "o", "", "output filename prefix for JSON/YAML/CSV reports")
	f.String("currency", "BRL", "local currency for cost estimates")
	f.Float64("exchange-rate", 5.5, "USD to local currency rate")

	f.BoolVar(&useTUI, "tui", false, "show the live terminal UI")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (e.g. :9090)")
	f.BoolVar(&traceOut, "trace", false, "print OpenTelemetry spans to stdout")
}

var runFlagKeys = map[string]string{
	"attempts":       "total_attempts",
	"concurrency":    "concurrency",
	"delay-min":      "inter_batch_delay.min_ms",
	"delay-max":      "inter_batch_delay.max_ms",
	"url":            "target_url",
	"timeout":        "timeout_sec",
	"assets":         "fetch_assets",
	"max-assets":     "max_assets_per_page",
	"asset-rate":     "asset_rate",
	"success-marker": "success_marker",
	"user-agent":     "user_agent",
	"proxy":          "proxy",
	"out":            "out",
	"currency":       "currency",
	"exchange-rate":  "exchange_rate",
}

// bindRunFlags binds the executing command's run flags into viper.
func bindRunFlags(cmd *cobra.Command) {
	for name, key := range runFlagKeys {
		bindFlag(cmd.Flags().Lookup(name), key)
	}
}

func bindFlag(flag *pflag.Flag, key string) {
	if flag == nil {
		return
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag.Name, err))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".sessionq")
		}
	}
	viper.SetEnvPrefix("SESSIONQ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "config file %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
	}
}

// loadConfig reads the merged configuration and applies -H headers.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}
	if len(headers) > 0 && cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	for _, h := range headers {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 {
			return config.Config{}, fmt.Errorf("header %q: expected \"Key: Value\"", h)
		}
		cfg.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return cfg, nil
}
