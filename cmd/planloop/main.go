package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is stamped at build time.
var Version = "dev"

type globalFlags struct {
	provider     string
	model        string
	baseURL      string
	maxSteps     int
	logLevel     string
	logFormat    string
	weatherFile  string
	watchWeather bool
	journal      string
	noJournal    bool
	otlpEndpoint string
	otlpProtocol string
	configDir    string
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "planloop",
		Short:         "Run a planning agent that works through tools one step at a time",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.provider, "provider", "", "LLM provider (overrides LLM_PROVIDER)")
	pf.StringVar(&flags.model, "model", "", "model name (overrides <PROVIDER>_MODEL)")
	pf.StringVar(&flags.baseURL, "base-url", "", "API base URL (overrides <PROVIDER>_BASE_URL)")
	pf.IntVar(&flags.maxSteps, "max-steps", 0, "step budget per run (default 8)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&flags.weatherFile, "weather-file", "", "YAML weather table (default: built-in table)")
	pf.BoolVar(&flags.watchWeather, "watch-weather", false, "reload --weather-file when it changes")
	pf.StringVar(&flags.journal, "journal", "", "path of the SQLite run journal")
	pf.BoolVar(&flags.noJournal, "no-journal", false, "do not record runs")
	pf.StringVar(&flags.otlpEndpoint, "otlp-endpoint", "", "export traces to this OTLP collector")
	pf.StringVar(&flags.otlpProtocol, "otlp-protocol", "http", "OTLP protocol: http or grpc")
	pf.StringVar(&flags.configDir, "config-dir", "", "directory holding config.json")

	cmd.AddCommand(runCmd(flags))
	cmd.AddCommand(engineCmd(flags))
	cmd.AddCommand(historyCmd(flags))
	cmd.AddCommand(toolsCmd(flags))
	return cmd
}
