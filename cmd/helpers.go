package cmd

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/handoverhq/handover/internal/config"
	"github.com/handoverhq/handover/internal/llm"
	"github.com/handoverhq/handover/internal/logging"
	"github.com/handoverhq/handover/internal/tracker"
)

// loadConfig loads and validates the config, honoring the root --config
// flag and the CLI > env > YAML > defaults precedence (env and YAML are
// overlaid inside config.Load; CLI flags are overlaid by each command
// after this call).
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.Verbose = verbose
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createProvider builds the rate-limited LLM provider for cfg, applying
// analysis.concurrency (or the provider-family default) as the rate
// limiter's slot-pool width.
func createProvider(cfg *config.Config) (llm.Provider, error) {
	base, err := llm.NewProvider(string(cfg.Provider), cfg.Model, cfg.APIKeyEnv, cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Analysis.Concurrency
	if concurrency <= 0 {
		if cfg.Provider == config.ProviderOllama {
			concurrency = llm.DefaultLocalConcurrency
		} else {
			concurrency = llm.DefaultCloudConcurrency
		}
	}
	return llm.NewRateLimitedProvider(base, concurrency), nil
}

// newLogger builds the run's Logger: debug console level under --verbose,
// warn otherwise, both teeing to .handover/logs/handover.log.
func newLogger() (*logging.Logger, error) {
	logCfg := logging.DefaultConfig()
	if !verbose {
		logCfg.ConsoleLevel = logging.LevelFromString("warn")
	}
	return logging.New(logCfg)
}

// newTracker returns a Tracker registered against the default Prometheus
// registerer, so the cost/token gauges are scrapeable by anything that
// exposes /metrics in front of this CLI.
func newTracker() *tracker.Tracker {
	return tracker.New(prometheus.DefaultRegisterer)
}

func workingDir() (string, error) {
	return os.Getwd()
}
