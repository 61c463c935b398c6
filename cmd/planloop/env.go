package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/planloop/internal/config"
	"github.com/ChamsBouzaiene/planloop/internal/engine"
	"github.com/ChamsBouzaiene/planloop/internal/journal"
	"github.com/ChamsBouzaiene/planloop/internal/providers"
	"github.com/ChamsBouzaiene/planloop/internal/tools"
	"github.com/ChamsBouzaiene/planloop/internal/tracing"
)

// envNeeds selects which collaborators a command builds.
type envNeeds struct {
	brain   bool
	tools   bool
	journal bool
}

type runtimeEnv struct {
	Config   *config.Config
	Settings providers.Settings
	Brain    engine.Brain
	Tools    *engine.Registry
	Journal  *journal.Store
	Logger   *slog.Logger

	maxSteps     int
	brainTimeout time.Duration
	toolTimeout  time.Duration

	traceHook *tracing.Hook
	closers   []func() error
}

func (r *runtimeEnv) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.Logger.Warn("shutdown", "error", err)
		}
	}
	r.closers = nil
}

// loadConfig layers config.json, the environment and the command-line flags, in that order.
func loadConfig(flags *globalFlags, getenv func(string) string) (*config.Config, *config.Manager, error) {
	var (
		mgr *config.Manager
		err error
	)
	if flags.configDir != "" {
		mgr = config.NewManagerAt(flags.configDir)
	} else if mgr, err = config.NewManager(); err != nil {
		return nil, nil, err
	}

	cfg, err := mgr.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, nil, err
	}

	if flags.maxSteps > 0 {
		cfg.MaxSteps = flags.maxSteps
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}
	if flags.weatherFile != "" {
		cfg.WeatherFile = flags.weatherFile
	}
	if flags.journal != "" {
		cfg.JournalPath = flags.journal
	}
	if flags.otlpEndpoint != "" {
		cfg.OTLPEndpoint = flags.otlpEndpoint
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = mgr.DefaultJournalPath()
	}
	return cfg, mgr, nil
}

// brainSettings resolves the backend from the environment, the config file and the flags.
func brainSettings(cfg *config.Config, flags *globalFlags, getenv func(string) string) providers.Settings {
	lookup := cfg.Getenv(getenv)
	if flags.provider != "" {
		base := lookup
		lookup = func(key string) string {
			if key == "LLM_PROVIDER" {
				return flags.provider
			}
			return base(key)
		}
	}
	s := providers.SettingsFromEnv(lookup)
	if flags.model != "" {
		s.Model = flags.model
	}
	if flags.baseURL != "" {
		s.BaseURL = flags.baseURL
	}
	return s
}

func prepareRuntimeEnv(ctx context.Context, flags *globalFlags, needs envNeeds) (*runtimeEnv, error) {
	cfg, _, err := loadConfig(flags, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	defaults := engine.DefaultAgentConfig()
	env := &runtimeEnv{
		Config:       cfg,
		Logger:       logger,
		maxSteps:     defaults.MaxSteps,
		brainTimeout: defaults.BrainTimeout,
		toolTimeout:  defaults.ToolTimeout,
	}
	if cfg.MaxSteps > 0 {
		env.maxSteps = cfg.MaxSteps
	}
	if cfg.BrainTimeout > 0 {
		env.brainTimeout = cfg.BrainTimeout.Std()
	}
	if cfg.ToolTimeout > 0 {
		env.toolTimeout = cfg.ToolTimeout.Std()
	}

	if err := env.setup(ctx, flags, needs); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func (r *runtimeEnv) setup(ctx context.Context, flags *globalFlags, needs envNeeds) error {
	if needs.brain {
		brain, settings, err := providers.NewBrain(brainSettings(r.Config, flags, os.Getenv))
		if err != nil {
			return fmt.Errorf("configure brain: %w", err)
		}
		r.Brain, r.Settings = brain, settings
		r.Logger.Info("brain configured", "provider", settings.Provider, "model", settings.Model)
	}

	if needs.tools {
		reg, stop, err := tools.NewRegistry(tools.Config{
			WeatherFile:  r.Config.WeatherFile,
			WatchWeather: flags.watchWeather,
			Logger:       r.Logger,
		})
		if err != nil {
			return fmt.Errorf("configure tools: %w", err)
		}
		r.Tools = reg
		r.closers = append(r.closers, stop)
	}

	if needs.journal {
		store, err := journal.Open(ctx, r.Config.JournalPath, r.Logger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		r.Journal = store
		r.closers = append(r.closers, store.Close)
	}

	if needs.brain && r.Config.OTLPEndpoint != "" {
		endpoint, insecure := otlpTarget(r.Config.OTLPEndpoint)
		tp, err := tracing.NewProvider(ctx, tracing.Config{
			Endpoint:       endpoint,
			Protocol:       flags.otlpProtocol,
			Insecure:       insecure,
			ServiceVersion: Version,
		})
		if err != nil {
			return fmt.Errorf("configure tracing: %w", err)
		}
		r.traceHook = tracing.NewHook(tp)
		r.closers = append(r.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tp.Shutdown(ctx)
		})
	}
	return nil
}

// otlpTarget turns an OTEL_EXPORTER_OTLP_ENDPOINT style URL into the host:port
// form the exporters take. Plain http endpoints are dialed without TLS.
func otlpTarget(endpoint string) (string, bool) {
	if rest, ok := strings.CutPrefix(endpoint, "http://"); ok {
		return strings.TrimSuffix(rest, "/"), true
	}
	if rest, ok := strings.CutPrefix(endpoint, "https://"); ok {
		return strings.TrimSuffix(rest, "/"), false
	}
	return endpoint, false
}

func (r *runtimeEnv) hooks() engine.Hooks {
	hooks := engine.Hooks{engine.NewLoggerHook(r.Logger)}
	if r.Journal != nil {
		hooks = append(hooks, r.Journal)
	}
	if r.traceHook != nil {
		hooks = append(hooks, r.traceHook)
	}
	return hooks
}

// NewAgent builds an agent over the configured collaborators. maxSteps <= 0 uses
// the configured budget; a non-nil mem is shared with the new agent.
func (r *runtimeEnv) NewAgent(ctx context.Context, maxSteps int, mem *engine.Memory) (*engine.Agent, error) {
	if r.Brain == nil || r.Tools == nil {
		return nil, errors.New("runtime has no brain or tools configured")
	}
	if maxSteps <= 0 {
		maxSteps = r.maxSteps
	}
	b := engine.NewAgentBuilder().
		WithBrain(r.Brain).
		WithToolRegistry(r.Tools).
		WithMaxSteps(maxSteps).
		WithTimeouts(r.brainTimeout, r.toolTimeout).
		WithLogger(r.Logger).
		WithHooks(r.hooks())
	if mem != nil {
		b = b.WithMemory(mem)
	}
	return b.Build(ctx)
}

type modelChecker interface {
	CheckModel(ctx context.Context) error
}

// CheckModel verifies the configured model is served, for backends that can list models.
func (r *runtimeEnv) CheckModel(ctx context.Context) error {
	mc, ok := r.Brain.(modelChecker)
	if !ok {
		r.Logger.Debug("backend cannot list models, skipping check", "provider", r.Settings.Provider)
		return nil
	}
	if err := mc.CheckModel(ctx); err != nil {
		return err
	}
	r.Logger.Info("model is available", "model", r.Settings.Model)
	return nil
}
