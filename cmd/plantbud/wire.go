package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vthunder/plantbud/internal/catalog"
	"github.com/vthunder/plantbud/internal/config"
	"github.com/vthunder/plantbud/internal/effectors"
	"github.com/vthunder/plantbud/internal/embedding"
	"github.com/vthunder/plantbud/internal/engine"
	"github.com/vthunder/plantbud/internal/gemini"
	"github.com/vthunder/plantbud/internal/history"
	"github.com/vthunder/plantbud/internal/journal"
	"github.com/vthunder/plantbud/internal/logging"
	"github.com/vthunder/plantbud/internal/mem0"
	"github.com/vthunder/plantbud/internal/metrics"
	"github.com/vthunder/plantbud/internal/override"
	"github.com/vthunder/plantbud/internal/schedule"
	"github.com/vthunder/plantbud/internal/sinric"
	"github.com/vthunder/plantbud/internal/status"
	"github.com/vthunder/plantbud/internal/store"
	"github.com/vthunder/plantbud/internal/summarizer"
	"github.com/vthunder/plantbud/internal/vectormem"
)

// semanticMemory is what both memory backends provide
type semanticMemory interface {
	engine.Memory
	status.MemoryCounter
}

// app holds the wired services for one process
type app struct {
	cfg     *config.Config
	db      *store.DB
	journal *journal.Journal
	memory  semanticMemory // nil when no backend is configured
	engine  *engine.Engine
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logging.Warn("main", "close store: %v", err)
		}
	}
}

// openStore opens only the state database, for read-only commands
func openStore(cfg *config.Config) (*store.DB, error) {
	if err := os.MkdirAll(cfg.StatePath, 0755); err != nil {
		return nil, err
	}
	return store.Open(cfg.StatePath)
}

// newApp wires every service the engine needs
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.RequireServices(); err != nil {
		return nil, err
	}
	db, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, db: db, journal: journal.New(cfg.StatePath)}

	sched, err := schedule.New(cfg.Schedule)
	if err != nil {
		a.Close()
		return nil, err
	}
	rules, err := loadRules(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	resolver, err := override.NewResolver(rules)
	if err != nil {
		a.Close()
		return nil, err
	}
	sum, err := summarizer.New(cfg.Thresholds)
	if err != nil {
		a.Close()
		return nil, err
	}

	gen, err := gemini.NewGenAIGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Temperature, cfg.Gemini.MaxTokens)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	requirements := ""
	if cfg.Gemini.RequirementsPath != "" {
		data, err := os.ReadFile(cfg.Gemini.RequirementsPath)
		if err != nil {
			logging.Warn("main", "requirements file unreadable, continuing without it: %v", err)
		} else {
			requirements = string(data)
		}
	}

	hemisphere := history.Hemisphere(cfg.Hemisphere)
	if err := a.openMemory(hemisphere); err != nil {
		a.Close()
		return nil, err
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	devices := sinric.NewClient(cfg.SinricConfig())
	deps := engine.Deps{
		Store:     db,
		Catalog:   catalog.NewOsFolder(cfg.Images.Dir, cfg.Images.MaxBytes),
		Devices:   devices,
		Switcher:  devices,
		Diagnoser: gemini.NewReasoner(gen),
		Notifier:  notifier,
		Journal:   a.journal,
		Metrics:   metrics.Default(),
	}
	var counter status.MemoryCounter
	if a.memory != nil {
		deps.Memory = a.memory
		counter = a.memory
	}
	deps.Status = status.NewReporter(cfg.Status, db, counter, notifier)

	a.engine, err = engine.New(engine.Config{
		Schedule:         sched,
		Resolver:         resolver,
		Summarizer:       sum,
		PlantName:        cfg.PlantName,
		Requirements:     requirements,
		Hemisphere:       hemisphere,
		HistoryWindow:    cfg.HistoryWindow,
		Location:         cfg.Location(),
		CallTimeout:      cfg.Timeouts.Call,
		DiagnosisTimeout: cfg.Timeouts.Diagnosis,
	}, deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openMemory prefers the hosted memory service and falls back to the local
// vector store
func (a *app) openMemory(h history.Hemisphere) error {
	cfg := a.cfg
	switch {
	case cfg.Mem0.APIKey != "":
		client := mem0.NewClient(cfg.Mem0.BaseURL, cfg.Mem0.APIKey, cfg.Mem0.UserID)
		a.memory = mem0.NewPlantMemory(client, h)
		logging.Info("main", "semantic memory: mem0 (user %s)", cfg.Mem0.UserID)
	case cfg.Vector.Enabled:
		embedder := embedding.NewClient(cfg.Vector.OllamaURL, cfg.Vector.Model)
		vs, err := vectormem.Open(cfg.StatePath, embedder, h)
		if err != nil {
			return fmt.Errorf("vector memory: %w", err)
		}
		a.memory = vs
		logging.Info("main", "semantic memory: local vectors (%s)", embedder.Model())
	default:
		logging.Info("main", "semantic memory disabled, using recent analyses only")
	}
	return nil
}

func loadRules(cfg *config.Config) ([]override.Rule, error) {
	if cfg.OverrideRules == "" {
		return override.DefaultRules(), nil
	}
	rules, err := override.LoadRules(cfg.OverrideRules)
	if err != nil {
		return nil, fmt.Errorf("override rules: %w", err)
	}
	return rules, nil
}

// newNotifier fans out to every configured channel. The log is always on.
func newNotifier(cfg *config.Config) (effectors.Notifier, error) {
	multi := effectors.Multi{effectors.LogNotifier{}}
	if cfg.Discord.Token != "" {
		d, err := effectors.NewDiscordNotifier(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("discord: %w", err)
		}
		multi = append(multi, d)
	}
	if cfg.Telegram.Token != "" {
		multi = append(multi, effectors.NewTelegramNotifier(cfg.Telegram.BaseURL, cfg.Telegram.Token, cfg.Telegram.ChatID))
	}
	return multi, nil
}
