// plantbud-mcp exposes the plant's schedule, history and decisions as MCP
// tools, read from the same state directory the engine writes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vthunder/plantbud/internal/config"
	"github.com/vthunder/plantbud/internal/history"
	"github.com/vthunder/plantbud/internal/journal"
	"github.com/vthunder/plantbud/internal/logging"
	"github.com/vthunder/plantbud/internal/override"
	"github.com/vthunder/plantbud/internal/schedule"
	"github.com/vthunder/plantbud/internal/store"
	"github.com/vthunder/plantbud/internal/summarizer"
)

type tools struct {
	cfg      *config.Config
	db       *store.DB
	journal  *journal.Journal
	schedule *schedule.Engine
	resolver *override.Resolver
	sum      *summarizer.Summarizer
}

func main() {
	cfg, err := config.Load(os.Getenv("PLANTBUD_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Debug)
	defer logging.Sync()

	t, err := newTools(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer t.db.Close()

	s := server.NewMCPServer(
		"plantbud-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(scheduleTool(), t.handleSchedule)
	s.AddTool(historyTool(), t.handleHistory)
	s.AddTool(reflectionTool(), t.handleReflection)
	s.AddTool(journalTool(), t.handleJournal)
	s.AddTool(overrideTool(), t.handleOverride)

	logging.Info("mcp", "serving state from %s", cfg.StatePath)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func newTools(cfg *config.Config) (*tools, error) {
	if err := os.MkdirAll(cfg.StatePath, 0755); err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.StatePath)
	if err != nil {
		return nil, err
	}
	sched, err := schedule.New(cfg.Schedule)
	if err != nil {
		db.Close()
		return nil, err
	}
	rules := override.DefaultRules()
	if cfg.OverrideRules != "" {
		if rules, err = override.LoadRules(cfg.OverrideRules); err != nil {
			db.Close()
			return nil, err
		}
	}
	resolver, err := override.NewResolver(rules)
	if err != nil {
		db.Close()
		return nil, err
	}
	sum, err := summarizer.New(cfg.Thresholds)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &tools{
		cfg:      cfg,
		db:       db,
		journal:  journal.New(cfg.StatePath),
		schedule: sched,
		resolver: resolver,
		sum:      sum,
	}, nil
}

func intArg(args map[string]any, name string, def int) int {
	if v, ok := args[name].(float64); ok {
		return int(v)
	}
	return def
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func scheduleTool() mcp.Tool {
	return mcp.NewTool("plant_schedule",
		mcp.WithDescription("Scheduled lighting and aeration states for an hour of the day, before any diagnosis override."),
		mcp.WithNumber("hour",
			mcp.Description("Hour of day 0-23 in the plant's time zone. Default: current hour"),
		),
	)
}

func (t *tools) handleSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	hour := intArg(args, "hour", time.Now().In(t.cfg.Location()).Hour())

	decisions, err := t.schedule.ScheduleFor(hour)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(decisions)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("plant_history",
		mcp.WithDescription("Recent plant diagnoses with the context digest the engine would build from them."),
		mcp.WithNumber("limit",
			mcp.Description("Number of analyses. Default: configured history window"),
		),
	)
}

func (t *tools) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	limit := intArg(args, "limit", t.cfg.HistoryWindow)

	records, err := history.NewAdapter(t.db, nil).LoadRecent(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"records": records,
		"digest":  t.sum.Summarize(records),
	})
}

func reflectionTool() mcp.Tool {
	return mcp.NewTool("plant_last_reflection",
		mcp.WithDescription("The decisions of the most recent diagnosed cycle and, once evaluated, their outcome."),
	)
}

func (t *tools) handleReflection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refl, err := t.db.LatestReflection(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read reflection: %v", err)), nil
	}
	if refl == nil {
		return mcp.NewToolResultText("No reflections recorded yet."), nil
	}
	return jsonResult(refl)
}

func journalTool() mcp.Tool {
	return mcp.NewTool("plant_journal",
		mcp.WithDescription("Recent engine journal entries: cycles, decisions, actuations, evaluations and errors."),
		mcp.WithNumber("limit",
			mcp.Description("Number of entries. Default: 20"),
		),
		mcp.WithString("type",
			mcp.Description("Only entries of this type (cycle, selection, diagnosis, decision, actuation, evaluation, notify, error)"),
		),
	)
}

func (t *tools) handleJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	limit := intArg(args, "limit", 20)
	kind, _ := args["type"].(string)

	entries, err := t.journal.Recent(0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read journal: %v", err)), nil
	}
	var out []journal.Entry
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		if kind != "" && string(entries[i].Type) != kind {
			continue
		}
		out = append(out, entries[i])
	}
	// oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return jsonResult(out)
}

func overrideTool() mcp.Tool {
	return mcp.NewTool("plant_override_check",
		mcp.WithDescription("Show which actuator overrides an action plan text would trigger against the schedule for an hour."),
		mcp.WithString("action_plan",
			mcp.Required(),
			mcp.Description("Recommended action text, as a diagnosis would return it"),
		),
		mcp.WithNumber("hour",
			mcp.Description("Hour of day 0-23. Default: current hour"),
		),
	)
}

func (t *tools) handleOverride(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	plan, _ := args["action_plan"].(string)
	if strings.TrimSpace(plan) == "" {
		return mcp.NewToolResultError("action_plan is required"), nil
	}
	hour := intArg(args, "hour", time.Now().In(t.cfg.Location()).Hour())

	sched, err := t.schedule.ScheduleFor(hour)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(t.resolver.Resolve(sched, plan))
}
