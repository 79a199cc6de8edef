// Package engine runs the plant's decision cycle and the interval loop that
// triggers it. A cycle's outcome is recorded for evaluation by the next one.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vthunder/plantbud/internal/catalog"
	"github.com/vthunder/plantbud/internal/diagnosis"
	"github.com/vthunder/plantbud/internal/effectors"
	"github.com/vthunder/plantbud/internal/gemini"
	"github.com/vthunder/plantbud/internal/history"
	"github.com/vthunder/plantbud/internal/journal"
	"github.com/vthunder/plantbud/internal/learning"
	"github.com/vthunder/plantbud/internal/logging"
	"github.com/vthunder/plantbud/internal/metrics"
	"github.com/vthunder/plantbud/internal/override"
	"github.com/vthunder/plantbud/internal/schedule"
	"github.com/vthunder/plantbud/internal/selector"
	"github.com/vthunder/plantbud/internal/store"
	"github.com/vthunder/plantbud/internal/summarizer"
	"github.com/vthunder/plantbud/internal/types"
)

// Store is the persistence one cycle reads and appends to
type Store interface {
	selector.Ledger
	history.RowReader
	AppendProcessed(ctx context.Context, id string) error
	AppendAnalysis(ctx context.Context, r types.HistoricalRecord) error
	LatestReflection(ctx context.Context) (*types.ReflectionRecord, error)
	SetReflectionOutcome(ctx context.Context, id string, outcome types.Outcome) (bool, error)
	SaveReflection(ctx context.Context, r types.ReflectionRecord) error
	AppendDeviceReading(ctx context.Context, r store.DeviceReading) error
	RecordCycle(ctx context.Context, c store.CycleRecord) error
}

// Catalog lists and opens photos
type Catalog interface {
	selector.Catalog
	Open(ctx context.Context, item types.WorkItem) ([]byte, error)
}

// Devices reports device state and the environment reading
type Devices interface {
	ListDevices(ctx context.Context) ([]types.DeviceState, error)
	Reading(devices []types.DeviceState) types.EnvironmentReading
}

// Diagnoser is the reasoning service
type Diagnoser interface {
	Diagnose(ctx context.Context, req gemini.Request) (*diagnosis.Diagnosis, error)
}

// Memory is the semantic memory written after each diagnosis
type Memory interface {
	history.Searcher
	Remember(ctx context.Context, r types.HistoricalRecord) error
}

// StatusChecker sends the proactive daily messages
type StatusChecker interface {
	Check(ctx context.Context, now time.Time, env types.EnvironmentReading, a summarizer.Assessment, devices []types.DeviceState) ([]string, error)
}

// Deps are the collaborators. Memory, Status, Journal and Metrics are optional.
type Deps struct {
	Store     Store
	Catalog   Catalog
	Devices   Devices
	Switcher  effectors.Switcher
	Diagnoser Diagnoser
	Notifier  effectors.Notifier
	Memory    Memory
	Status    StatusChecker
	Journal   *journal.Journal
	Metrics   *metrics.Metrics
}

// Config is the cycle policy
type Config struct {
	Schedule   *schedule.Engine
	Resolver   *override.Resolver
	Summarizer *summarizer.Summarizer

	PlantName        string
	Requirements     string // care requirements included in the prompt
	Hemisphere       history.Hemisphere
	HistoryWindow    int
	Location         *time.Location
	CallTimeout      time.Duration
	DiagnosisTimeout time.Duration
}

// Engine runs decision cycles. Cycles are serialized; an overlapping call
// returns a skipped result.
type Engine struct {
	cfg      Config
	deps     Deps
	selector *selector.Selector
	history  *history.Adapter
	effector *effectors.DeviceEffector

	mu sync.Mutex
}

// New checks the wiring and builds an engine
func New(cfg Config, deps Deps) (*Engine, error) {
	var missing []string
	for name, ok := range map[string]bool{
		"schedule":   cfg.Schedule != nil,
		"resolver":   cfg.Resolver != nil,
		"summarizer": cfg.Summarizer != nil,
		"store":      deps.Store != nil,
		"catalog":    deps.Catalog != nil,
		"devices":    deps.Devices != nil,
		"switcher":   deps.Switcher != nil,
		"diagnoser":  deps.Diagnoser != nil,
		"notifier":   deps.Notifier != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: engine missing %s", types.ErrConfiguration, strings.Join(missing, ", "))
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = history.DefaultWindow
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.DiagnosisTimeout <= 0 {
		cfg.DiagnosisTimeout = 90 * time.Second
	}
	if cfg.Hemisphere == "" {
		cfg.Hemisphere = history.Southern
	}

	var searcher history.Searcher
	if deps.Memory != nil {
		searcher = deps.Memory
	}
	return &Engine{
		cfg:      cfg,
		deps:     deps,
		selector: selector.New(deps.Catalog, deps.Store),
		history:  history.NewAdapter(deps.Store, searcher),
		effector: effectors.NewDeviceEffector(deps.Switcher),
	}, nil
}

// cycle carries the per-cycle state between stages
type cycle struct {
	res        *CycleResult
	now        time.Time
	devices    []types.DeviceState
	env        types.EnvironmentReading
	assessment summarizer.Assessment
	schedule   []types.ScheduleDecision
	item       types.WorkItem
	diag       *diagnosis.Diagnosis
	record     types.HistoricalRecord
}

// RunCycle runs one cycle at now. It never returns an error: failures are
// logged, notified and reported in the result.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) (res *CycleResult) {
	res = &CycleResult{
		ID:        ulid.Make().String(),
		StartedAt: now,
		Status:    StatusOK,
		Decisions: []types.Decision{},
	}
	if !e.mu.TryLock() {
		logging.Warn("engine", "cycle already running, skipping")
		res.Status = StatusSkipped
		res.FinishedAt = now
		return res
	}
	defer e.mu.Unlock()

	c := &cycle{res: res, now: now.In(e.cfg.Location)}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.degrade(fmt.Errorf("cycle panic: %v", r))
			res.Status = StatusAborted
		}
		e.finish(ctx, c, time.Since(start))
	}()

	logging.Info("engine", "cycle %s at %s", res.ID, c.now.Format("2006-01-02 15:04"))

	if !e.readDevices(ctx, c) {
		return res
	}
	found, ok := e.selectItem(ctx, c)
	if !ok {
		return res
	}

	decisions := e.scheduleOnly(c)
	if found {
		digest := e.buildContext(ctx, c)
		res.Digest = &digest
		if e.diagnose(ctx, c, digest) {
			decisions = e.decide(ctx, c)
		}
	}
	res.Decisions = decisions

	e.actuate(ctx, c, decisions)
	if c.diag != nil {
		e.notifyDiagnosis(ctx, c)
		e.persist(ctx, c, decisions)
	}
	return res
}

// readDevices reads device state and the schedule. Device failures degrade
// the cycle; an invalid hour aborts it.
func (e *Engine) readDevices(ctx context.Context, c *cycle) bool {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	devices, err := e.deps.Devices.ListDevices(cctx)
	cancel()
	if err != nil {
		e.fail(ctx, c, types.StageDevices, "", err)
	}
	c.devices = devices
	c.env = e.deps.Devices.Reading(devices)
	c.assessment = e.cfg.Summarizer.Assess(c.env)

	sched, err := e.cfg.Schedule.ScheduleFor(c.now.Hour())
	if err != nil {
		e.abort(ctx, c, types.StageSelection, err)
		return false
	}
	c.schedule = sched

	reading := store.DeviceReading{
		Timestamp:   c.now,
		Temperature: c.env.Temperature,
		Humidity:    c.env.Humidity,
		Devices:     devices,
		Comments:    scheduleComments(sched, devices),
	}
	if err := e.deps.Store.AppendDeviceReading(ctx, reading); err != nil {
		e.fail(ctx, c, types.StagePersistence, "", fmt.Errorf("device reading: %w", err))
	}
	return true
}

// selectItem picks the next photo. ok is false when the cycle must abort.
func (e *Engine) selectItem(ctx context.Context, c *cycle) (found, ok bool) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	item, found, err := e.selector.Next(cctx)
	if err != nil {
		e.abort(ctx, c, types.StageSelection, err)
		return false, false
	}
	if n, err := e.selector.Pending(cctx); err == nil {
		e.deps.Metrics.SetPending(n)
	}
	if !found {
		logging.Info("engine", "no new photos, applying schedule")
		e.journal(journal.Entry{Type: journal.EntrySelection, CycleID: c.res.ID, Summary: "none"})
		return false, true
	}
	c.item = item
	c.res.Item = &item
	logging.Info("engine", "selected %s", item.ID)
	e.journal(journal.Entry{Type: journal.EntrySelection, CycleID: c.res.ID, Summary: item.ID})
	return true, true
}

// buildContext loads history and summarizes it. Failures yield the empty digest.
func (e *Engine) buildContext(ctx context.Context, c *cycle) types.ContextDigest {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	query := history.BuildQuery(c.env, c.now, e.cfg.Hemisphere)
	sr, err := e.history.LoadBySemanticQuery(cctx, query, e.cfg.HistoryWindow)
	if err != nil {
		e.fail(ctx, c, types.StageContext, "", err)
		return e.cfg.Summarizer.Summarize(nil)
	}
	digest := e.cfg.Summarizer.SummarizeFrom(sr.Records, sr.Source)
	logging.Debug("engine", "digest from %s: %d records", digest.Source, digest.RecordCount)
	return digest
}

// diagnose opens the photo and asks the reasoning service. On failure the
// cycle falls back to the schedule.
func (e *Engine) diagnose(ctx context.Context, c *cycle, digest types.ContextDigest) bool {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	image, err := e.deps.Catalog.Open(cctx, c.item)
	cancel()
	if err != nil {
		var tooLarge *catalog.ErrTooLarge
		if errors.As(err, &tooLarge) {
			// never diagnosable; record it so selection moves on
			if perr := e.deps.Store.AppendProcessed(ctx, c.item.ID); perr != nil {
				e.fail(ctx, c, types.StagePersistence, "", perr)
			}
		}
		e.fail(ctx, c, types.StageDiagnosis, "", fmt.Errorf("%w: open %s: %w", types.ErrDiagnosisUnavailable, c.item.ID, err))
		return false
	}

	req := gemini.Request{
		Item:         c.item,
		Image:        image,
		Digest:       digest,
		Environment:  c.env,
		Assessment:   c.assessment.String(),
		Devices:      c.devices,
		Requirements: e.cfg.Requirements,
		PlantName:    e.cfg.PlantName,
		Now:          c.now,
	}
	dctx, cancel := context.WithTimeout(ctx, e.cfg.DiagnosisTimeout)
	defer cancel()
	d, err := e.deps.Diagnoser.Diagnose(dctx, req)
	if err != nil {
		e.fail(ctx, c, types.StageDiagnosis, "", err)
		return false
	}
	c.diag = d
	c.res.Health = d.Health()
	c.record = d.Record(c.item.ID, c.env)
	c.record.Timestamp = c.now
	e.journal(journal.Entry{
		Type:      journal.EntryDiagnosis,
		CycleID:   c.res.ID,
		Summary:   d.Health(),
		Reasoning: d.Summary.Reasoning.String(),
		Outcome:   d.ActionPlan(),
	})
	return true
}

// decide resolves overrides and applies the learning loop
func (e *Engine) decide(ctx context.Context, c *cycle) []types.Decision {
	resolved := e.cfg.Resolver.Resolve(c.schedule, c.diag.ActionPlan())

	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	prev, err := e.deps.Store.LatestReflection(cctx)
	if err != nil {
		e.fail(ctx, c, types.StageEvaluation, "", err)
		return resolved
	}

	eval, refined, err := learning.Apply(c.diag.Health(), prev, resolved)
	if err != nil {
		e.fail(ctx, c, types.StageEvaluation, "", err)
	}
	c.res.Evaluation = &eval

	if prev != nil && prev.Outcome == types.OutcomeUnset {
		if outcome := eval.Effectiveness.Outcome(); outcome != types.OutcomeUnset {
			if _, err := e.deps.Store.SetReflectionOutcome(cctx, prev.ID, outcome); err != nil {
				e.fail(ctx, c, types.StagePersistence, "", fmt.Errorf("reflection outcome: %w", err))
			}
		}
		if e.deps.Journal != nil {
			e.deps.Journal.LogEvaluation(c.res.ID, prev.ID, eval)
		}
	}
	return refined
}

func (e *Engine) scheduleOnly(c *cycle) []types.Decision {
	out := make([]types.Decision, 0, len(c.schedule))
	for _, s := range c.schedule {
		out = append(out, types.Decision{Actuator: s.Actuator, DesiredState: s.DesiredState, Reason: s.Reason})
	}
	return out
}

// actuate switches devices. Each actuator fails independently.
func (e *Engine) actuate(ctx context.Context, c *cycle, decisions []types.Decision) {
	for _, d := range decisions {
		e.deps.Metrics.ObserveDecision(d)
		if e.deps.Journal != nil {
			e.deps.Journal.LogDecision(c.res.ID, d)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	changed, errs := e.effector.Apply(cctx, decisions, c.devices)
	c.res.Actuated = changed
	c.devices = applied(c.devices, decisions, changed)

	for _, a := range changed {
		e.deps.Metrics.ObserveActuation(a, nil)
		if e.deps.Journal != nil {
			e.deps.Journal.LogActuation(c.res.ID, a, desired(decisions, a), nil)
		}
	}
	for _, err := range errs {
		var se *types.StageError
		if errors.As(err, &se) {
			e.deps.Metrics.ObserveActuation(se.Actuator, err)
			if e.deps.Journal != nil {
				e.deps.Journal.LogActuation(c.res.ID, se.Actuator, desired(decisions, se.Actuator), err)
			}
		}
		e.report(ctx, c, err)
	}
}

// notifyDiagnosis sends critical alerts urgently, otherwise the persona message
func (e *Engine) notifyDiagnosis(ctx context.Context, c *cycle) {
	text, urgency := c.diag.Message, types.UrgencyNormal
	if alerts := c.diag.CriticalAlerts(); alerts != "" {
		text = "🚨 Critical alert: " + alerts
		if c.diag.Message != "" {
			text += "\n\n" + c.diag.Message
		}
		urgency = types.UrgencyHigh
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	if e.send(ctx, c, text, urgency) {
		c.res.Notified = append(c.res.Notified, "diagnosis:"+string(urgency))
	}
}

// persist records the analysis, marks the photo processed and writes the
// reflection and semantic memory.
func (e *Engine) persist(ctx context.Context, c *cycle, decisions []types.Decision) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	if err := e.deps.Store.AppendAnalysis(cctx, c.record); err != nil {
		e.fail(ctx, c, types.StagePersistence, "", fmt.Errorf("analysis: %w", err))
	}
	if err := e.deps.Store.AppendProcessed(cctx, c.item.ID); err != nil {
		e.fail(ctx, c, types.StagePersistence, "", fmt.Errorf("ledger: %w", err))
	}

	summary := summarizer.FirstSentence(c.diag.Health())
	refl := learning.NewReflection(ulid.Make().String(), c.now, c.item.ID, summary, decisions)
	if err := e.deps.Store.SaveReflection(cctx, refl); err != nil {
		e.fail(ctx, c, types.StagePersistence, "", fmt.Errorf("reflection: %w", err))
	}

	if e.deps.Memory != nil {
		if err := e.deps.Memory.Remember(cctx, c.record); err != nil {
			// the analysis log still holds the record
			logging.Warn("engine", "memory write-back failed: %v", err)
			e.deps.Metrics.IncStageFailure(types.StageMemory)
			c.res.degrade(&types.StageError{Stage: types.StageMemory, Err: err})
		}
	}
}

// finish records the cycle and runs the status checks
func (e *Engine) finish(ctx context.Context, c *cycle, elapsed time.Duration) {
	res := c.res
	if e.deps.Status != nil && res.Status != StatusAborted {
		sent, err := e.deps.Status.Check(ctx, c.now, c.env, c.assessment, c.devices)
		if err != nil {
			logging.Warn("engine", "status messages: %v", err)
			res.degrade(&types.StageError{Stage: types.StageStatus, Err: err})
		}
		res.Notified = append(res.Notified, sent...)
	}

	res.FinishedAt = res.StartedAt.Add(elapsed)
	rec := store.CycleRecord{
		ID:         res.ID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Status:     string(res.Status),
		Errors:     res.Errors,
	}
	if res.Item != nil {
		rec.SubjectID = res.Item.ID
	}
	if err := e.deps.Store.RecordCycle(ctx, rec); err != nil {
		logging.Error("engine", "record cycle %s: %v", res.ID, err)
	}
	e.deps.Metrics.ObserveCycle(string(res.Status), elapsed)
	e.journal(journal.Entry{
		Type:    journal.EntryCycle,
		CycleID: res.ID,
		Summary: string(res.Status),
		Outcome: strings.Join(res.Errors, "; "),
		Data: map[string]any{
			"decisions": res.Decisions,
			"actuated":  res.Actuated,
		},
	})
	logging.Info("engine", "cycle %s %s in %s (%d errors)", res.ID, res.Status, elapsed.Round(time.Millisecond), len(res.Errors))
}

// fail absorbs a stage error and tells the owner
func (e *Engine) fail(ctx context.Context, c *cycle, stage types.Stage, actuator types.Actuator, err error) {
	e.report(ctx, c, &types.StageError{Stage: stage, Actuator: actuator, Err: err})
}

func (e *Engine) report(ctx context.Context, c *cycle, err error) {
	var stage types.Stage
	var se *types.StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	logging.Error("engine", "%v", err)
	c.res.degrade(err)
	e.deps.Metrics.IncStageFailure(stage)
	if e.deps.Journal != nil {
		e.deps.Journal.LogError(c.res.ID, err)
	}
	e.send(ctx, c, effectors.ErrorMessage(stage, err), types.UrgencyNormal)
}

func (e *Engine) abort(ctx context.Context, c *cycle, stage types.Stage, err error) {
	e.fail(ctx, c, stage, "", err)
	c.res.Status = StatusAborted
}

// send notifies the owner. A failed notification is logged and recorded but
// never notified again.
func (e *Engine) send(ctx context.Context, c *cycle, text string, urgency types.Urgency) bool {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	if err := e.deps.Notifier.Notify(cctx, text, urgency); err != nil {
		logging.Error("engine", "notification failed: %v", err)
		e.deps.Metrics.IncStageFailure(types.StageNotification)
		c.res.degrade(&types.StageError{Stage: types.StageNotification, Err: err})
		return false
	}
	return true
}

func (e *Engine) journal(entry journal.Entry) {
	if e.deps.Journal == nil {
		return
	}
	if err := e.deps.Journal.Log(entry); err != nil {
		logging.Warn("engine", "journal: %v", err)
	}
}

func desired(decisions []types.Decision, a types.Actuator) types.PowerState {
	for _, d := range decisions {
		if d.Actuator == a {
			return d.DesiredState
		}
	}
	return ""
}

// applied returns a copy of devices with switched actuators in their new state
func applied(devices []types.DeviceState, decisions []types.Decision, changed []types.Actuator) []types.DeviceState {
	if len(changed) == 0 {
		return devices
	}
	out := make([]types.DeviceState, len(devices))
	copy(out, devices)
	for _, a := range changed {
		power := "Off"
		if desired(decisions, a) == types.PowerOn {
			power = "On"
		}
		for i := range out {
			if out[i].Actuator == a {
				out[i].PowerState = power
			}
		}
	}
	return out
}

// scheduleComments notes devices whose state disagrees with the schedule
func scheduleComments(sched []types.ScheduleDecision, devices []types.DeviceState) []string {
	want := make(map[types.Actuator]types.PowerState, len(sched))
	for _, s := range sched {
		want[s.Actuator] = s.DesiredState
	}
	var out []string
	for _, d := range devices {
		w, ok := want[d.Actuator]
		if !ok {
			continue
		}
		if strings.EqualFold(d.PowerState, string(w)) {
			continue
		}
		out = append(out, fmt.Sprintf("%s should be %s", d.Name, strings.ToUpper(string(w))))
	}
	return out
}
