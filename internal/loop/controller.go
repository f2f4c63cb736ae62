// Package loop implements the watch loop: it subscribes to workspace file
// events, debounces qualifying changes and runs tests through a gate that
// allows one run at a time.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/danieljhkim/testloop/internal/classify"
	"github.com/danieljhkim/testloop/internal/clock"
	"github.com/danieljhkim/testloop/internal/config"
	"github.com/danieljhkim/testloop/internal/console"
	"github.com/danieljhkim/testloop/internal/debounce"
	"github.com/danieljhkim/testloop/internal/diagnostics"
	"github.com/danieljhkim/testloop/internal/fswatch"
	"github.com/danieljhkim/testloop/internal/gate"
	"github.com/danieljhkim/testloop/internal/metrics"
	"github.com/danieljhkim/testloop/internal/status"
	"github.com/danieljhkim/testloop/internal/testrun"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Command names registered with the console.
const (
	ToggleCommand = status.ToggleCommand
	RunNowCommand = "test-loop.runNow"
)

// Run reasons.
const (
	ReasonWatchStart = "watch-start"
	ReasonManual     = "manual"
)

// WarnUnableToRun is shown when neither test command could be invoked.
const WarnUnableToRun = "Unable to start test run. Ensure a test command is configured."

// State is the controller lifecycle state.
type State int

const (
	StateIdle State = iota
	StateWatching
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Releaser is any owned resource the controller releases on dispose.
type Releaser interface {
	Release()
}

// Deps are the controller's collaborators. Clock, Config, Watcher,
// Diagnostics, Runner, Indicator and Notifier are required.
type Deps struct {
	Clock       clock.Clock
	Config      *config.Store
	Watcher     fswatch.Watcher
	Diagnostics diagnostics.Source
	Runner      testrun.Runner
	Indicator   status.Indicator
	Notifier    status.Notifier

	// Commands, when set, receives the toggle and run-now commands.
	Commands *console.Registry

	// WatchConfig, when set, subscribes to configuration changes. The
	// controller owns the returned subscription.
	WatchConfig func(onChange func()) (Releaser, error)

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Controller is the watch loop state machine. All methods are safe for
// concurrent use.
type Controller struct {
	ctx  context.Context
	root string

	clock       clock.Clock
	cfg         *config.Store
	watcher     fswatch.Watcher
	diagnostics diagnostics.Source
	runner      testrun.Runner
	indicator   status.Indicator
	notifier    status.Notifier
	metrics     *metrics.Metrics
	log         *zap.Logger

	gate       *gate.Gate
	scheduler  *debounce.Scheduler
	classifier atomic.Pointer[classify.Classifier]

	mu         sync.Mutex
	state      State
	sub        fswatch.Subscription
	regs       []fswatch.Registration
	startTimer clock.Timer
	owned      []Releaser
}

// New creates an idle controller for the workspace at root. ctx bounds
// every test and diagnostics command the controller invokes.
func New(ctx context.Context, root string, deps Deps) (*Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(nil)
	}

	c := &Controller{
		ctx:         ctx,
		root:        root,
		clock:       deps.Clock,
		cfg:         deps.Config,
		watcher:     deps.Watcher,
		diagnostics: deps.Diagnostics,
		runner:      deps.Runner,
		indicator:   deps.Indicator,
		notifier:    deps.Notifier,
		metrics:     m,
		log:         log.Named("loop"),
		gate:        gate.New(deps.Clock),
		scheduler:   debounce.New(deps.Clock),
		state:       StateIdle,
	}
	c.classifier.Store(classify.New(c.cfg.Snapshot().IgnorePatterns))
	c.indicator.SetText(status.TextOff)

	if deps.Commands != nil {
		c.owned = append(c.owned,
			deps.Commands.Register(ToggleCommand, c.toggleCommand, "t", "toggle"),
			deps.Commands.Register(RunNowCommand, c.ManualRun, "r", "run"),
		)
	}
	if deps.WatchConfig != nil {
		sub, err := deps.WatchConfig(c.OnConfigurationChanged)
		if err != nil {
			c.log.Debug("configuration changes will not be reloaded", zap.Error(err))
		} else {
			c.owned = append(c.owned, sub)
		}
	}
	return c, nil
}

func (d Deps) validate() error {
	var missing []string
	if d.Clock == nil {
		missing = append(missing, "clock")
	}
	if d.Config == nil {
		missing = append(missing, "config")
	}
	if d.Watcher == nil {
		missing = append(missing, "watcher")
	}
	if d.Diagnostics == nil {
		missing = append(missing, "diagnostics")
	}
	if d.Runner == nil {
		missing = append(missing, "runner")
	}
	if d.Indicator == nil {
		missing = append(missing, "indicator")
	}
	if d.Notifier == nil {
		missing = append(missing, "notifier")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingDependency, missing)
	}
	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Root returns the watched workspace root.
func (c *Controller) Root() string {
	return c.root
}

// Classifier returns the classifier built from the current ignore patterns.
func (c *Controller) Classifier() *classify.Classifier {
	return c.classifier.Load()
}

// Toggle starts watching when idle and stops when watching.
func (c *Controller) Toggle() error {
	switch c.State() {
	case StateIdle:
		return c.Start()
	case StateWatching:
		c.Stop()
		return nil
	default:
		return ErrDisposed
	}
}

func (c *Controller) toggleCommand() {
	if err := c.Toggle(); err != nil {
		c.log.Warn("toggle failed", zap.Error(err))
	}
}

// Start subscribes to workspace file events and schedules an immediate
// run. It is a no-op while already watching. On subscription failure the
// controller stays idle and the error is returned.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateWatching:
		return nil
	case StateDisposed:
		return ErrDisposed
	}

	snap := c.cfg.Snapshot()
	c.state = StateWatching
	c.indicator.SetText(status.TextOn)

	sub, err := c.watcher.Subscribe(c.root, snap.Glob, false)
	if err != nil {
		c.state = StateIdle
		c.indicator.SetText(status.TextOff)
		return fmt.Errorf("failed to watch %s: %w", c.root, err)
	}
	c.sub = sub
	c.regs = []fswatch.Registration{
		sub.OnChange(c.OnChangeEvent),
		sub.OnCreate(c.OnChangeEvent),
		sub.OnDelete(c.OnChangeEvent),
	}
	c.startTimer = c.clock.AfterFunc(0, func() { c.AttemptRun(ReasonWatchStart) })
	c.metrics.Watching.Set(1)

	c.log.Info("watching", zap.String("root", c.root), zap.String("glob", snap.Glob))
	return nil
}

// Stop releases the subscription and cancels pending timers. It is a no-op
// unless watching. A run already in progress completes.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateWatching {
		return
	}
	c.state = StateIdle
	c.indicator.SetText(status.TextOff)
	c.stopLocked()
	c.metrics.Watching.Set(0)

	c.log.Info("stopped watching", zap.String("root", c.root))
}

func (c *Controller) stopLocked() {
	for _, r := range c.regs {
		r.Release()
	}
	c.regs = nil
	if c.sub != nil {
		c.sub.Release()
		c.sub = nil
	}
	if c.startTimer != nil {
		c.startTimer.Stop()
		c.startTimer = nil
	}
	c.scheduler.CancelAll()
}

// OnChangeEvent handles a change, create or delete event for path.
// Qualifying paths (re)start the debounce timer.
func (c *Controller) OnChangeEvent(path string) {
	res := c.classifier.Load().Classify(path)
	c.metrics.Events.WithLabelValues(string(res.Kind)).Inc()

	if !res.Qualifies() {
		if ce := c.log.Check(zap.DebugLevel, "event ignored"); ce != nil {
			ce.Write(zap.String("path", path), zap.String("kind", string(res.Kind)), zap.String("rule", res.Rule))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateWatching {
		return
	}
	delay := c.cfg.Snapshot().Debounce()
	c.scheduler.Schedule("file change: "+path, c.AttemptRun, delay)
	c.log.Debug("run scheduled", zap.String("path", path), zap.String("kind", string(res.Kind)), zap.Duration("delay", delay))
}

// ManualRun attempts a run immediately, regardless of watch state.
func (c *Controller) ManualRun() {
	c.AttemptRun(ReasonManual)
}

// AttemptRun runs the test suite unless the workspace has error
// diagnostics or another run is in progress. RunAll is tried first and Run
// is the fallback; when neither can be invoked the user is warned once.
func (c *Controller) AttemptRun(reason string) {
	c.Attempt(reason)
}

// Attempt is AttemptRun returning the outcome, one of the metrics.Outcome*
// labels. It returns the empty string once the controller is disposed.
func (c *Controller) Attempt(reason string) string {
	if c.State() == StateDisposed {
		return ""
	}
	log := c.log.With(zap.String("run_id", uuid.NewString()), zap.String("reason", reason))
	ctx := c.ctx

	resources, err := c.diagnostics.All(ctx)
	if err != nil {
		log.Debug("diagnostics unavailable", zap.Error(err))
	} else if diagnostics.HasErrors(resources) {
		c.metrics.Runs.WithLabelValues(metrics.OutcomeSkippedErrors).Inc()
		log.Info("skipping run: workspace has errors")
		if err := c.runner.ClearResults(ctx); err != nil {
			log.Warn("failed to clear test results", zap.Error(err))
		}
		return metrics.OutcomeSkippedErrors
	}

	if !c.gate.TryEnter() {
		c.metrics.Runs.WithLabelValues(metrics.OutcomeSkippedRunning).Inc()
		log.Debug("skipping run: already running")
		return metrics.OutcomeSkippedRunning
	}
	defer func() {
		c.gate.ExitAfterCooldown(c.cfg.Snapshot().Cooldown())
	}()

	start := c.clock.Now()
	outcome := c.invoke(ctx, log)
	elapsed := c.clock.Now().Sub(start)

	c.metrics.Runs.WithLabelValues(outcome).Inc()
	c.metrics.RunDuration.Observe(elapsed.Seconds())
	log.Info("run finished", zap.String("outcome", outcome), zap.Duration("elapsed", elapsed))
	return outcome
}

func (c *Controller) invoke(ctx context.Context, log *zap.Logger) string {
	err := c.runner.RunAll(ctx)
	switch {
	case err == nil:
		return metrics.OutcomePassed
	case errors.Is(err, testrun.ErrTestsFailed):
		return metrics.OutcomeTestsFailed
	case ctx.Err() != nil:
		return metrics.OutcomeCanceled
	}
	log.Debug("runAll unavailable, falling back", zap.Error(err))

	err = c.runner.Run(ctx)
	switch {
	case err == nil:
		return metrics.OutcomeFallback
	case errors.Is(err, testrun.ErrTestsFailed):
		return metrics.OutcomeTestsFailed
	case ctx.Err() != nil:
		return metrics.OutcomeCanceled
	}
	log.Warn("unable to start test run", zap.Error(err))
	c.notifier.Warn(WarnUnableToRun)
	return metrics.OutcomeFailed
}

// OnConfigurationChanged reloads configuration. New ignore patterns and
// timing apply to subsequent events; the glob applies on the next Start.
func (c *Controller) OnConfigurationChanged() {
	if err := c.cfg.Reload(); err != nil {
		c.log.Debug("configuration reload fell back to defaults", zap.Error(err))
	}
	snap := c.cfg.Snapshot()
	c.classifier.Store(classify.New(snap.IgnorePatterns))
	c.metrics.Reloads.Inc()
	c.log.Info("configuration reloaded",
		zap.Int("ignore_patterns", len(snap.IgnorePatterns)),
		zap.Duration("debounce", snap.Debounce()),
		zap.Duration("cooldown", snap.Cooldown()),
	)
}

// DisposeAll stops watching and releases every owned resource. The
// controller cannot be restarted afterwards.
func (c *Controller) DisposeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateDisposed:
		return
	case StateWatching:
		c.indicator.SetText(status.TextOff)
		c.stopLocked()
		c.metrics.Watching.Set(0)
	}
	c.state = StateDisposed
	c.releaseOwned()
	c.gate.Release()
	c.indicator.Release()
}

func (c *Controller) releaseOwned() {
	for _, r := range c.owned {
		r.Release()
	}
	c.owned = nil
}
