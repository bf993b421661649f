package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"libconv/internal/commandlog"
	"libconv/internal/config"
	"libconv/internal/history"
	"libconv/internal/ledger"
	"libconv/internal/logging"
	"libconv/internal/media/ffprobe"
	"libconv/internal/notifications"
	"libconv/internal/procrun"
	"libconv/internal/publish"
	"libconv/internal/services"
)

// Ledger is the subset of the ledger store a run mutates.
type Ledger interface {
	Record(id int64) (ledger.FileRecord, bool)
	ApplyUpdate(id int64, update ledger.Update) error
}

// Executor runs one external command, feeding merged output lines to onLine.
// procrun.Runner is the production implementation.
type Executor interface {
	Run(ctx context.Context, command string, args []string, onLine func(string)) (procrun.Result, error)
}

// Prober inspects a transcoded file.
type Prober interface {
	Probe(ctx context.Context, path string, sizeBytes int64) (ffprobe.Metadata, error)
}

// Journal records runs and job outcomes. *history.Store implements it.
type Journal interface {
	BeginRun(ctx context.Context, run history.Run) error
	RecordJob(ctx context.Context, job history.Job) error
	FinishRun(ctx context.Context, run history.Run) error
}

// Publisher syncs converted files to production. *publish.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, records []ledger.FileRecord) (publish.Report, error)
}

// PowerAction runs the end-of-run shutdown command.
type PowerAction interface {
	Run(ctx context.Context) error
}

// PublishMode controls the end-of-run publish offer.
type PublishMode int

const (
	// PublishAsk asks the operator, unless the machine is about to shut down.
	PublishAsk PublishMode = iota
	PublishAlways
	PublishNever
)

// RunOptions selects the behaviour of one run.
type RunOptions struct {
	Execute  bool
	Shutdown bool
	Publish  PublishMode
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExecutor replaces the process runner.
func WithExecutor(exec Executor) Option {
	return func(o *Orchestrator) {
		if exec != nil {
			o.exec = exec
		}
	}
}

// WithProber replaces the ffprobe adapter.
func WithProber(prober Prober) Option {
	return func(o *Orchestrator) {
		if prober != nil {
			o.prober = prober
		}
	}
}

// WithOperator sets who answers prompts.
func WithOperator(operator Operator) Option {
	return func(o *Orchestrator) {
		if operator != nil {
			o.operator = operator
		}
	}
}

// WithJournal enables run history.
func WithJournal(journal Journal) Option {
	return func(o *Orchestrator) { o.journal = journal }
}

// WithNotifier sets the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *Orchestrator) {
		if notifier != nil {
			o.notifier = notifier
		}
	}
}

// WithPublisher enables the end-of-run publish step.
func WithPublisher(publisher Publisher) Option {
	return func(o *Orchestrator) { o.publisher = publisher }
}

// WithPowerAction sets the shutdown action used when RunOptions.Shutdown is set.
func WithPowerAction(power PowerAction) Option {
	return func(o *Orchestrator) { o.power = power }
}

// WithSleep replaces the throttle delay, mainly for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator runs conversion batches.
type Orchestrator struct {
	cfg       *config.Config
	settings  PlanSettings
	ledger    Ledger
	logger    *slog.Logger
	exec      Executor
	prober    Prober
	operator  Operator
	journal   Journal
	notifier  notifications.Service
	publisher Publisher
	power     PowerAction
	sleep     func(context.Context, time.Duration) error
	now       func() time.Time
	newID     func() string
}

// New builds an orchestrator over store using cfg.
func New(cfg *config.Config, store Ledger, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		settings: PlanSettingsFromConfig(cfg),
		ledger:   store,
		logger:   logging.NewComponentLogger(logger, "convert"),
		exec:     procrun.Runner{},
		prober:   ffprobeProber{binary: cfg.Probe.Command},
		operator: AutoOperator{},
		notifier: notifications.NewService(cfg),
		sleep:    sleepContext,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type ffprobeProber struct {
	binary string
}

func (p ffprobeProber) Probe(ctx context.Context, path string, sizeBytes int64) (ffprobe.Metadata, error) {
	return ffprobe.Probe(ctx, p.binary, path, sizeBytes)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run processes sel in order. The returned error is non-nil only for
// failures that abort the batch: the command log cannot be created, or a
// ledger write fails. Per-file failures are reported in the session.
func (o *Orchestrator) Run(ctx context.Context, sel *ledger.Selection, opts RunOptions) (*Session, error) {
	if sel == nil {
		sel = &ledger.Selection{}
	}
	session := newSession(o.newID(), sel.Query, opts, sel.Len(), o.now())
	ctx = services.WithRunID(ctx, session.ID)
	logger := logging.WithContext(ctx, o.logger)

	log, err := commandlog.Create(o.cfg.Paths.CommandLog, sel.Query)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "run", "create command log", o.cfg.Paths.CommandLog, err)
	}
	session.log = log

	if o.journal != nil {
		if err := o.journal.BeginRun(ctx, session.historyRun()); err != nil {
			logging.WarnWithContext(logger, "failed to record run start", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run history will be incomplete"),
			)
		}
	}
	if err := o.notifier.NotifyRunStarted(ctx, session.ID, session.Total, opts.Execute); err != nil {
		logger.Debug("run start notification failed", logging.Error(err))
	}

	mode := "plan"
	if opts.Execute {
		mode = "execute"
	}
	logger.Info("run started",
		logging.String("query", sel.Query),
		logging.Int("files", session.Total),
		logging.String("mode", mode),
		logging.String("command_log", log.Path()),
	)

	var fatal error
	for i, id := range sel.IDs {
		if ctx.Err() != nil {
			session.State = RunInterrupted
			break
		}
		if o.consumeCancelSentinel(logger) {
			session.State = RunCancelled
			logger.Info("cancel sentinel found; stopping before next file",
				logging.Int("completed", i),
				logging.Int("remaining", session.Total-i),
			)
			break
		}

		outcome, err := o.processFile(ctx, session, i+1, id, opts)
		session.record(outcome)
		o.persistOutcome(ctx, session, outcome)
		if err != nil {
			fatal = err
			break
		}
		if outcome.State == StateFailed {
			o.reportFailure(ctx, outcome)
		}
		if outcome.State == StateAccepted && i < len(sel.IDs)-1 {
			throttle := time.Duration(o.cfg.Policy.ThrottleSeconds) * time.Second
			if err := o.sleep(ctx, throttle); err != nil && ctx.Err() != nil {
				session.State = RunInterrupted
				break
			}
		}
	}
	switch {
	case fatal != nil:
		session.State = RunAborted
	case session.State != RunRunning:
	case ctx.Err() != nil:
		session.State = RunInterrupted
	default:
		session.State = RunCompleted
	}

	closeErr := o.finalize(ctx, session, opts)
	if fatal != nil {
		return session, fatal
	}
	return session, closeErr
}

// consumeCancelSentinel removes the cancel file if present and reports whether it was there.
func (o *Orchestrator) consumeCancelSentinel(logger *slog.Logger) bool {
	path := o.cfg.Paths.CancelSentinel
	if path == "" {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to remove cancel sentinel", "cancel_sentinel_remove_failed",
			logging.Error(err),
			logging.String("path", path),
			logging.String(logging.FieldErrorHint, "delete the file by hand before the next run"),
			logging.String(logging.FieldImpact, "the next run will stop immediately"),
		)
	}
	return true
}

// persistOutcome appends the outcome to the command log and the history.
// The ledger has already been written by processFile.
func (o *Orchestrator) persistOutcome(ctx context.Context, session *Session, outcome JobOutcome) {
	logger := logging.WithContext(services.WithFileID(ctx, outcome.FileID), o.logger)
	if outcome.State != StateSkipped && len(outcome.Plan.Steps) > 0 {
		if err := session.log.Append(commandEntry(outcome)); err != nil {
			logging.WarnWithContext(logger, "failed to append command log entry", "command_log_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "command log will be missing this file"),
			)
		}
	}
	if o.journal == nil {
		return
	}
	job := history.Job{
		RunID:      session.ID,
		FileID:     outcome.FileID,
		SourcePath: outcome.Plan.SourcePath,
		State:      string(outcome.State),
		PreSize:    outcome.PreSize,
		PostSize:   outcome.PostSize,
		BytesSaved: outcome.BytesSaved,
		StartedAt:  outcome.StartedAt,
		FinishedAt: outcome.FinishedAt,
	}
	if outcome.State == StateAccepted {
		job.OutputPath = outcome.Plan.OutputPath
	}
	if outcome.Err != nil {
		job.ErrorKind = services.Kind(outcome.Err)
		job.ErrorMessage = outcome.Err.Error()
	}
	if err := o.journal.RecordJob(context.WithoutCancel(ctx), job); err != nil {
		logging.WarnWithContext(logger, "failed to record job outcome", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run history will be incomplete"),
		)
	}
}

func commandEntry(outcome JobOutcome) commandlog.Entry {
	plan := outcome.Plan
	entry := commandlog.Entry{
		FileID:           plan.FileID,
		OriginalBackup:   plan.BackupPath,
		OriginalFileSize: plan.OriginalSize,
		NewFilePath:      plan.OutputPath,
		Commands:         make([][]string, 0, len(plan.Steps)),
	}
	for _, step := range plan.Steps {
		entry.Commands = append(entry.Commands, commandlog.Argv(step.Command, step.Args))
	}
	if outcome.State != StatePlanned {
		entry.State = string(outcome.State)
	}
	if len(outcome.Update) > 0 {
		entry.Fields = outcome.Update.Fields()
		entry.Values = outcome.Update.Values()
	}
	return entry
}

// reportFailure logs a failed file and, for tool or revert failures, waits
// for the operator before moving on.
func (o *Orchestrator) reportFailure(ctx context.Context, outcome JobOutcome) {
	logger := logging.WithContext(services.WithFileID(ctx, outcome.FileID), o.logger)
	logging.ErrorWithContext(logger, "file failed", "job_failed",
		logging.Error(outcome.Err),
		logging.String("failed_at", string(outcome.Stage)),
		logging.String("error_kind", services.Kind(outcome.Err)),
		logging.String("source", outcome.Plan.SourcePath),
		logging.String(logging.FieldErrorHint, failureHint(outcome.Err)),
	)
	if errors.Is(outcome.Err, services.ErrRevert) {
		if err := o.notifier.NotifyError(ctx, outcome.Err, fmt.Sprintf("file %d", outcome.FileID)); err != nil {
			logger.Debug("error notification failed", logging.Error(err))
		}
	}
	if ctx.Err() != nil || !services.RequiresAcknowledgement(outcome.Err) {
		return
	}
	msg := fmt.Sprintf("File %d failed during %s: %v", outcome.FileID, outcome.Stage, outcome.Err)
	if err := o.operator.Acknowledge(ctx, msg); err != nil {
		logger.Debug("acknowledgement interrupted", logging.Error(err))
	}
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrRevert):
		return "restore the file by hand with 'libconv restore <backup> <target>'"
	case errors.Is(err, services.ErrSpawn):
		return "check that the configured tools are installed and on PATH"
	case errors.Is(err, services.ErrProcess):
		return "inspect the tool output in the run log"
	case errors.Is(err, services.ErrProbe):
		return "run ffprobe on the output by hand"
	default:
		return "check logs for details"
	}
}

// finalize closes the command log, records the run, notifies, and runs the
// publish and power steps. It runs exactly once per session.
func (o *Orchestrator) finalize(ctx context.Context, session *Session, opts RunOptions) error {
	logger := logging.WithContext(ctx, o.logger)
	session.FinishedAt = o.now()

	var closeErr error
	if err := session.log.Close(); err != nil {
		closeErr = services.Wrap(services.ErrIO, "run", "close command log", session.log.Path(), err)
	}

	detached := context.WithoutCancel(ctx)
	if o.journal != nil {
		if err := o.journal.FinishRun(detached, session.historyRun()); err != nil {
			logging.WarnWithContext(logger, "failed to record run completion", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run history will show the run as unfinished"),
			)
		}
	}

	logger.Info("run finished",
		logging.String("state", string(session.State)),
		logging.Int("processed", session.Processed),
		logging.Int("total", session.Total),
		logging.Int("accepted", session.Count(StateAccepted)),
		logging.Int("reverted", session.Count(StateReverted)),
		logging.Int("failed", session.Count(StateFailed)),
		logging.Int("skipped", session.Count(StateSkipped)),
		logging.Int("planned", session.Count(StatePlanned)),
		logging.String("bytes_saved", FormatBytes(session.BytesSaved)),
		logging.Duration("duration", session.Duration()),
	)
	if err := o.notifier.NotifyRunCompleted(detached, session.Summary()); err != nil {
		logger.Debug("run completion notification failed", logging.Error(err))
	}

	if session.State == RunInterrupted || session.State == RunAborted {
		return closeErr
	}
	if opts.Execute {
		o.offerPublish(ctx, session, opts)
	}
	if opts.Shutdown && o.power != nil {
		logger.Info("running power action")
		if err := o.power.Run(ctx); err != nil {
			logging.WarnWithContext(logger, "power action failed", "power_action_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "machine stays on"),
			)
		}
	}
	return closeErr
}

func (o *Orchestrator) offerPublish(ctx context.Context, session *Session, opts RunOptions) {
	if o.publisher == nil || opts.Publish == PublishNever {
		return
	}
	var records []ledger.FileRecord
	for _, outcome := range session.Outcomes {
		if outcome.State != StateAccepted {
			continue
		}
		if rec, ok := o.ledger.Record(outcome.FileID); ok {
			records = append(records, rec)
		}
	}
	logger := logging.WithContext(ctx, o.logger)
	if len(records) == 0 {
		logger.Info("nothing to publish")
		return
	}
	if opts.Publish == PublishAsk {
		if opts.Shutdown {
			logger.Info("skipping publish prompt before power action",
				logging.Args(logging.DecisionAttrs("publish", "skipped", "unattended shutdown requested")...)...)
			return
		}
		ok, err := o.operator.Confirm(ctx, fmt.Sprintf("Publish %d converted files to production", len(records)))
		if err != nil || !ok {
			return
		}
	}
	report, err := o.publisher.Publish(ctx, records)
	if err != nil {
		logging.ErrorWithContext(logger, "publish failed", "publish_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "rerun 'libconv publish' once the destination is reachable"),
		)
		if nerr := o.notifier.NotifyError(ctx, err, "publish"); nerr != nil {
			logger.Debug("error notification failed", logging.Error(nerr))
		}
		return
	}
	if err := o.notifier.NotifyPublishCompleted(ctx, len(report.Directories)); err != nil {
		logger.Debug("publish notification failed", logging.Error(err))
	}
}
