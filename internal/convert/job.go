package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"libconv/internal/ledger"
	"libconv/internal/logging"
	"libconv/internal/procrun"
	"libconv/internal/services"
)

// processFile runs one record through the state machine. The returned error
// is set only when the ledger could not be written, which stops the batch.
func (o *Orchestrator) processFile(ctx context.Context, session *Session, index int, id int64, opts RunOptions) (JobOutcome, error) {
	ctx = services.WithFileID(ctx, id)
	logger := logging.WithContext(ctx, o.logger)
	outcome := JobOutcome{FileID: id, StartedAt: o.now()}
	outcome.advance(StatePending)
	finish := func(state State, err error) (JobOutcome, error) {
		outcome.State = state
		outcome.Err = err
		outcome.FinishedAt = o.now()
		return outcome, nil
	}

	rec, ok := o.ledger.Record(id)
	if !ok {
		return finish(StateFailed, services.Wrap(services.ErrValidation, "plan", "lookup record", fmt.Sprintf("id %d is not in the ledger", id), nil))
	}
	outcome.PreSize = rec.Size

	plan, err := BuildPlan(rec, o.settings)
	if err != nil {
		return finish(StateFailed, err)
	}
	outcome.Plan = plan
	logger.Info("processing file",
		logging.Int("index", index),
		logging.Int("total", session.Total),
		logging.String("source", plan.SourcePath),
		logging.Int64("size_bytes", rec.Size),
	)

	if IsMarked(plan.BackupPath, o.cfg.Policy.DoNotProcess) {
		logger.Info("file marked do-not-process; skipping",
			logging.Args(logging.DecisionAttrs("reprocess", "skipped", "marker present at backup location")...)...)
		return finish(StateSkipped, nil)
	}

	if !opts.Execute {
		return finish(StatePlanned, nil)
	}

	outcome.advance(StateBackingUp)
	if err := o.backup(ctx, plan, logger); err != nil {
		return finish(StateFailed, err)
	}

	outcome.advance(StateTranscoding)
	if err := o.transcode(ctx, plan, rec.DurationSeconds, logger); err != nil {
		return finish(StateFailed, o.withRollback(plan, err, logger))
	}

	outcome.advance(StateProbingResult)
	info, err := os.Stat(plan.OutputPath)
	if err != nil {
		err = services.Wrap(services.ErrProbe, "probe", "stat output", plan.OutputPath, err)
		return finish(StateFailed, o.withRollback(plan, err, logger))
	}
	postSize := info.Size()
	meta, err := o.prober.Probe(ctx, plan.OutputPath, postSize)
	if err != nil {
		return finish(StateFailed, o.withRollback(plan, err, logger))
	}
	outcome.Metadata = &meta
	outcome.PostSize = postSize

	var next State
	if ShouldRevert(plan.OriginalSize, postSize, plan.BackupPath, o.cfg.Policy.TrailerMarker) {
		attrs := append(logging.DecisionAttrs("size_policy", "revert", "no size reduction"),
			logging.Int64("original_bytes", plan.OriginalSize),
			logging.Int64("converted_bytes", postSize),
		)
		logger.Info("converted file is not smaller; reverting", logging.Args(attrs...)...)
		if err := revertJob(plan, o.cfg.Policy.DoNotProcess); err != nil {
			return finish(StateFailed, err)
		}
		outcome.Update = revertedUpdate(plan, rec, o.cfg.Policy.DoNotProcess)
		next = StateReverted
	} else {
		reason := "size reduced"
		if postSize >= plan.OriginalSize {
			reason = "trailer exempt from size policy"
		}
		outcome.BytesSaved = plan.OriginalSize - postSize
		attrs := append(logging.DecisionAttrs("size_policy", "accept", reason),
			logging.Int64("original_bytes", plan.OriginalSize),
			logging.Int64("converted_bytes", postSize),
			logging.String("bytes_saved", FormatBytes(outcome.BytesSaved)),
			logging.String("session_bytes_saved", FormatBytes(session.BytesSaved+outcome.BytesSaved)),
			logging.String("video_codec", meta.VideoCodec),
		)
		logger.Info("conversion accepted", logging.Args(attrs...)...)
		outcome.Update = acceptedUpdate(plan, meta, postSize)
		next = StateAccepted
	}

	if err := o.ledger.ApplyUpdate(rec.ID, outcome.Update); err != nil {
		outcome.BytesSaved = 0
		outcome.Update = nil
		outcome.State = StateFailed
		outcome.Err = err
		outcome.FinishedAt = o.now()
		logging.ErrorWithContext(logger, "ledger write failed; stopping run", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the ledger location, then reconcile this file by hand"),
		)
		return outcome, err
	}
	return finish(next, nil)
}

// backup moves the source into the backup tree. A source that is already
// gone while its backup exists is a resumed job; any stale output from the
// interrupted attempt is discarded.
func (o *Orchestrator) backup(ctx context.Context, plan JobPlan, logger *slog.Logger) error {
	ctx = services.WithStage(ctx, string(StepBackup))
	logger = logging.WithContext(ctx, logger)
	sourceExists := exists(plan.SourcePath)
	backupExists := exists(plan.BackupPath)
	switch {
	case !sourceExists && backupExists:
		logger.Info("source already moved to backup; resuming",
			logging.Args(logging.DecisionAttrs("resume", "reuse_backup", "source missing, backup present")...)...)
		if err := removeIfExists(plan.OutputPath); err != nil {
			return services.Wrap(services.ErrIO, "backup", "remove stale output", plan.OutputPath, err)
		}
		return nil
	case !sourceExists:
		return services.Wrap(services.ErrIO, "backup", "locate source", "source file is missing: "+plan.SourcePath, nil)
	case backupExists:
		return services.Wrap(services.ErrValidation, "backup", "check backup", "a backup already exists at "+plan.BackupPath, nil)
	}

	if err := os.MkdirAll(filepath.Dir(plan.BackupPath), 0o755); err != nil {
		return services.Wrap(services.ErrIO, "backup", "create backup directory", plan.BackupPath, err)
	}
	step, _ := plan.Step(StepBackup)
	logger.Info("starting backup copy", logging.String("command", step.Command), logging.String("backup", plan.BackupPath))
	_, err := o.exec.Run(ctx, step.Command, step.Args, func(line string) {
		logger.Debug("backup output", logging.String("line", line))
	})
	if err != nil {
		var exitErr *procrun.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil || !o.tolerated(exitErr.ExitCode) {
			return discardPartialBackup(plan, services.Wrap(markerFor(err), "backup", "run "+step.Command, "", err))
		}
		attrs := append(logging.DecisionAttrs("backup_exit", "tolerated", "exit code listed in backup.tolerate_exit_codes"),
			logging.Int("exit_code", exitErr.ExitCode),
		)
		logger.Info("backup exit status tolerated", logging.Args(attrs...)...)
	}

	backupInfo, err := os.Stat(plan.BackupPath)
	if err != nil {
		return services.Wrap(services.ErrIO, "backup", "verify backup", "backup copy not found at "+plan.BackupPath, err)
	}
	// Copy-only tools leave the source behind; the transcode may write to the same path.
	if sourceInfo, err := os.Stat(plan.SourcePath); err == nil {
		if sourceInfo.Size() != backupInfo.Size() {
			return discardPartialBackup(plan, services.Wrap(services.ErrIO, "backup", "verify backup",
				fmt.Sprintf("backup has %d bytes, source has %d", backupInfo.Size(), sourceInfo.Size()), nil))
		}
		if err := os.Remove(plan.SourcePath); err != nil {
			return services.Wrap(services.ErrIO, "backup", "remove source", plan.SourcePath, err)
		}
	}
	return nil
}

// discardPartialBackup removes whatever the failed copy left at the backup
// path while the source is still in place, so the next run starts clean.
func discardPartialBackup(plan JobPlan, err error) error {
	if !exists(plan.SourcePath) {
		return err
	}
	if rmErr := removeIfExists(plan.BackupPath); rmErr != nil {
		return errors.Join(err, services.Wrap(services.ErrIO, "backup", "remove partial backup", plan.BackupPath, rmErr))
	}
	return err
}

func (o *Orchestrator) tolerated(code int) bool {
	codes := o.cfg.Backup.TolerateExitCodes
	return len(codes) == 0 || slices.Contains(codes, code)
}

// transcode runs the encoder and samples its progress into the log.
func (o *Orchestrator) transcode(ctx context.Context, plan JobPlan, durationSeconds int, logger *slog.Logger) error {
	ctx = services.WithStage(ctx, string(StepTranscode))
	logger = logging.WithContext(ctx, logger)
	if timeout := time.Duration(o.cfg.Encoder.TimeoutSeconds) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	step, _ := plan.Step(StepTranscode)
	logger.Info("starting transcode",
		logging.String("command", step.Command),
		logging.String("input", plan.BackupPath),
		logging.String("output", plan.OutputPath),
	)
	sampler := logging.NewProgressSampler(5)
	started := o.now()
	result, err := o.exec.Run(ctx, step.Command, step.Args, func(line string) {
		progress, ok := procrun.ParseProgress(line, durationSeconds)
		if !ok {
			logger.Debug("encoder output", logging.String("line", line))
			return
		}
		if progress.Malformed {
			logger.Debug("unreadable progress time", logging.String("line", line))
		}
		if sampler.ShouldLog(float64(progress.Percent)) {
			logger.Info("transcode progress",
				logging.Int("percent", progress.Percent),
				logging.Int("elapsed_seconds", progress.ElapsedSeconds),
				logging.Int("total_seconds", durationSeconds),
			)
		}
	})
	if err != nil {
		return services.Wrap(markerFor(err), "transcode", "run "+step.Command, "", err)
	}
	if !exists(plan.OutputPath) {
		return services.Wrap(services.ErrProcess, "transcode", "locate output", "encoder exited cleanly without writing "+plan.OutputPath, nil)
	}
	logger.Info("transcode finished", logging.Duration("elapsed", o.now().Sub(started)), logging.Int("exit_code", result.ExitCode))
	return nil
}

// withRollback restores the source after err and combines any rollback
// failure into the returned error.
func (o *Orchestrator) withRollback(plan JobPlan, err error, logger *slog.Logger) error {
	if rbErr := rollbackJob(plan); rbErr != nil {
		return errors.Join(err, rbErr)
	}
	logger.Info("restored source after failure", logging.String("source", plan.SourcePath))
	return err
}

func markerFor(err error) error {
	switch {
	case errors.Is(err, services.ErrSpawn):
		return services.ErrSpawn
	default:
		return services.ErrProcess
	}
}

var _ Ledger = (*ledger.Store)(nil)
