package master

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prxssh/shardgrep/internal/report"
	"github.com/prxssh/shardgrep/internal/task"
)

// Merge builds the final report from the rank-indexed results returned by
// Wait. Files keep rank-major order, and within a rank the order the worker
// emitted them, which is corpus order.
//
// Complete ranks are merged in full. A rank that started but did not finish
// contributes only the files it scanned to the end. Ranks that never started
// or failed contribute nothing. Every rank gets a diagnostic either way.
func Merge(results []task.Result) *report.Report {
	rep := &report.Report{
		Diagnostics: make([]report.Diagnostic, 0, len(results)),
	}

	for rank, res := range results {
		d := report.Diagnostic{
			Rank:     rank,
			Status:   res.Status,
			Failures: res.Failures,
		}

		switch res.Status {
		case task.StatusComplete:
			rep.Files = append(rep.Files, res.Files...)
			if len(res.Files) == 0 && len(res.Failures) == 0 {
				d.Message = fmt.Sprintf("no processing occurred at rank %d", rank)
			} else {
				d.Message = fmt.Sprintf("processing at rank %d complete", rank)
			}

		case task.StatusStarted:
			rep.Files = append(rep.Files, res.Files...)
			d.Message = ErrIncompleteShard.New(
				"processing at rank %d incomplete, %d files merged",
				rank, len(res.Files),
			).Error()

		case task.StatusFailed:
			d.Message = fmt.Sprintf("processing at rank %d failed: %s", rank, res.Cause)

		default:
			d.Message = fmt.Sprintf("no processing occurred at rank %d", rank)
			if res.Cause != "" {
				d.Message += ": " + res.Cause
			}
		}

		rep.Diagnostics = append(rep.Diagnostics, d)
	}

	return rep
}

// LogDiagnostics writes one line per rank, plus one per skipped file, to
// logger.
func LogDiagnostics(logger *slog.Logger, rep *report.Report) {
	for _, d := range rep.Diagnostics {
		level := slog.LevelInfo
		if d.Status != task.StatusComplete {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, d.Message, "rank", d.Rank, "status", d.Status)

		for _, f := range d.Failures {
			logger.Warn("file skipped", "rank", d.Rank, "file", f.Name, "cause", f.Cause)
		}
	}
}
