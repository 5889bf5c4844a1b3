package ui

import (
	"context"
	"log/slog"
)

// TeeEvents writes every event from in to logger as a "sortcp.event"
// record at Debug level and forwards it on the returned channel, which is
// closed once in is drained.
func TeeEvents(in <-chan Event, logger *slog.Logger) <-chan Event {
	out := make(chan Event, cap(in))
	go func() {
		defer close(out)
		for ev := range in {
			logEvent(logger, ev)
			out <- ev
		}
	}()
	return out
}

func logEvent(logger *slog.Logger, ev Event) {
	attrs := []slog.Attr{slog.String("type", ev.Type.String())}
	if ev.Path != "" {
		attrs = append(attrs, slog.String("path", ev.Path))
	}
	if ev.Dst != "" {
		attrs = append(attrs, slog.String("dst", ev.Dst))
	}
	switch ev.Type {
	case FileCompleted:
		attrs = append(attrs, slog.Int64("size", ev.Size), slog.Bool("dry_run", ev.DryRun))
	case FileSkipped:
		attrs = append(attrs, slog.String("reason", ev.Reason))
	case ScanComplete:
		attrs = append(attrs, slog.Int64("total", ev.Total))
	}
	if ev.Error != nil {
		attrs = append(attrs, slog.String("error", ev.Error.Error()))
	}
	logger.LogAttrs(context.Background(), slog.LevelDebug, "sortcp.event", attrs...)
}
