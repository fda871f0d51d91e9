package app

import (
	"context"
	"log/slog"

	"github.com/parkwise/reservation-api/internal/domain"
	"github.com/parkwise/reservation-api/internal/logging"
)

func serviceLogger(ctx context.Context, base *slog.Logger, service, operation string, attrs ...any) *slog.Logger {
	pairs := append([]any{"service", service, "operation", operation}, attrs...)
	return logging.FromContext(ctx, base).With(pairs...)
}

func logOutcome(ctx context.Context, logger *slog.Logger, err error, msg string) {
	if err == nil {
		logger.InfoContext(ctx, msg)
		return
	}
	level := slog.LevelWarn
	if kind := domain.KindOf(err); kind == domain.KindInternal || kind == domain.KindUnavailable {
		level = slog.LevelError
	}
	logger.Log(ctx, level, msg+" failed", "error", err, "error_kind", string(domain.KindOf(err)))
}
