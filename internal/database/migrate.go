package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benzpackaging/benztraq-auth/migrations"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func newMigrationProvider(db *sql.DB, logger *zap.Logger) (*goose.Provider, error) {
	return goose.NewProvider(goose.DialectPostgres, db, migrations.FS,
		goose.WithLogger(gooseZapLogger{s: logger.Named("goose").Sugar()}),
		goose.WithDisableGlobalRegistry(true),
	)
}

// Migrate brings the auth schema up to the newest embedded version. Versions
// applied before a failure stay applied and are logged.
func Migrate(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	provider, err := newMigrationProvider(db, logger)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		var partial *goose.PartialError
		if errors.As(err, &partial) {
			logApplied(logger, partial.Applied)
			logger.Error("migration failed",
				zap.Int64("version", partial.Failed.Source.Version),
				zap.String("path", partial.Failed.Source.Path),
				zap.Error(partial.Err),
			)
		}
		return fmt.Errorf("migrations: %w", err)
	}
	logApplied(logger, results)

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	logger.Info("auth schema ready", zap.Int64("version", version), zap.Int("applied", len(results)))
	return nil
}

func logApplied(logger *zap.Logger, results []*goose.MigrationResult) {
	for _, r := range results {
		logger.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("path", r.Source.Path),
			zap.Duration("took", r.Duration),
		)
	}
}

type gooseZapLogger struct{ s *zap.SugaredLogger }

func (l gooseZapLogger) Printf(format string, v ...interface{}) {
	l.s.Infof(format, v...)
}

// Fatalf must not exit; Migrate decides what a failure means.
func (l gooseZapLogger) Fatalf(format string, v ...interface{}) {
	l.s.Errorf(format, v...)
}
