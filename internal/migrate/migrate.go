package migrate

import (
	"context"
	"embed"
	"fmt"

	"github.com/example/badgerwatch/internal/db"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var fs embed.FS

// Up applies every pending migration.
func Up(ctx context.Context, d *db.DB, logger *zap.Logger) error {
	sqlDB := d.SQL()
	defer sqlDB.Close()

	goose.SetBaseFS(fs)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{logger.Sugar()})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	logger.Info("Applying database migrations")
	if err := goose.UpContext(ctx, sqlDB, "sql"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("get version: %w", err)
	}
	logger.Info("Migrations applied", zap.Int64("version", version))
	return nil
}

type gooseLogger struct{ s *zap.SugaredLogger }

func (l gooseLogger) Fatalf(format string, v ...any) { l.s.Fatalf(format, v...) }
func (l gooseLogger) Printf(format string, v ...any) { l.s.Debugf(format, v...) }
