package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-launcher/core"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const defaultPingTimeout = 5 * time.Second

// OpenConfig selects the database behind the account store.
type OpenConfig struct {
	Driver      string
	DSN         string
	Debug       bool
	PingTimeout time.Duration
}

func (c OpenConfig) GetDebug() bool {
	return c.Debug
}

func (c OpenConfig) GetDriver() string {
	return c.Driver
}

func (c OpenConfig) GetServer() string {
	return c.DSN
}

func (c OpenConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return defaultPingTimeout
	}
	return c.PingTimeout
}

func (c OpenConfig) GetOtelIdentifier() string {
	return "go-launcher"
}

// Open connects a persistence client for sqlite3 or postgres. Schema
// migrations are registered and applied by the caller.
func Open(cfg OpenConfig) (*persistence.Client, error) {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, core.NewError("sqlstore: dsn is required", goerrors.CategoryBadInput, core.ErrorBadInput, nil)
	}

	var dialect schema.Dialect
	switch cfg.Driver {
	case DriverSQLite, "sqlite":
		cfg.Driver = DriverSQLite
		dialect = sqlitedialect.New()
	case DriverPostgres, "pg", "postgresql":
		cfg.Driver = DriverPostgres
		dialect = pgdialect.New()
	default:
		return nil, core.NewError("sqlstore: unsupported driver", goerrors.CategoryBadInput, core.ErrorBadInput, map[string]any{
			"driver": cfg.Driver,
		})
	}

	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, core.WrapError(err, goerrors.CategoryInternal, core.ErrorInternal, "sqlstore: open database", map[string]any{
			"driver": cfg.Driver,
		})
	}
	if cfg.Driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, core.WrapError(err, goerrors.CategoryInternal, core.ErrorInternal, "sqlstore: new persistence client", map[string]any{
			"driver": cfg.Driver,
		})
	}
	return client, nil
}

func typeName(value any) string {
	return fmt.Sprintf("%T", value)
}
