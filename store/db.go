package store

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrCollectHasPayments is returned when deleting a collect that has
	// payments. Donated money cannot vanish; close the collect instead.
	ErrCollectHasPayments = errors.New("store: collect has payments")

	// ErrUnsupportedDriver is returned by Open for unknown driver names.
	ErrUnsupportedDriver = errors.New("store: unsupported driver")
)

// Drivers accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open connects to the database and returns a bun handle with the matching
// dialect.
func Open(driver, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open %s", driver)
	}

	var db *bun.DB
	switch driver {
	case DriverPostgres:
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite:
		// sqlite serializes writers; a single connection avoids "database is locked".
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		_ = sqldb.Close()
		return nil, pkgerrors.Wrap(ErrUnsupportedDriver, driver)
	}

	registerModels(db)
	return db, nil
}

func registerModels(db *bun.DB) {
	db.RegisterModel((*OrganizationProblem)(nil), (*OrganizationRegion)(nil))
}

// CreateSchema creates every table if it does not exist yet.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	registerModels(db)

	models := []any{
		(*Organization)(nil),
		(*Problem)(nil),
		(*Region)(nil),
		(*Occasion)(nil),
		(*DefaultCover)(nil),
		(*OrganizationProblem)(nil),
		(*OrganizationRegion)(nil),
		(*Collect)(nil),
		(*Payment)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return pkgerrors.Wrapf(err, "create table for %T", model)
		}
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{(*Collect)(nil), "collects_organization_id_idx", []string{"organization_id"}},
		{(*Collect)(nil), "collects_close_datetime_idx", []string{"close_datetime"}},
		{(*Payment)(nil), "payments_collect_id_status_idx", []string{"collect_id", "status"}},
		{(*Payment)(nil), "payments_user_id_idx", []string{"user_id"}},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return pkgerrors.Wrapf(err, "create index %s", idx.name)
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
