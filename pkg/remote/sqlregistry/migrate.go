package sqlregistry

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const migrationsTable = "schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations applies pending schema migrations. An up-to-date schema is
// not an error.
func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	drv, err := newMigrationDriver(db)
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// migrationDriver is a golang-migrate database.Driver over a *sql.DB opened
// with the ncruces sqlite3 driver. The stock sqlite3 driver links mattn's
// cgo package, which registers the same driver name.
type migrationDriver struct {
	db     *sql.DB
	locked atomic.Bool
}

func newMigrationDriver(db *sql.DB) (database.Driver, error) {
	if err := db.Ping(); err != nil {
		return nil, err
	}
	d := &migrationDriver{db: db}
	if err := d.ensureVersionTable(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *migrationDriver) ensureVersionTable() (err error) {
	if err := d.Lock(); err != nil {
		return err
	}
	defer func() {
		if e := d.Unlock(); e != nil {
			err = errors.Join(err, e)
		}
	}()

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (version uint64, dirty bool);
	CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_version ON %[1]s (version);
	`, migrationsTable)
	_, err = d.db.Exec(query)
	return err
}

// Open is unused; the driver is always built from an open *sql.DB.
func (d *migrationDriver) Open(string) (database.Driver, error) {
	return nil, errors.New("sqlregistry: migration driver must be created from an open database")
}

// Close leaves the connection to the Registry that owns it.
func (d *migrationDriver) Close() error { return nil }

func (d *migrationDriver) Lock() error {
	if !d.locked.CompareAndSwap(false, true) {
		return database.ErrLocked
	}
	return nil
}

func (d *migrationDriver) Unlock() error {
	if !d.locked.CompareAndSwap(true, false) {
		return database.ErrNotLocked
	}
	return nil
}

func (d *migrationDriver) Run(migration io.Reader) error {
	body, err := io.ReadAll(migration)
	if err != nil {
		return err
	}
	return d.inTx(string(body), func(tx *sql.Tx) error {
		_, err := tx.Exec(string(body))
		return err
	})
}

func (d *migrationDriver) SetVersion(version int, dirty bool) error {
	return d.inTx("set version", func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM " + migrationsTable); err != nil {
			return err
		}
		// A dirty nil version is kept so a failed first down migration
		// stays visible.
		if version >= 0 || (version == database.NilVersion && dirty) {
			_, err := tx.Exec("INSERT INTO "+migrationsTable+" (version, dirty) VALUES (?, ?)", version, dirty)
			return err
		}
		return nil
	})
}

func (d *migrationDriver) Version() (int, bool, error) {
	var (
		version int
		dirty   bool
	)
	err := d.db.QueryRow("SELECT version, dirty FROM "+migrationsTable+" LIMIT 1").Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return database.NilVersion, false, nil
	}
	if err != nil {
		return 0, false, &database.Error{OrigErr: err, Err: "read schema version"}
	}
	return version, dirty, nil
}

func (d *migrationDriver) Drop() error {
	rows, err := d.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return &database.Error{OrigErr: err, Err: "list tables"}
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return &database.Error{OrigErr: err, Err: "list tables"}
	}

	for _, t := range tables {
		if err := d.inTx("DROP TABLE "+t, func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE " + t)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

// inTx runs fn in a transaction. query labels the database.Error on failure.
func (d *migrationDriver) inTx(query string, fn func(*sql.Tx) error) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}
