package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"patchbay/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Store using SQLite
type Repository struct {
	db   *sql.DB
	path string
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The engine is the only writer; one connection also keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db, path: dbPath}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS connections (
		sender TEXT NOT NULL,
		dest TEXT NOT NULL,
		PRIMARY KEY (sender, dest)
	) WITHOUT ROWID;
	`

	_, err := r.db.Exec(schema)
	return err
}

// Load returns every persisted connection in sender, dest order
func (r *Repository) Load(ctx context.Context) (*domain.ConnectionSet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sender, dest FROM connections ORDER BY sender, dest
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	var conns []domain.Connection
	for rows.Next() {
		var sender, dest string
		if err := rows.Scan(&sender, &dest); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, domain.NewConnection(domain.Name(sender), domain.Name(dest)))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return domain.NewConnectionSet(conns...), nil
}

// Save replaces all rows with the given set in one transaction
func (r *Repository) Save(ctx context.Context, set *domain.ConnectionSet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM connections`); err != nil {
		return fmt.Errorf("failed to clear connections: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO connections (sender, dest) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare connection statement: %w", err)
	}
	defer stmt.Close()

	for _, conn := range set.Connections() {
		if _, err := stmt.ExecContext(ctx, string(conn.Sender), string(conn.Dest)); err != nil {
			return fmt.Errorf("failed to insert connection %s: %w", conn, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
