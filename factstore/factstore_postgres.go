package factstore

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// NewFactStorePostgreSQL opens a PostgreSQL-backed FactStoreDB for
// deployments that need the triple store to survive process restarts and
// be queried concurrently from multiple processes, unlike the SQLite
// single-file store. It accepts a standard PostgreSQL connection string.
func NewFactStorePostgreSQL(connStr string) (*FactStoreDB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(4)

	// PostgreSQL does not use PRAGMAs, so unlike the SQLite constructors
	// this one takes no options.

	store := &FactStoreDB{
		db:      db,
		ownsDB:  true,
		dialect: postgresDialect{},
	}

	if err := store.initSchemaAndStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema for PostgreSQL: %w", err)
	}

	return store, nil
}

// NewFactStorePostgreSQLFromDB creates a new PostgreSQL-backed FactStore from an existing database connection.
// The caller retains ownership of the db connection and must close it separately.
// Unlike the SQLite constructors it takes no options (PostgreSQL does not use PRAGMAs).
// Note: This constructor does not configure connection pooling settings (use NewFactStorePostgreSQL for that).
func NewFactStorePostgreSQLFromDB(db *sql.DB) (*FactStoreDB, error) {

	store := &FactStoreDB{
		db:      db,
		ownsDB:  false,
		dialect: postgresDialect{},
	}

	if err := store.initSchemaAndStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema for PostgreSQL: %w", err)
	}

	return store, nil
}
