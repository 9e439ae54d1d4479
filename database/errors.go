package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// invalidCatalogName is the SQLSTATE returned when the database does not exist.
const invalidCatalogName = "3D000"

// SetupInstructions is shown to clients when the database is missing.
const SetupInstructions = "The application database has not been set up correctly. Please follow these steps:\n" +
	"1. Create the database: createdb dispomed\n" +
	"2. Create a .env file with: DATABASE_URL=postgres://localhost:5432/dispomed\n" +
	"3. Initialize the database schema: dispomed init-db\n" +
	"For more details, please refer to the README.md file."

// IsDatabaseMissing reports whether err means the configured database has not
// been created yet.
func IsDatabaseMissing(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidCatalogName {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == invalidCatalogName {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "database") && strings.Contains(msg, "does not exist")
}
