package migrate

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Dialect renders the tracking table SQL for a database flavour.
//
// Statements are rendered as plain text with quoted literals, since the
// management API accepts no bind parameters.
type Dialect interface {
	// Name is the sql driver name
	Name() string

	// Table returns the quoted tracking table name for group
	Table(group Group) string

	// Ensure returns statements creating the tracking table (and namespace)
	Ensure(group Group) []string

	// Exists returns a query producing a row only if the tracking table exists
	Exists(group Group) string

	// Literal quotes a string value
	Literal(value string) string
}

var (
	// Postgres is the dialect of the managed platform
	Postgres Dialect = postgresDialect{}
	// MySQL dialect
	MySQL Dialect = mysqlDialect{}
	// SQLite dialect
	SQLite Dialect = sqliteDialect{}
)

// DialectFor returns a Dialect for a sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return nil, errors.Errorf("unsupported database driver: %s", driver)
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Table(group Group) string {
	return pq.QuoteIdentifier(string(group)) + ".schema_migrations"
}

func (d postgresDialect) Ensure(group Group) []string {
	return []string{
		"create schema if not exists " + pq.QuoteIdentifier(string(group)),
		"create table if not exists " + d.Table(group) + " (version varchar(14) primary key, name text not null, applied_at timestamptz not null default now())",
	}
}

func (postgresDialect) Exists(group Group) string {
	return fmt.Sprintf("select table_name from information_schema.tables where table_schema = %s and table_name = 'schema_migrations'", pq.QuoteLiteral(string(group)))
}

func (postgresDialect) Literal(value string) string {
	return pq.QuoteLiteral(value)
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Table(group Group) string {
	return "`" + string(group) + "_schema_migrations`"
}

func (d mysqlDialect) Ensure(group Group) []string {
	return []string{
		"create table if not exists " + d.Table(group) + " (version varchar(14) primary key, name varchar(255) not null, applied_at timestamp not null default current_timestamp)",
	}
}

func (d mysqlDialect) Exists(group Group) string {
	return "select table_name from information_schema.tables where table_schema = database() and table_name = " + d.Literal(string(group)+"_schema_migrations")
}

func (mysqlDialect) Literal(value string) string {
	value = strings.Replace(value, `\`, `\\`, -1)
	return "'" + strings.Replace(value, "'", "''", -1) + "'"
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Table(group Group) string {
	return `"` + string(group) + `_schema_migrations"`
}

func (d sqliteDialect) Ensure(group Group) []string {
	return []string{
		"create table if not exists " + d.Table(group) + " (version varchar(14) primary key, name text not null, applied_at timestamp not null default current_timestamp)",
	}
}

func (d sqliteDialect) Exists(group Group) string {
	return "select name from sqlite_master where type = 'table' and name = " + d.Literal(string(group)+"_schema_migrations")
}

func (sqliteDialect) Literal(value string) string {
	return "'" + strings.Replace(value, "'", "''", -1) + "'"
}
