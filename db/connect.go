package db

import (
	"context"
	"database/sql"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.elastic.co/apm/module/apmsql"

	// instrumented drivers, registered as "postgres" and "mysql"
	_ "go.elastic.co/apm/module/apmsql/mysql"
	_ "go.elastic.co/apm/module/apmsql/pq"

	// registered as "sqlite"
	_ "modernc.org/sqlite"
)

// Connect connects to a database and produces the handle for injection
func Connect(ctx context.Context) (*sqlx.DB, error) {
	options := ConnectionOptions{}
	options.Credentials.DSN = os.Getenv("DB_DSN")
	options.Credentials.Driver = os.Getenv("DB_DRIVER")
	return ConnectWithOptions(ctx, options)
}

// ConnectWithOptions connect to host based on ConnectionOptions{}
func ConnectWithOptions(ctx context.Context, options ConnectionOptions) (*sqlx.DB, error) {
	credentials := options.Credentials
	if credentials.DSN == "" {
		return nil, errors.New("DSN not provided")
	}
	if credentials.Driver == "" {
		credentials.Driver = DefaultDriver
	}
	if credentials.Driver == "mysql" {
		dsn, err := cleanDSN(credentials.DSN)
		if err != nil {
			return nil, err
		}
		credentials.DSN = dsn
	}

	var (
		conn *sql.DB
		err  error
	)
	switch {
	case options.Connector != nil:
		conn, err = options.Connector(ctx, credentials)
	case credentials.Driver == "sqlite":
		conn, err = sql.Open(credentials.Driver, credentials.DSN)
	default:
		conn, err = apmsql.Open(credentials.Driver, credentials.DSN)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	handle := sqlx.NewDb(conn, credentials.Driver)
	if credentials.Driver == "sqlite" && options.MaxOpenConns == 0 {
		// every connection to :memory: is a separate database
		options.MaxOpenConns = 1
	}
	if options.MaxOpenConns > 0 {
		handle.SetMaxOpenConns(options.MaxOpenConns)
	}

	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, errors.WithStack(err)
	}
	return handle, nil
}
