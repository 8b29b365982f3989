package db

import (
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// cleanDSN adds the connection parameters we rely on to a mysql DSN
func cleanDSN(dsn string) (string, error) {
	config, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parsing mysql DSN")
	}
	if config.Collation == "" {
		config.Collation = "utf8mb4_general_ci"
	}
	config.ParseTime = true
	if config.Loc == nil || config.Loc == time.UTC {
		config.Loc = time.Local
	}
	return config.FormatDSN(), nil
}
