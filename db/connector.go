package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ConnectWithRetry uses retry options set in ConnectionOptions{}
func ConnectWithRetry(ctx context.Context, options ConnectionOptions) (*sqlx.DB, error) {
	dsn := MaskDSN(options.Credentials.DSN)
	log := logrus.WithField("dsn", dsn)

	if options.Retries < 1 {
		options.Retries = 1
	}
	if options.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.ConnectTimeout)
		defer cancel()
	}

	log.Info("connecting to database")

	var err error
	for try := 1; try <= options.Retries; try++ {
		var handle *sqlx.DB
		handle, err = ConnectWithOptions(ctx, options)
		if err == nil {
			return handle, nil
		}
		log.WithError(err).WithField("try", try).Warn("can't connect")

		if try == options.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "db connect cancelled, dsn=%s, tries=%d", dsn, try)
		case <-time.After(options.RetryDelay):
		}
	}
	return nil, errors.Wrapf(err, "could not connect, dsn=%s, tries=%d", dsn, options.Retries)
}
