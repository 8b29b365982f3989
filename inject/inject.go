package inject

import (
	"os"

	"github.com/google/wire"
	"github.com/sirupsen/logrus"

	"github.com/titpetric/cmsmigrate/migrate"
	"github.com/titpetric/cmsmigrate/migrations"
)

// Logger produces the JSON structured logger used by services
func Logger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}
	return log
}

// Runner produces a migration runner over the embedded catalog
func Runner(log logrus.FieldLogger, ids migrate.IDGenerator) (*migrate.Runner, error) {
	catalog, err := migrations.Catalog()
	if err != nil {
		return nil, err
	}
	runner := migrate.NewRunner(catalog, log)
	runner.IDs = ids
	return runner, nil
}

// Inject is the main ProviderSet for wire
var Inject = wire.NewSet(
	Logger,
	RunIDs,
	NewHTTPClient,
	Runner,
)
