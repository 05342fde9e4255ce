package commands

import (
	"database/sql"

	"github.com/teranos/nanoprobe/am"
	"github.com/teranos/nanoprobe/db"
	"github.com/teranos/nanoprobe/errors"
	"github.com/teranos/nanoprobe/logger"
)

// openDatabase opens and migrates the history database.
// If dbPath is empty, the path comes from am config.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		cfg, err := am.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		dbPath = cfg.GetDatabasePath()
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.WithHint(err, "set database.path in am.toml or NANOPROBE_DATABASE_PATH")
	}
	return database, nil
}
