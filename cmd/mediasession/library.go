package main

import (
	"context"
	"errors"
	"fmt"

	"mediasession/internal/catalog"
	"mediasession/internal/config"
	"mediasession/internal/database"
	"mediasession/internal/library"
	"mediasession/internal/metadata"

	"github.com/sirupsen/logrus"
)

// openCatalog builds the catalog from the library index, or returns the
// builtin demo catalog when no library is configured or nothing is indexed.
// The database is nil for the builtin catalog.
func openCatalog(ctx context.Context, cfg *config.Config, extractor *metadata.Extractor, logger *logrus.Logger) (*catalog.Catalog, *database.Database, error) {
	if cfg.Library.Path == "" {
		logger.Info("No library configured, using builtin catalog")
		return catalog.Builtin(), nil, nil
	}

	db, err := database.NewDatabase(cfg.Database.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing database: %w", err)
	}

	if cfg.Library.ScanOnStartup {
		scanner := library.NewScanner(extractor, db, logger)
		if _, err := scanner.Scan(ctx, cfg.Library.Path); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("scanning music library: %w", err)
		}
	} else {
		logger.Info("Skipping library scan (disabled in config)")
	}

	c, err := library.LoadCatalog(db)
	if errors.Is(err, catalog.ErrEmpty) {
		logger.WithFields(logrus.Fields{
			"library_path":      cfg.Library.Path,
			"supported_formats": cfg.Library.SupportedFormats,
		}).Warn("No supported audio files found in music directory, using builtin catalog")
		return catalog.Builtin(), db, nil
	}
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	logger.WithField("tracks", c.Len()).Info("Loaded catalog from library index")
	return c, db, nil
}
