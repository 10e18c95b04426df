// Package datastore implements the durable stores behind the freshness ledger.
//
// CSVStore keeps the table as a single CSV file and is the default. XLSXStore
// keeps it as a single-sheet Excel workbook. SQLStore keeps the same columns
// in a SQL table through gorm, on SQLite or MySQL, and exports them as CSV.
package datastore

import (
	"fmt"
	"io"
	"strings"

	"github.com/tphakala/freshness-go/internal/conf"
	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/ledger"
	"github.com/tphakala/freshness-go/internal/logger"
)

// New returns the store selected by settings.Output.Type.
func New(settings *conf.Settings, log logger.Logger) (ledger.Store, error) {
	location, err := settings.Location()
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid ledger timezone: %w", err)).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	log = moduleLogger(log, "datastore")

	switch strings.ToLower(settings.Output.Type) {
	case conf.OutputCSV, "":
		log.Info("using CSV ledger store", logger.String("path", settings.Output.CSV.Path))
		return NewCSVStore(settings.Output.CSV.Path, location, log), nil
	case conf.OutputXLSX:
		log.Info("using Excel workbook ledger store", logger.String("path", settings.Output.XLSX.Path))
		return NewXLSXStore(settings.Output.XLSX.Path, location, log), nil
	case conf.OutputSQLite:
		log.Info("using SQLite ledger store", logger.String("path", settings.Output.SQLite.Path))
		store, err := OpenSQLite(settings.Output.SQLite.Path, location, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case conf.OutputMySQL:
		log.Info("using MySQL ledger store",
			logger.String("host", settings.Output.MySQL.Host),
			logger.String("database", settings.Output.MySQL.Database))
		store, err := OpenMySQL(MySQLConfig{
			Username: settings.Output.MySQL.Username,
			Password: settings.Output.MySQL.Password,
			Host:     settings.Output.MySQL.Host,
			Port:     settings.Output.MySQL.Port,
			Database: settings.Output.MySQL.Database,
		}, location, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.Newf("unsupported output type %q", settings.Output.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func moduleLogger(log logger.Logger, name string) logger.Logger {
	if log == nil {
		return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	}
	return log.Module(name)
}
