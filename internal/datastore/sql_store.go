package datastore

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/ledger"
	"github.com/tphakala/freshness-go/internal/logger"
)

const (
	// DefaultSlowQueryThreshold is the duration after which a query is logged as slow.
	DefaultSlowQueryThreshold = 200 * time.Millisecond

	insertBatchSize = 100
)

// LedgerRow is the SQL form of a ledger entry. Column names follow the
// durable table header.
type LedgerRow struct {
	SNo              int    `gorm:"column:s_no;primaryKey;autoIncrement:false"`
	Product          string `gorm:"column:product;size:255;not null;uniqueIndex"`
	FreshCount       int    `gorm:"column:fresh_count;not null"`
	LastDetectedTime string `gorm:"column:last_detected_time;size:19;not null"`
	ExpectedLifeSpan string `gorm:"column:expected_life_span;size:16;not null"`
}

// TableName overrides the gorm default.
func (LedgerRow) TableName() string {
	return "ledger_entries"
}

// SQLStore keeps the ledger in a SQL table through gorm.
type SQLStore struct {
	db       *gorm.DB
	dialect  string
	location *time.Location
	log      logger.Logger
	// exists is false until the table has been written at least once
	exists atomic.Bool
}

// MySQLConfig holds the connection parameters for OpenMySQL.
type MySQLConfig struct {
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

// OpenSQLite opens or creates the SQLite database at path.
func OpenSQLite(path string, location *time.Location, log logger.Logger) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, errors.New(fmt.Errorf("failed to create database directory: %w", err)).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
	}

	log = moduleLogger(log, "sqlite")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, DefaultSlowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open SQLite database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}
	return newSQLStore(db, "SQLite", location, log)
}

// DSN formats cfg as a go-sql-driver data source name.
func (cfg MySQLConfig) DSN() string {
	dc := mysqldriver.NewConfig()
	dc.User = cfg.Username
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	dc.DBName = cfg.Database
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}

// OpenMySQL connects to the MySQL database described by cfg.
func OpenMySQL(cfg MySQLConfig, location *time.Location, log logger.Logger) (*SQLStore, error) {
	dsn := cfg.DSN()

	log = moduleLogger(log, "mysql")
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, DefaultSlowQueryThreshold),
	})
	if err != nil {
		log.Error("failed to open MySQL database",
			logger.String("host", cfg.Host),
			logger.String("port", cfg.Port),
			logger.String("database", cfg.Database),
			logger.Error(err))
		return nil, errors.New(fmt.Errorf("failed to open MySQL database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("host", cfg.Host).
			Context("database", cfg.Database).
			Build()
	}
	return newSQLStore(db, "MySQL", location, log)
}

func newSQLStore(db *gorm.DB, dialect string, location *time.Location, log logger.Logger) (*SQLStore, error) {
	if location == nil {
		location = time.Local
	}
	s := &SQLStore{db: db, dialect: dialect, location: location, log: log}

	existed := db.Migrator().HasTable(&LedgerRow{})
	if err := db.AutoMigrate(&LedgerRow{}); err != nil {
		_ = s.Close()
		return nil, errors.New(fmt.Errorf("failed to auto-migrate %s database: %w", dialect, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	s.exists.Store(existed)

	log.Debug("database initialized",
		logger.String("dialect", dialect),
		logger.Bool("existing_table", existed))
	return s, nil
}

// DB exposes the gorm handle.
func (s *SQLStore) DB() *gorm.DB {
	return s.db
}

// Load reads every row ordered by S No.
func (s *SQLStore) Load(ctx context.Context) ([]ledger.Entry, error) {
	if !s.exists.Load() {
		return nil, errors.New(fmt.Errorf("%w: table %s", ledger.ErrStoreNotFound, LedgerRow{}.TableName())).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}

	var rows []LedgerRow
	if err := s.db.WithContext(ctx).Order("s_no ASC").Find(&rows).Error; err != nil {
		return nil, s.dbError("load", err)
	}

	entries := make([]ledger.Entry, 0, len(rows))
	for i, row := range rows {
		e, err := decodeRow([]string{
			strconv.Itoa(row.SNo),
			row.Product,
			strconv.Itoa(row.FreshCount),
			row.LastDetectedTime,
			row.ExpectedLifeSpan,
		}, s.location)
		if err != nil {
			return nil, corruptTable(err, i+1)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Save replaces the table content with entries inside one transaction.
func (s *SQLStore) Save(ctx context.Context, entries []ledger.Entry) error {
	rows := make([]LedgerRow, len(entries))
	for i := range entries {
		rows[i] = toRow(&entries[i])
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&LedgerRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return s.dbError("save", err)
	}

	s.exists.Store(true)
	return nil
}

// Export renders the table in the same CSV form the file store writes.
func (s *SQLStore) Export(ctx context.Context, w io.Writer) error {
	entries, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return EncodeTable(w, entries)
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.dbError("close", err)
	}
	if err := sqlDB.Close(); err != nil {
		return s.dbError("close", err)
	}
	return nil
}

func (s *SQLStore) dbError(op string, err error) error {
	return errors.New(fmt.Errorf("%s %s: %w", s.dialect, op, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}

func toRow(e *ledger.Entry) LedgerRow {
	return LedgerRow{
		SNo:              e.Sequence,
		Product:          e.Product,
		FreshCount:       e.FreshCount,
		LastDetectedTime: e.LastSeen.Format(TimeLayout),
		ExpectedLifeSpan: e.Lifespan.String(),
	}
}
