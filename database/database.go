package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"reflect"
	"time"

	"stocks-social/apperr"
	"stocks-social/config"
	"stocks-social/models"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var (
	ErrInvalidBatchSize = fmt.Errorf("invalid batch size")
	ErrInvalidData      = fmt.Errorf("invalid data, expected slice")
)

// Store owns the connection pool. Components receive it through their
// constructors; there is no package-level handle.
type Store struct {
	DB      *gorm.DB
	timeout time.Duration
	log     zerolog.Logger
}

// Open connects to the configured relational store.
func Open(cfg config.DBConfig, logLevel string, log zerolog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	level := gormlogger.Warn
	if logLevel == "debug" {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// sqlite allows a single writer; one connection keeps in-memory
		// databases shared and serializes transactions.
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping the database: %w", err)
	}

	return New(db, cfg.Timeout, log), nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, timeout time.Duration, log zerolog.Logger) *Store {
	return &Store{
		DB:      db,
		timeout: timeout,
		log:     log.With().Str("component", "database").Logger(),
	}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates every table.
func (s *Store) Migrate() error {
	return s.DB.AutoMigrate(models.All()...)
}

// Transaction runs fn inside a database transaction bounded by the store
// timeout. It commits when fn returns nil and rolls back on an error or a
// panic. Errors from fn that are already *apperr.Error pass through; any
// other failure is classified as StoreUnavailable or OperationFailed.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx := s.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return s.classify(ctx, tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, gorm.ErrInvalidTransaction) {
			s.log.Warn().Err(rbErr).Msg("Rollback failed")
		}
		return s.classify(ctx, err)
	}

	if err := tx.Commit().Error; err != nil {
		return s.classify(ctx, err)
	}
	return nil
}

// Read runs fn against the pool with the store timeout applied.
func (s *Store) Read(ctx context.Context, fn func(db *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := fn(s.DB.WithContext(ctx)); err != nil {
		return s.classify(ctx, err)
	}
	return nil
}

// CreateInBatches inserts a slice in chunks within one transaction. With
// skipConflicts, rows colliding with an existing primary key are ignored.
// It returns the number of rows actually inserted.
func (s *Store) CreateInBatches(ctx context.Context, data any, batchSize int, skipConflicts bool) (int64, error) {
	if batchSize <= 0 {
		return 0, ErrInvalidBatchSize
	}

	slice := reflect.ValueOf(data)
	if slice.Kind() != reflect.Slice {
		return 0, ErrInvalidData
	}

	var inserted int64
	err := s.Transaction(ctx, func(tx *gorm.DB) error {
		if skipConflicts {
			tx = tx.Clauses(clause.OnConflict{DoNothing: true})
		}

		total := slice.Len()
		for i := 0; i < total; i += batchSize {
			end := i + batchSize
			if end > total {
				end = total
			}

			chunk := slice.Slice(i, end).Interface()
			res := tx.Create(chunk)
			if res.Error != nil {
				return fmt.Errorf("batch insert failed: %w", res.Error)
			}
			inserted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) classify(ctx context.Context, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	if isUnavailable(err) || ctx.Err() != nil {
		s.log.Warn().Err(err).Msg("Store unavailable")
		return apperr.Wrap(apperr.KindStoreUnavailable, err, "store unavailable, try again")
	}

	s.log.Error().Err(err).Msg("Store operation failed")
	return apperr.Wrap(apperr.KindOperationFailed, err, "operation failed")
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
