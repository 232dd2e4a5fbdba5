// Package pgstore persists the transfer history in PostgreSQL through gorm.
package pgstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fd1az/torus-bridge/business/history/app"
	"github.com/fd1az/torus-bridge/business/history/domain"
	"github.com/fd1az/torus-bridge/internal/logger"
)

// row is the table layout of one history item.
type row struct {
	domain.Item
	Position int `gorm:"not null"`
}

func (row) TableName() string { return "bridge_transaction_history" }

// Store keeps the snapshot in a single table. Save replaces the table
// contents inside one transaction.
type Store struct {
	db  *gorm.DB
	log logger.LoggerInterface
}

var _ app.Store = (*Store)(nil)

// Open connects to dsn and migrates the history table.
func Open(ctx context.Context, dsn string, log logger.LoggerInterface) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	return New(ctx, db, log)
}

// New wraps an open gorm handle and migrates the history table.
func New(ctx context.Context, db *gorm.DB, log logger.LoggerInterface) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(&row{}); err != nil {
		return nil, fmt.Errorf("migrate history table: %w", err)
	}
	log.Info(ctx, "history database ready", "table", row{}.TableName())
	return &Store{db: db, log: log}, nil
}

// Load implements app.Store.
func (s *Store) Load(ctx context.Context) (app.Snapshot, error) {
	var rows []row
	if err := s.db.WithContext(ctx).Order("position ASC").Find(&rows).Error; err != nil {
		return app.Snapshot{}, fmt.Errorf("load history: %w", err)
	}
	items := make([]domain.Item, 0, len(rows))
	for _, r := range rows {
		r.Item.Timestamp = r.Item.Timestamp.UTC()
		items = append(items, r.Item)
	}
	return app.Snapshot{Version: app.SnapshotVersion, Items: items}, nil
}

// Save implements app.Store.
func (s *Store) Save(ctx context.Context, snap app.Snapshot) error {
	started := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&row{}).Error; err != nil {
			return err
		}
		if len(snap.Items) == 0 {
			return nil
		}
		rows := make([]row, len(snap.Items))
		for i, it := range snap.Items {
			rows[i] = row{Item: it, Position: i}
		}
		return tx.CreateInBatches(rows, 100).Error
	})
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	s.log.Debug(ctx, "history saved", "items", len(snap.Items), "duration", time.Since(started))
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
