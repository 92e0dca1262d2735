// Package gormstorage persists last-used settings and a launch history in a
// SQL database through GORM. It works against both SQLite and Postgres.
package gormstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/OCAP2/lobbyhost/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lastSettingsID is the primary key of the single LastSettings row.
const lastSettingsID = 1

// LastSettings holds the most recently saved lobby configuration.
type LastSettings struct {
	ID          uint `gorm:"primarykey"`
	UpdatedAt   time.Time
	GameUUID    string `gorm:"size:64"`
	UpdateCount uint64
	Settings    datatypes.JSON
}

// TableName overrides the table name
func (*LastSettings) TableName() string {
	return "last_settings"
}

// LaunchRecord is one launched game.
type LaunchRecord struct {
	ID         uint      `gorm:"primarykey;autoIncrement"`
	LaunchedAt time.Time `gorm:"index"`
	GameUUID   string    `gorm:"size:64;index"`
	GameName   string    `gorm:"size:128"`
	Map        string    `gorm:"size:128"`
	Tileset    string    `gorm:"size:128"`
	Techtree   string    `gorm:"size:128"`
	Seats      int
	Settings   datatypes.JSON
}

// TableName overrides the table name
func (*LaunchRecord) TableName() string {
	return "launch_records"
}

// Models lists every table the backend migrates.
var Models = []any{&LastSettings{}, &LaunchRecord{}}

// Backend implements storage.Backend on a gorm.DB.
type Backend struct {
	db  *gorm.DB
	now func() time.Time
}

// New wraps an open connection.
func New(db *gorm.DB) *Backend {
	return &Backend{db: db, now: time.Now}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.db == nil {
		return fmt.Errorf("gorm backend has no database")
	}
	if err := b.db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

func (b *Backend) SaveLastSettings(ctx context.Context, gs *core.GameSettings) error {
	raw, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("failed to encode last settings: %w", err)
	}
	row := LastSettings{
		ID:          lastSettingsID,
		UpdatedAt:   b.now(),
		GameUUID:    gs.GameUUID,
		UpdateCount: gs.UpdateCount,
		Settings:    datatypes.JSON(raw),
	}
	err = b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save last settings: %w", err)
	}
	return nil
}

// LoadLastSettings reports fs.ErrNotExist (wrapped) when the row is absent.
func (b *Backend) LoadLastSettings(ctx context.Context) (*core.GameSettings, error) {
	var row LastSettings
	err := b.db.WithContext(ctx).First(&row, lastSettingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no saved settings: %w", fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last settings: %w", err)
	}

	gs := &core.GameSettings{}
	if err := json.Unmarshal(row.Settings, gs); err != nil {
		return nil, fmt.Errorf("failed to decode last settings: %w", err)
	}
	return gs, nil
}

// RecordLaunch appends gs to the launch history.
func (b *Backend) RecordLaunch(ctx context.Context, gs *core.GameSettings) error {
	raw, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("failed to encode launch: %w", err)
	}
	rec := LaunchRecord{
		LaunchedAt: b.now(),
		GameUUID:   gs.GameUUID,
		GameName:   gs.GameName,
		Map:        gs.Map,
		Tileset:    gs.Tileset,
		Techtree:   gs.Techtree,
		Seats:      len(gs.ActiveSeats()),
		Settings:   datatypes.JSON(raw),
	}
	if err := b.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record launch: %w", err)
	}
	return nil
}

// Launches returns the newest launch records first.
func (b *Backend) Launches(ctx context.Context, limit int) ([]LaunchRecord, error) {
	var recs []LaunchRecord
	q := b.db.WithContext(ctx).Order("launched_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list launches: %w", err)
	}
	return recs, nil
}
