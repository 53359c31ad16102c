package staffapply

import (
	"context"
	"errors"
	"fmt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	dbTypeSQLite   = "sqlite"
	dbTypePostgres = "postgres"
)

var (
	sqliteMaxOpenConns    = 1
	sqliteMaxIdleConns    = 1
	sqliteMaxConnLifetime = 5 * time.Minute
	sqliteExecPragma      = []string{
		"pragma journal_mode=WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
		"pragma foreign_keys = ON;",
	}
	dbOperationTimeout = 30 * time.Second
)

// database wraps a GORM connection and implements [Store]. In
// non-concurrent write mode (SQLite), writes are serialized through a
// mutex; reads go straight to the connection.
type database struct {
	db                     *gorm.DB
	mu                     sync.Mutex
	logger                 *slog.Logger
	enableConcurrentWrites bool
}

// NewDatabase initializes a new database instance implementing [Store].
func NewDatabase(
	db *gorm.DB,
	log *slog.Logger,
	enableConcurrentWrites bool,
) Store {
	if log == nil {
		log = slog.Default()
	}
	return &database{
		db:                     db,
		logger:                 log.With(loggerNameKey, "writedb"),
		enableConcurrentWrites: enableConcurrentWrites,
	}
}

func (d *database) DB() *gorm.DB {
	return d.db
}

func (d *database) Lock() {
	if d.enableConcurrentWrites {
		return
	}
	d.mu.Lock()
}

func (d *database) Unlock() {
	if d.enableConcurrentWrites {
		return
	}
	d.mu.Unlock()
}

// withTimeout adds the default operation deadline to contexts that
// don't already carry one.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, dbOperationTimeout)
}

// ServerSettings returns the committed settings for a guild, or
// (nil, nil) when the guild hasn't completed setup.
func (d *database) ServerSettings(ctx context.Context, guildID string) (
	*ServerSettings,
	error,
) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var settings ServerSettings
	err := d.db.WithContext(ctx).Where(
		"guild_id = ?", guildID,
	).Last(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

// SaveServerSettings upserts a guild's settings, keyed on guild ID.
func (d *database) SaveServerSettings(
	ctx context.Context,
	settings *ServerSettings,
) error {
	d.Lock()
	defer d.Unlock()
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return d.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}},
			UpdateAll: true,
		},
	).Create(settings).Error
}

// TempSettings returns a guild's setup wizard scratch row, or
// (nil, nil) when no wizard is in progress.
func (d *database) TempSettings(ctx context.Context, guildID string) (
	*TempSettings,
	error,
) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var settings TempSettings
	err := d.db.WithContext(ctx).Where(
		"guild_id = ?", guildID,
	).Last(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

// SaveTempSettings upserts a guild's setup wizard scratch row.
func (d *database) SaveTempSettings(
	ctx context.Context,
	settings *TempSettings,
) error {
	d.Lock()
	defer d.Unlock()
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return d.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}},
			UpdateAll: true,
		},
	).Create(settings).Error
}

// DeleteTempSettings removes a guild's setup wizard scratch row.
// Deleting an absent row is not an error.
func (d *database) DeleteTempSettings(
	ctx context.Context,
	guildID string,
) error {
	d.Lock()
	defer d.Unlock()
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return d.db.WithContext(ctx).Unscoped().Where(
		"guild_id = ?", guildID,
	).Delete(&TempSettings{}).Error
}

// GuildStats returns a guild's counters, zero-valued when no row exists.
func (d *database) GuildStats(ctx context.Context, guildID string) (
	*Stats,
	error,
) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var stats Stats
	err := d.db.WithContext(ctx).Where(
		"guild_id = ?", guildID,
	).Last(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Stats{GuildID: guildID}, nil
		}
		return nil, err
	}
	return &stats, nil
}

// IncrementStat atomically increments a single counter column for a
// guild, creating the row if it doesn't exist yet.
func (d *database) IncrementStat(
	ctx context.Context,
	guildID string,
	column string,
	delta int64,
) error {
	seed := Stats{GuildID: guildID}
	switch column {
	case columnStatsTotalApplications:
		seed.TotalApplications = delta
	case columnStatsAcceptedApplications:
		seed.AcceptedApplications = delta
	case columnStatsRejectedApplications:
		seed.RejectedApplications = delta
	case columnStatsBlockedUsers:
		seed.BlockedUsers = delta
	default:
		return fmt.Errorf("unknown stats column: %s", column)
	}

	d.Lock()
	defer d.Unlock()
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return d.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "guild_id"}},
			DoUpdates: clause.Assignments(
				map[string]any{
					column: gorm.Expr(fmt.Sprintf("%s + ?", column), delta),
				},
			),
		},
	).Create(&seed).Error
}

// Application returns a user's global application record, or (nil, nil)
// if the user has never applied.
func (d *database) Application(ctx context.Context, userID string) (
	*Application,
	error,
) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var app Application
	err := d.db.WithContext(ctx).Where(
		"user_id = ?", userID,
	).Last(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

// ApplicationEntries returns a user's submitted applications in
// submission order.
func (d *database) ApplicationEntries(ctx context.Context, userID string) (
	[]ApplicationEntry,
	error,
) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var entries []ApplicationEntry
	err := d.db.WithContext(ctx).Where(
		"user_id = ?", userID,
	).Order("submitted_at asc").Find(&entries).Error
	return entries, err
}

// RecordSubmission appends a submitted application form and stamps the
// user's LastApplicationTime, in a single transaction.
func (d *database) RecordSubmission(
	ctx context.Context,
	entry *ApplicationEntry,
) error {
	d.Lock()
	defer d.Unlock()
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return d.db.WithContext(ctx).Transaction(
		func(tx *gorm.DB) error {
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
			return tx.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "user_id"}},
					DoUpdates: clause.Assignments(
						map[string]any{
							columnApplicationLastApplicationTime: entry.SubmittedAt,
						},
					),
				},
			).Create(
				&Application{
					UserID:              entry.UserID,
					LastApplicationTime: entry.SubmittedAt,
				},
			).Error
		},
	)
}

// SetApplicationStatus records an accept/reject decision on a user's
// application record.
func (d *database) SetApplicationStatus(
	ctx context.Context,
	userID string,
	status string,
) error {
	d.Lock()
	defer d.Unlock()
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return d.db.WithContext(ctx).Model(&Application{}).Where(
		"user_id = ?", userID,
	).Update(columnApplicationLastStatus, status).Error
}

// ClearCooldown resets a user's LastApplicationTime to the epoch.
// Returns false when the user has no application record; no record is
// created in that case.
func (d *database) ClearCooldown(ctx context.Context, userID string) (
	bool,
	error,
) {
	d.Lock()
	defer d.Unlock()
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rv := d.db.WithContext(ctx).Model(&Application{}).Where(
		"user_id = ?", userID,
	).Update(columnApplicationLastApplicationTime, 0)
	if rv.Error != nil {
		return false, rv.Error
	}
	return rv.RowsAffected > 0, nil
}

// IsBlocked reports whether a user is on a guild's blocklist.
func (d *database) IsBlocked(
	ctx context.Context,
	guildID string,
	userID string,
) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var count int64
	err := d.db.WithContext(ctx).Model(&Blocklist{}).Where(
		"guild_id = ? AND user_id = ?", guildID, userID,
	).Count(&count).Error
	return count > 0, err
}

// Block adds a user to a guild's blocklist. Returns false without
// writing when the user is already blocked.
func (d *database) Block(
	ctx context.Context,
	guildID string,
	userID string,
) (bool, error) {
	blocked, err := d.IsBlocked(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	d.Lock()
	defer d.Unlock()
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = d.db.WithContext(ctx).Create(
		&Blocklist{GuildID: guildID, UserID: userID},
	).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// Unblock removes a user from a guild's blocklist. Returns false when
// the user wasn't blocked.
func (d *database) Unblock(
	ctx context.Context,
	guildID string,
	userID string,
) (bool, error) {
	d.Lock()
	defer d.Unlock()
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rv := d.db.WithContext(ctx).Unscoped().Where(
		"guild_id = ? AND user_id = ?", guildID, userID,
	).Delete(&Blocklist{})
	if rv.Error != nil {
		return false, rv.Error
	}
	return rv.RowsAffected > 0, nil
}

// BlockedCount returns the number of blocklist rows for a guild.
func (d *database) BlockedCount(ctx context.Context, guildID string) (
	int64,
	error,
) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var count int64
	err := d.db.WithContext(ctx).Model(&Blocklist{}).Where(
		"guild_id = ?", guildID,
	).Count(&count).Error
	return count, err
}

// CreateInteractionLog records an inbound interaction.
func (d *database) CreateInteractionLog(
	ctx context.Context,
	entry *InteractionLog,
) error {
	d.Lock()
	defer d.Unlock()
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return d.db.WithContext(ctx).Create(entry).Error
}

// Store defines the persistence operations the bot uses. This is here
// primarily to enable mocking of database operations for testing.
// [database] implements this interface for 'real' DB operations.
//
// Lookup methods report absence as (nil, nil), never as an error.
type Store interface {
	DB() *gorm.DB
	Lock()
	Unlock()

	ServerSettings(ctx context.Context, guildID string) (*ServerSettings, error)
	SaveServerSettings(ctx context.Context, settings *ServerSettings) error
	TempSettings(ctx context.Context, guildID string) (*TempSettings, error)
	SaveTempSettings(ctx context.Context, settings *TempSettings) error
	DeleteTempSettings(ctx context.Context, guildID string) error

	GuildStats(ctx context.Context, guildID string) (*Stats, error)
	IncrementStat(
		ctx context.Context,
		guildID string,
		column string,
		delta int64,
	) error

	Application(ctx context.Context, userID string) (*Application, error)
	ApplicationEntries(ctx context.Context, userID string) ([]ApplicationEntry, error)
	RecordSubmission(ctx context.Context, entry *ApplicationEntry) error
	SetApplicationStatus(ctx context.Context, userID string, status string) error
	ClearCooldown(ctx context.Context, userID string) (bool, error)

	IsBlocked(ctx context.Context, guildID string, userID string) (bool, error)
	Block(ctx context.Context, guildID string, userID string) (bool, error)
	Unblock(ctx context.Context, guildID string, userID string) (bool, error)
	BlockedCount(ctx context.Context, guildID string) (int64, error)

	CreateInteractionLog(ctx context.Context, entry *InteractionLog) error
}

// CreateDB initializes and returns a GORM database connection based on
// the specified database type, and auto-migrates the schema.
//
// Parameters:
//   - ctx: The context for the database operations.
//   - databaseType: The type of the database, must be 'sqlite' or 'postgres'.
//   - database: The database connection string, or SQLite file path.
func CreateDB(
	ctx context.Context,
	databaseType string,
	database string,
	logHandler slog.Handler,
	slowThreshold time.Duration,
) (*gorm.DB, error) {
	gormLogger := newGORMLogger(logHandler, slowThreshold)
	dbLogger := slog.New(logHandler)

	dbLogger.InfoContext(
		ctx,
		"Initializing database",
		"database_type", databaseType,
		"database", database,
	)
	db, err := getDB(databaseType, database, gormLogger)
	if err != nil {
		return db, err
	}

	txn := db.WithContext(ctx).Begin()

	mg := txn.Migrator()
	err = mg.AutoMigrate(
		&ServerSettings{},
		&TempSettings{},
		&Stats{},
		&Application{},
		&ApplicationEntry{},
		&Blocklist{},
		&InteractionLog{},
	)
	if err != nil {
		return db, err
	}

	commitErr := txn.Commit().Error
	if commitErr != nil {
		return db, commitErr
	}

	return db, nil
}

// getDB initializes and returns a GORM database connection based on the
// specified database type.
func getDB(
	databaseType string,
	database string,
	gormLogger *gormStructuredLogger,
) (*gorm.DB, error) {
	switch databaseType {
	case dbTypeSQLite:
		parentDir := filepath.Dir(database)
		if parentDir != "" {
			if err := os.MkdirAll(parentDir, 0755); err != nil {
				if !errors.Is(err, os.ErrExist) {
					return nil, err
				}
			}
		}
		db, err := gorm.Open(
			sqlite.Open(database),
			&gorm.Config{
				Logger: gormLogger,
				NowFunc: func() time.Time {
					return time.Now().UTC()
				},
			},
		)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(sqliteMaxOpenConns)
		sqlDB.SetMaxIdleConns(sqliteMaxIdleConns)
		sqlDB.SetConnMaxLifetime(sqliteMaxConnLifetime)
		for _, pragma := range sqliteExecPragma {
			if err = db.Exec(pragma).Error; err != nil {
				return nil, err
			}
		}
		return db, nil
	case dbTypePostgres:
		return gorm.Open(
			postgres.Open(database), &gorm.Config{
				Logger: gormLogger,
				NowFunc: func() time.Time {
					return time.Now().UTC()
				},
			},
		)
	default:
		return nil, fmt.Errorf(
			"unsupported database type: %s (must be %q or %q)",
			databaseType, dbTypeSQLite, dbTypePostgres,
		)
	}
}
