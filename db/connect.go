package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/degencred/credbot/internal/models"
	"github.com/degencred/credbot/utils"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

type Options struct {
	Driver       string
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// ConnectDb opens the ledger store. Postgres is the pooled production
// backend; sqlite serves single-host deployments and tests.
func ConnectDb(opts Options, log *utils.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "postgres":
		url := opts.URL
		if strings.HasPrefix(url, "postgres://") {
			url = "postgresql://" + strings.TrimPrefix(url, "postgres://")
		}
		dialector = postgres.New(postgres.Config{
			DSN:                  url,
			PreferSimpleProtocol: true,
		})
	case "sqlite":
		if !strings.HasPrefix(opts.URL, "file:") && opts.URL != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(opts.URL), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(opts.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Error),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	log.Info("✅ Database connection successfully")

	log.Info("📦 Setting database connection pool...")
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 5
	}
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func Close(db *gorm.DB, log *utils.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Errorf("Failed to get database handle: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Errorf("Failed to close database: %v", err)
		return
	}
	log.Info("Database connection closed")
}

func Migrate(db *gorm.DB, trigger bool, log *utils.Logger) error {
	if trigger {
		log.Info("📦 Migrating database...")
		models := []interface{}{
			&models.User{},
			&models.Admin{},
			&models.AccessFeeSubmission{},
			&models.ReputationTransaction{},
			&models.Loan{},
		}

		if err := db.AutoMigrate(models...); err != nil {
			log.Errorf("✖ Failed to migrate database: %v", err)
			return err
		}
	}

	log.Info("✅ Database migrated successfully")
	return nil
}

// SeedAdmins inserts the configured admin ids; existing rows are kept.
func SeedAdmins(db *gorm.DB, adminIDs []int64, log *utils.Logger) error {
	if len(adminIDs) == 0 {
		log.Warn("No admin ids configured")
		return nil
	}
	admins := make([]models.Admin, 0, len(adminIDs))
	for _, id := range adminIDs {
		admins = append(admins, models.Admin{UserID: id})
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&admins).Error; err != nil {
		log.Errorf("✖ Failed to seed admins: %v", err)
		return err
	}
	log.Infof("Seeded %d admin(s)", len(admins))
	return nil
}
