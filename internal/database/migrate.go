package database

import (
	"encoding/json"
	"fmt"

	"chemformula/internal/auth"
	"chemformula/internal/model"
	"chemformula/pkg/logger"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSettings are inserted once; later edits are kept.
var DefaultSettings = map[string]string{
	"company_name":        "Chemical Formulas Inc.",
	"quote_validity_days": "30",
	"default_currency":    "USD",
}

func schemaModels() []interface{} {
	return []interface{}{
		&model.Role{},
		&model.User{},
		&model.Formula{},
		&model.FormulaComponent{},
		&model.Quote{},
		&model.QuoteItem{},
		&model.Resource{},
		&model.Approval{},
		&model.ActivityLog{},
		&model.Setting{},
	}
}

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "202610140001_initial_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(schemaModels()...)
			},
			Rollback: func(tx *gorm.DB) error {
				models := schemaModels()
				for i := len(models) - 1; i >= 0; i-- {
					if err := tx.Migrator().DropTable(models[i]); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			ID:      "202610140002_seed_roles",
			Migrate: SeedRoles,
			Rollback: func(tx *gorm.DB) error {
				return tx.Where("1 = 1").Delete(&model.Role{}).Error
			},
		},
		{
			ID: "202610140003_default_settings",
			Migrate: func(tx *gorm.DB) error {
				for key, value := range DefaultSettings {
					s := model.Setting{Key: key, Value: value}
					if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&s).Error; err != nil {
						return fmt.Errorf("seed setting %s: %w", key, err)
					}
				}
				return nil
			},
		},
	}
}

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB, log *logger.Logger) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Info("database schema up to date")
	return nil
}

// SeedRoles upserts one row per role with its capability list.
func SeedRoles(tx *gorm.DB) error {
	for _, r := range auth.AllRoles {
		perms, err := json.Marshal(r.Capabilities())
		if err != nil {
			return err
		}
		row := model.Role{RoleName: string(r), Permissions: datatypes.JSON(perms)}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "role_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"permissions"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("seed role %s: %w", r, err)
		}
	}
	return nil
}
