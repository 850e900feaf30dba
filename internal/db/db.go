package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"medtrack/internal/auth"
	"medtrack/internal/medication"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&auth.User{},
		&medication.Medication{},
	); err != nil {
		return err
	}

	// The reminder tick scans pending rows; the report query filters by owner
	// plus completion time.
	stmts := []string{
		`create index if not exists idx_medications_status on medications(status);`,
		`create index if not exists idx_medications_user_updated on medications(user_id, status, updated_at);`,
		`create index if not exists idx_medications_user_created on medications(user_id, created_at desc);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
