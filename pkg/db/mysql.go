package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/codesweep/codesweep/internal/model"
)

// Open connects to MySQL and migrates the pipeline tables.
func Open(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Migrate creates or updates the schema for every pipeline model.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&model.Project{},
		&model.ProjectFile{},
		&model.Scan{},
		&model.Finding{},
		&model.Report{},
	)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
