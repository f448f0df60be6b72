package ormdb

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ForeignKey is a named constraint added after AutoMigrate. Models carry no
// gorm associations, so the constraints are declared explicitly to get the
// same names as the Postgres migrations.
type ForeignKey struct {
	Name      string
	Table     string
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  string
}

// Schema is the part of the database owned by one domain package.
type Schema struct {
	Models      []any
	ForeignKeys []ForeignKey
}

func (fk ForeignKey) sql() string {
	onDelete := fk.OnDelete
	if onDelete == "" {
		onDelete = "RESTRICT"
	}
	return fmt.Sprintf("ALTER TABLE `%s` ADD CONSTRAINT `%s` FOREIGN KEY (`%s`) REFERENCES `%s` (`%s`) ON DELETE %s",
		fk.Table, fk.Name, fk.Column, fk.RefTable, fk.RefColumn, onDelete)
}

// Migrate syncs the tables of every schema, in order, and then adds any
// missing foreign keys. It returns the names of the constraints it created.
func Migrate(ctx context.Context, db *gorm.DB, schemas ...Schema) ([]string, error) {
	db = db.WithContext(ctx)

	var models []any
	for _, s := range schemas {
		models = append(models, s.Models...)
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	var created []string
	m := db.Migrator()
	for _, s := range schemas {
		for _, fk := range s.ForeignKeys {
			if m.HasConstraint(fk.Table, fk.Name) {
				continue
			}
			if err := db.Exec(fk.sql()).Error; err != nil {
				return created, fmt.Errorf("add constraint %s: %w", fk.Name, TranslateError(err))
			}
			created = append(created, fk.Name)
		}
	}
	return created, nil
}
