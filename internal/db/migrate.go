package db

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gorm.io/gorm"

	"github.com/soaringjerry/stsportal/internal/models"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

type migrationFile struct {
	name string
	data []byte
}

// Migrate creates or alters the tables from the models, then applies the
// SQL files that AutoMigrate cannot express (partial indexes).
func Migrate(gdb *gorm.DB, migrationsDir string) error {
	err := gdb.AutoMigrate(
		&models.Collaborative{},
		&models.Team{},
		&models.AccessCode{},
		&models.AssessmentSession{},
		&models.DemographicsRecord{},
		&models.StssRecord{},
		&models.ProqolRecord{},
		&models.StsioaRecord{},
		&models.User{},
		&models.RevokedToken{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return RunMigrations(gdb, migrationsDir)
}

// RunMigrations executes migrations from the given directory, falling back to embedded files.
// Every file must be idempotent because it runs on each start.
func RunMigrations(gdb *gorm.DB, migrationsDir string) error {
	files, err := loadMigrations(migrationsDir)
	if err != nil {
		return err
	}
	for _, mf := range files {
		if len(mf.data) == 0 {
			continue
		}
		if err := gdb.Exec(string(mf.data)).Error; err != nil {
			return fmt.Errorf("exec migration %s: %w", mf.name, err)
		}
	}
	return nil
}

func loadMigrations(dir string) ([]migrationFile, error) {
	var files []migrationFile
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, entry := range entries {
				if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
					continue
				}
				content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
				if err != nil {
					return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
				}
				files = append(files, migrationFile{name: entry.Name(), data: content})
			}
			sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
			return files, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read migrations: %w", err)
		}
	}

	entries, err := embeddedMigrations.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		// embed.FS paths always use forward slashes.
		content, err := embeddedMigrations.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded migration %s: %w", entry.Name(), err)
		}
		files = append(files, migrationFile{name: entry.Name(), data: content})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, nil
}
