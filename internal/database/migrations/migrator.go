package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

// Files holds the SQL migrations shipped with the binary
//
//go:embed sql/*.sql
var Files embed.FS

// Migration represents a database migration
type Migration struct {
	ID string
	Up func(*gorm.DB) error
}

var (
	migrations = make(map[string]Migration)
	mu         sync.Mutex
)

// Register adds a new migration to the registry
func Register(id string, up func(*gorm.DB) error) {
	mu.Lock()
	defer mu.Unlock()
	migrations[id] = Migration{ID: id, Up: up}
}

// pending returns registered migration IDs not yet executed, in lexical order
func pending(executed map[string]bool) []string {
	mu.Lock()
	defer mu.Unlock()

	var ids []string
	for id := range migrations {
		if !executed[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func lookup(id string) Migration {
	mu.Lock()
	defer mu.Unlock()
	return migrations[id]
}

// RunMigrations executes all pending migrations
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var executed []MigrationRecord
	if err := db.Find(&executed).Error; err != nil {
		return fmt.Errorf("failed to get executed migrations: %w", err)
	}

	executedMap := make(map[string]bool)
	for _, m := range executed {
		executedMap[m.ID] = true
	}

	for _, id := range pending(executedMap) {
		migration := lookup(id)
		logger.Info("Running migration", "id", id)

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{ID: id}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to run migration %s: %w", id, err)
		}
		logger.Info("Completed migration", "id", id)
	}

	return nil
}

// MigrationRecord represents a record of executed migrations
type MigrationRecord struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt int64  `gorm:"autoCreateTime"`
}

// LoadSQLMigrations registers every *.sql file under sql/ in fsys
func LoadSQLMigrations(fsys fs.FS) error {
	files, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		id := strings.TrimSuffix(file.Name(), ".sql")

		content, err := fs.ReadFile(fsys, path.Join("sql", file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
		}

		statement := string(content)
		Register(id, func(db *gorm.DB) error {
			return db.Exec(statement).Error
		})
	}

	return nil
}
