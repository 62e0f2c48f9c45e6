package services

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pubfuse/models"
)

// newTestDB öffnet eine isolierte In-Memory-Datenbank mit migriertem Schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("test-db konnte nicht geöffnet werden: %v", err)
	}
	err = db.AutoMigrate(
		&models.Organization{},
		&models.Author{},
		&models.Affiliation{},
		&models.Venue{},
		&models.Deal{},
		&models.Work{},
		&models.WorkLocation{},
		&models.WorkAuthorship{},
		&models.RepositoryRecord{},
		&models.AuditEntry{},
	)
	if err != nil {
		t.Fatalf("auto-migration fehlgeschlagen: %v", err)
	}
	return db
}

func newTestDirectory(db *gorm.DB) *InstitutionDirectory {
	return NewInstitutionDirectory(db, zap.NewNop(),
		"Leiden University", "https://ror.org/027bh9e22", "NL",
		[]string{"Universiteit Leiden", "Leiden Univ", "LEI"})
}

func newTestResolver(db *gorm.DB) *Resolver {
	return NewResolver(db, newTestDirectory(db), NewNameMatcher(), zap.NewNop(), 0.98)
}
