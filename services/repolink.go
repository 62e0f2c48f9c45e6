package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pubfuse/models"
)

// RepoLinkService verknüpft geerntete RepositoryRecords mit höchstens einer
// Work. Die Verknüpfung ist monoton: ein einmal verknüpfter Record wird von
// Reparaturläufen nie wieder angefasst; lösen kann ihn nur Recheck.
type RepoLinkService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewRepoLinkService erstellt den Link-Service.
func NewRepoLinkService(db *gorm.DB, logger *zap.Logger) *RepoLinkService {
	return &RepoLinkService{DB: db, Logger: logger}
}

// RepairStats fasst einen Reparaturlauf zusammen.
type RepairStats struct {
	Checked  int `json:"checked"`
	Linked   int `json:"linked"`
	Unlinked int `json:"unlinked"`
	Failed   int `json:"failed"`
}

// UpsertRecord legt einen geernteten Record an bzw. aktualisiert ihn anhand
// seines OAI-Identifiers. Eine bestehende Work-Verknüpfung bleibt unberührt.
func (s *RepoLinkService) UpsertRecord(rec *models.RepositoryRecord) error {
	rec.DOI = NormalizeDOI(rec.DOI)

	var existing models.RepositoryRecord
	err := s.DB.Where("oai_identifier = ?", rec.OAIIdentifier).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.DB.Create(rec).Error
	}
	if err != nil {
		return fmt.Errorf("repository-record-lookup fehlgeschlagen: %w", err)
	}

	existing.Title = rec.Title
	if existing.DOI == "" {
		existing.DOI = rec.DOI
	}
	if existing.RepoURL == "" {
		existing.RepoURL = rec.RepoURL
	}
	if existing.RepoAltURL == "" {
		existing.RepoAltURL = rec.RepoAltURL
	}
	if links, changed := UnionStrings(existing.OtherLinks, decodeStrings(rec.OtherLinks)...); changed {
		existing.OtherLinks = links
	}
	if ids, changed := UnionStrings(existing.DuplicateIDs, decodeStrings(rec.DuplicateIDs)...); changed {
		existing.DuplicateIDs = ids
	}
	if err := s.DB.Save(&existing).Error; err != nil {
		return fmt.Errorf("repository-record konnte nicht gespeichert werden: %w", err)
	}
	*rec = existing
	return nil
}

// RunRepair prüft alle noch ungeprüften Records und verknüpft sie, wo möglich.
// Der Checked-Flag ist der Checkpoint: ein abgestürzter Lauf wiederholt keine
// bereits geprüften Records und fasst erfolgreich verknüpfte nicht erneut an.
func (s *RepoLinkService) RunRepair(ctx context.Context) (*RepairStats, error) {
	var records []models.RepositoryRecord
	if err := s.DB.WithContext(ctx).Where("checked = ?", false).Order("id asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("ungeprüfte repository-records konnten nicht geladen werden: %w", err)
	}

	stats := &RepairStats{}
	for i := range records {
		rec := &records[i]
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.linkRecord(tx, rec)
		})
		if err != nil {
			stats.Failed++
			s.Logger.Error("Record konnte nicht geprüft werden",
				zap.String("oai_identifier", rec.OAIIdentifier), zap.Error(err))
			continue
		}
		stats.Checked++
		if rec.WorkID != nil {
			stats.Linked++
		} else {
			stats.Unlinked++
		}
	}

	entry := models.AuditEntry{
		SourceTag:     "repolink",
		RecordsLinked: stats.Linked,
		Failed:        stats.Failed,
		Skipped:       stats.Unlinked,
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		s.Logger.Error("AuditEntry konnte nicht geschrieben werden", zap.Error(err))
	}

	s.Logger.Info("Reparaturlauf abgeschlossen",
		zap.Int("checked", stats.Checked),
		zap.Int("linked", stats.Linked),
		zap.Int("unlinked", stats.Unlinked),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// linkRecord versucht die Verknüpfung in der Reihenfolge DOI -> Repository-URL
// -> Titel -> Duplikat-IDs. Ein Record ohne Treffer wird als geprüft-aber-
// unverknüpft markiert, nie verworfen.
func (s *RepoLinkService) linkRecord(tx *gorm.DB, rec *models.RepositoryRecord) error {
	work, err := s.matchWork(tx, rec)
	if err != nil {
		return err
	}

	rec.Checked = true
	if work != nil {
		rec.WorkID = &work.ID
		if !work.RepoLinked {
			work.RepoLinked = true
			if err := tx.Save(work).Error; err != nil {
				return fmt.Errorf("work-flag konnte nicht gesetzt werden: %w", err)
			}
		}
	}
	return tx.Save(rec).Error
}

// matchWork sucht die zugehörige Work für einen Record.
func (s *RepoLinkService) matchWork(tx *gorm.DB, rec *models.RepositoryRecord) (*models.Work, error) {
	// 1. Exakte DOI.
	if rec.DOI != "" {
		var work models.Work
		err := tx.Where("doi = ?", rec.DOI).First(&work).Error
		if err == nil {
			return &work, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("doi-match fehlgeschlagen: %w", err)
		}
	}

	// 2. Repository-URL als Substring einer Work-Location-URL (oder umgekehrt).
	for _, u := range []string{rec.RepoURL, rec.RepoAltURL} {
		if u == "" {
			continue
		}
		var loc models.WorkLocation
		err := tx.Where("url <> '' AND (? LIKE '%' || url || '%' OR url LIKE '%' || ? || '%')", u, u).First(&loc).Error
		if err == nil {
			var work models.Work
			if err := tx.First(&work, loc.WorkID).Error; err != nil {
				return nil, fmt.Errorf("work zu location konnte nicht geladen werden: %w", err)
			}
			return &work, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("url-match fehlgeschlagen: %w", err)
		}
	}

	// 3. Titel als Substring.
	if titleNorm := NormalizeTitle(rec.Title); titleNorm != "" {
		var work models.Work
		err := tx.Where("title_norm <> '' AND (? LIKE '%' || title_norm || '%' OR title_norm LIKE '%' || ? || '%')", titleNorm, titleNorm).
			Order("id asc").First(&work).Error
		if err == nil {
			return &work, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("titel-match fehlgeschlagen: %w", err)
		}
	}

	// 4. Duplikat-IDs als letzter Ausweg (oft alte DOI-Schreibweisen).
	for _, id := range decodeStrings(rec.DuplicateIDs) {
		doi := NormalizeDOI(id)
		if doi == "" {
			continue
		}
		var work models.Work
		err := tx.Where("doi = ?", doi).First(&work).Error
		if err == nil {
			return &work, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("duplikat-id-match fehlgeschlagen: %w", err)
		}
	}

	return nil, nil
}

// Recheck ist die explizite Reparatur: löst die Verknüpfung eines Records und
// gibt ihn für den nächsten Reparaturlauf wieder frei.
func (s *RepoLinkService) Recheck(recordID uint) error {
	res := s.DB.Model(&models.RepositoryRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{"work_id": nil, "checked": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// decodeStrings liest eine jsonb-String-Liste; kaputte Daten ergeben nil.
func decodeStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
