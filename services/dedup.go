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

// DedupService bereinigt DataQualityAnomalien (mehrere Zeilen, wo genau eine
// erwartet war). Er läuft NUR auf expliziten Aufruf, nie während des normalen
// Ingests; alle Beziehungen der entfernten Duplikate wandern auf den
// Überlebenden (älteste Zeile).
type DedupService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewDedupService erstellt den Dedup-Service.
func NewDedupService(db *gorm.DB, logger *zap.Logger) *DedupService {
	return &DedupService{DB: db, Logger: logger}
}

// DedupResult fasst einen Bereinigungslauf zusammen.
type DedupResult struct {
	Groups  int `json:"groups"`
	Removed int `json:"removed"`
}

// DeduplicateOrganizations führt namensgleiche Organization-Zeilen zusammen.
func (s *DedupService) DeduplicateOrganizations(ctx context.Context) (*DedupResult, error) {
	type group struct {
		Name  string
		Count int
	}
	var groups []group
	err := s.DB.WithContext(ctx).Model(&models.Organization{}).
		Select("name, count(*) as count").
		Group("name").
		Having("count(*) > 1").
		Scan(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("duplikat-gruppen konnten nicht ermittelt werden: %w", err)
	}

	result := &DedupResult{}
	for _, g := range groups {
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var orgs []models.Organization
			if err := tx.Where("name = ?", g.Name).Order("id asc").Find(&orgs).Error; err != nil {
				return err
			}
			if len(orgs) < 2 {
				return nil
			}
			survivor := orgs[0]
			for _, dup := range orgs[1:] {
				if err := s.rehomeOrganization(tx, dup.ID, survivor.ID); err != nil {
					return err
				}
				if err := tx.Delete(&models.Organization{}, dup.ID).Error; err != nil {
					return err
				}
				result.Removed++
			}
			s.Logger.Warn("Organization-Duplikate zusammengeführt",
				zap.String("name", g.Name),
				zap.Uint("survivor_id", survivor.ID),
				zap.Int("removed", len(orgs)-1))
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.Groups++
	}
	return result, nil
}

// rehomeOrganization hängt alle Beziehungen eines Duplikats an den Überlebenden.
func (s *DedupService) rehomeOrganization(tx *gorm.DB, from, to uint) error {
	// Affiliationen: vorhandene (author, survivor)-Paare nicht verdoppeln.
	var affs []models.Affiliation
	if err := tx.Where("organization_id = ?", from).Find(&affs).Error; err != nil {
		return err
	}
	for _, aff := range affs {
		var existing models.Affiliation
		err := tx.Where("author_id = ? AND organization_id = ?", aff.AuthorID, to).First(&existing).Error
		if err == nil {
			// Jahresmengen vereinigen statt überschreiben, dann Duplikat weg.
			var years []int
			_ = decodeInts(aff.Years, &years)
			if merged, changed := UnionYears(existing.Years, years); changed {
				existing.Years = merged
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
			}
			if err := tx.Delete(&models.Affiliation{}, aff.ID).Error; err != nil {
				return err
			}
			continue
		}
		if err := tx.Model(&models.Affiliation{}).Where("id = ?", aff.ID).
			Update("organization_id", to).Error; err != nil {
			return err
		}
	}

	return tx.Model(&models.Venue{}).Where("host_organization_id = ?", from).
		Update("host_organization_id", to).Error
}

// DeduplicateWorks führt DOI-lose Works mit identischem normalisierten Titel
// zusammen (DOI-Duplikate verhindert bereits der Unique-Index).
func (s *DedupService) DeduplicateWorks(ctx context.Context) (*DedupResult, error) {
	type group struct {
		TitleNorm string
		Count     int
	}
	var groups []group
	err := s.DB.WithContext(ctx).Model(&models.Work{}).
		Select("title_norm, count(*) as count").
		Where("doi IS NULL AND title_norm <> ''").
		Group("title_norm").
		Having("count(*) > 1").
		Scan(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("duplikat-gruppen konnten nicht ermittelt werden: %w", err)
	}

	result := &DedupResult{}
	for _, g := range groups {
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var works []models.Work
			if err := tx.Where("doi IS NULL AND title_norm = ?", g.TitleNorm).Order("id asc").Find(&works).Error; err != nil {
				return err
			}
			if len(works) < 2 {
				return nil
			}
			survivor := works[0]
			for _, dup := range works[1:] {
				if err := s.rehomeWork(tx, dup.ID, survivor.ID); err != nil {
					return err
				}
				if err := tx.Delete(&models.Work{}, dup.ID).Error; err != nil {
					return err
				}
				result.Removed++
			}
			s.Logger.Warn("Work-Duplikate zusammengeführt",
				zap.String("title_norm", g.TitleNorm),
				zap.Uint("survivor_id", survivor.ID),
				zap.Int("removed", len(works)-1))
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.Groups++
	}
	return result, nil
}

// rehomeWork hängt alle Beziehungen eines Work-Duplikats an den Überlebenden.
// Duplikate teilen sich typischerweise Autoren und URLs; bestehende
// (work, author)- bzw. (work, url)-Paare auf dem Überlebenden werden
// vereinigt statt verdoppelt.
func (s *DedupService) rehomeWork(tx *gorm.DB, from, to uint) error {
	var authorships []models.WorkAuthorship
	if err := tx.Where("work_id = ?", from).Find(&authorships).Error; err != nil {
		return err
	}
	for _, a := range authorships {
		var existing models.WorkAuthorship
		err := tx.Where("work_id = ? AND author_id = ?", to, a.AuthorID).First(&existing).Error
		if err == nil {
			// Entdeckte Fakten sind monoton: Flags vereinigen, Duplikat weg.
			if (a.Corresponding && !existing.Corresponding) || (a.YearMatch && !existing.YearMatch) {
				existing.Corresponding = existing.Corresponding || a.Corresponding
				existing.YearMatch = existing.YearMatch || a.YearMatch
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
			}
			if err := tx.Delete(&models.WorkAuthorship{}, a.ID).Error; err != nil {
				return err
			}
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Model(&models.WorkAuthorship{}).Where("id = ?", a.ID).
			Update("work_id", to).Error; err != nil {
			return err
		}
	}

	var locations []models.WorkLocation
	if err := tx.Where("work_id = ?", from).Find(&locations).Error; err != nil {
		return err
	}
	for _, loc := range locations {
		var existing models.WorkLocation
		err := tx.Where("work_id = ? AND url = ?", to, loc.URL).First(&existing).Error
		if err == nil {
			if err := tx.Delete(&models.WorkLocation{}, loc.ID).Error; err != nil {
				return err
			}
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Model(&models.WorkLocation{}).Where("id = ?", loc.ID).
			Update("work_id", to).Error; err != nil {
			return err
		}
	}

	// work_id ist auf repository_records nicht eindeutig: blindes Umhängen reicht.
	return tx.Model(&models.RepositoryRecord{}).Where("work_id = ?", from).
		Update("work_id", to).Error
}

func decodeInts(raw []byte, out *[]int) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
