package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pubfuse/models"
)

// Typisierte Schlüssel-Structs pro Entitätsart: nur diese Felder nehmen an der
// Identitätsauflösung teil, alles andere ist reine Fusionsfracht.

// OrganizationKeys sind die Auflösungsschlüssel einer Organization.
type OrganizationKeys struct {
	Name         string
	PersistentID string
	CountryCode  string
}

// AuthorKeys sind die Auflösungsschlüssel eines Authors.
type AuthorKeys struct {
	DisplayName string
	GivenName   string
	FamilyName  string
	RegistryID  string
	SourceID    string
}

// VenueKeys sind die Auflösungsschlüssel einer Venue.
type VenueKeys struct {
	Name         string
	ISSN         string
	EISSN        string
	PersistentID string
}

// WorkKeys sind die Auflösungsschlüssel einer Work. Die DOI darf in beliebiger
// Schreibweise kommen; sie wird vor dem Lookup kanonisiert.
type WorkKeys struct {
	DOI   string
	Title string
}

// Resolver entscheidet pro Entitätsart, ob ein Roh-Dokument auf eine
// bestehende kanonische Entität zeigt. "Kein Treffer" ist ein erwartetes,
// gültiges Ergebnis (nil, 0, nil) und löst beim Aufrufer die Anlage aus;
// Fehler bedeuten ausschließlich, dass der Store nicht erreichbar war.
type Resolver struct {
	DB        *gorm.DB
	Directory *InstitutionDirectory
	Matcher   *NameMatcher
	Logger    *zap.Logger

	// Mindest-Ähnlichkeit für einen Fuzzy-Autorentreffer; darunter wird
	// grundsätzlich neu angelegt, nie erzwungen.
	Threshold float64
}

// NewResolver erstellt einen neuen Resolver.
func NewResolver(db *gorm.DB, dir *InstitutionDirectory, matcher *NameMatcher, logger *zap.Logger, threshold float64) *Resolver {
	return &Resolver{DB: db, Directory: dir, Matcher: matcher, Logger: logger, Threshold: threshold}
}

// ResolveOrganization: erst das Institution Directory (Alias-Konvergenz!),
// dann exakter Match auf (Name, PersistentID, Land).
func (r *Resolver) ResolveOrganization(keys OrganizationKeys) (*models.Organization, float64, error) {
	org, err := r.Directory.Canonicalize(keys)
	if err != nil {
		return nil, 0, err
	}
	if org != nil {
		return org, 1, nil
	}

	if keys.Name != "" && keys.CountryCode != "" {
		var found models.Organization
		q := r.DB.Where("name = ? AND country_code = ?", keys.Name, keys.CountryCode)
		if keys.PersistentID != "" {
			q = q.Where("persistent_id = ?", keys.PersistentID)
		}
		err := q.First(&found).Error
		if err == nil {
			return &found, 1, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("organization-lookup fehlgeschlagen: %w", err)
		}
	}

	return nil, 0, nil
}

// ResolveAuthor: exakte Registry-ID -> exakte Quell-ID -> Fuzzy-Match über
// Anzeigenamen und bekannte Namensvarianten. Gleichstand oberhalb der
// Schwelle wird über höchsten Score, dann jüngste Änderung aufgelöst.
func (r *Resolver) ResolveAuthor(keys AuthorKeys) (*models.Author, float64, error) {
	if keys.RegistryID != "" {
		var author models.Author
		err := r.DB.Where("registry_id = ?", keys.RegistryID).First(&author).Error
		if err == nil {
			return &author, 1, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("author-lookup (registry_id) fehlgeschlagen: %w", err)
		}
	}

	if keys.SourceID != "" {
		var author models.Author
		err := r.DB.Where("source_id = ?", keys.SourceID).First(&author).Error
		if err == nil {
			return &author, 1, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("author-lookup (source_id) fehlgeschlagen: %w", err)
		}
	}

	if keys.DisplayName == "" {
		return nil, 0, nil
	}

	var candidates []models.Author
	if err := r.DB.Order("updated_at desc, id asc").Find(&candidates).Error; err != nil {
		return nil, 0, fmt.Errorf("author-kandidaten konnten nicht geladen werden: %w", err)
	}

	var best *models.Author
	bestScore := 0.0
	matches := 0
	for i := range candidates {
		score := r.authorScore(&candidates[i], keys.DisplayName)
		if score < r.Threshold {
			continue
		}
		matches++
		// Kandidaten sind nach Aktualität sortiert: bei gleichem Score
		// gewinnt automatisch der zuletzt geänderte.
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}

	if best == nil {
		return nil, 0, nil
	}
	if matches > 1 {
		// AmbiguousMatch: nicht fatal, aber protokollierenswert.
		r.Logger.Warn("Mehrdeutiger Fuzzy-Autorentreffer, Score/Aktualität entscheidet",
			zap.String("display_name", keys.DisplayName),
			zap.Int("candidates_above_threshold", matches),
			zap.Float64("best_score", bestScore),
			zap.Uint("chosen_author_id", best.ID))
	}
	return best, bestScore, nil
}

// authorScore ist der beste Score über Anzeigename und alle Namensvarianten.
func (r *Resolver) authorScore(author *models.Author, name string) float64 {
	best := r.Matcher.Score(author.DisplayName, name)
	if len(author.NameVariants) > 0 {
		var variants []string
		if err := json.Unmarshal(author.NameVariants, &variants); err == nil {
			for _, v := range variants {
				if s := r.Matcher.Score(v, name); s > best {
					best = s
				}
			}
		}
	}
	return best
}

// ResolveVenue: exakte Persistent-ID, sonst das ISSN-Paar. Trägt das Dokument
// gar keinen Identifier, entscheidet der exakte Name; sonst entsteht bei jedem
// erneuten Ingest derselben Proceedings-Venue eine weitere Zeile.
func (r *Resolver) ResolveVenue(keys VenueKeys) (*models.Venue, float64, error) {
	if keys.PersistentID != "" {
		var venue models.Venue
		err := r.DB.Where("persistent_id = ?", keys.PersistentID).First(&venue).Error
		if err == nil {
			return &venue, 1, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("venue-lookup (persistent_id) fehlgeschlagen: %w", err)
		}
	}

	if keys.ISSN != "" || keys.EISSN != "" {
		var venue models.Venue
		var err error
		if keys.ISSN != "" && keys.EISSN != "" {
			err = r.DB.Where("issn = ? AND eissn = ?", keys.ISSN, keys.EISSN).First(&venue).Error
		} else {
			code := keys.ISSN
			if code == "" {
				code = keys.EISSN
			}
			err = r.DB.Where("issn = ? OR eissn = ?", code, code).First(&venue).Error
		}
		if err == nil {
			return &venue, 1, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("venue-lookup (issn) fehlgeschlagen: %w", err)
		}
		return nil, 0, nil
	}

	if keys.PersistentID == "" && keys.Name != "" {
		var venue models.Venue
		err := r.DB.Where("name = ? AND issn = '' AND eissn = ''", keys.Name).Order("id asc").First(&venue).Error
		if err == nil {
			return &venue, 1, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("venue-lookup (name) fehlgeschlagen: %w", err)
		}
	}

	return nil, 0, nil
}

// ResolveWork: exakte (kanonisierte) DOI, sonst exakter normalisierter Titel.
func (r *Resolver) ResolveWork(keys WorkKeys) (*models.Work, float64, error) {
	if doi := NormalizeDOI(keys.DOI); doi != "" {
		var work models.Work
		err := r.DB.Where("doi = ?", doi).First(&work).Error
		if err == nil {
			return &work, 1, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("work-lookup (doi) fehlgeschlagen: %w", err)
		}
		return nil, 0, nil
	}

	if titleNorm := NormalizeTitle(keys.Title); titleNorm != "" {
		var work models.Work
		err := r.DB.Where("title_norm = ?", titleNorm).Order("id asc").First(&work).Error
		if err == nil {
			return &work, 1, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("work-lookup (titel) fehlgeschlagen: %w", err)
		}
	}

	return nil, 0, nil
}
