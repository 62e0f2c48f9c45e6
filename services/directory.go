package services

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pubfuse/models"
)

// InstitutionDirectory ist das Nachschlagewerk bekannter Organisations-Aliasse.
// Es MUSS vor jeder Neuanlage einer Organization konsultiert werden, sonst
// fragmentiert die Heimat-Institution in Dutzende Beinahe-Duplikate (historisch
// der dominante Datenqualitätsdefekt). Die Alias-Liste ist zur Ingest-Zeit
// read-only; Erweiterungen sind ein administrativer Schritt außerhalb der Engine.
type InstitutionDirectory struct {
	DB     *gorm.DB
	Logger *zap.Logger

	homeName    string
	homeROR     string
	homeCountry string
	aliases     map[string]struct{}
}

// NewInstitutionDirectory erstellt das Directory aus der Konfiguration.
// Die Alias-Liste wird einmal beim Start geladen und normalisiert.
func NewInstitutionDirectory(db *gorm.DB, logger *zap.Logger, homeName, homeROR, homeCountry string, aliasList []string) *InstitutionDirectory {
	aliases := make(map[string]struct{}, len(aliasList)+1)
	aliases[foldAlias(homeName)] = struct{}{}
	for _, a := range aliasList {
		if f := foldAlias(a); f != "" {
			aliases[f] = struct{}{}
		}
	}
	return &InstitutionDirectory{
		DB:          db,
		Logger:      logger,
		homeName:    homeName,
		homeROR:     homeROR,
		homeCountry: homeCountry,
		aliases:     aliases,
	}
}

// foldAlias normalisiert eine Alias-Schreibweise (Casing, Rand-Whitespace,
// doppelte Leerzeichen), damit "Universiteit Leiden " und "universiteit leiden"
// zusammenfallen.
func foldAlias(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// EnsureHome stellt sicher, dass die Heimat-Institution als Organization-Zeile
// existiert, bevor der erste Ingest läuft.
func (d *InstitutionDirectory) EnsureHome() (*models.Organization, error) {
	org := models.Organization{
		Name:         d.homeName,
		CountryCode:  d.homeCountry,
		PersistentID: &d.homeROR,
		Type:         "education",
		Provenance:   "seed",
	}
	err := d.DB.Where("persistent_id = ?", d.homeROR).FirstOrCreate(&org).Error
	if err != nil {
		return nil, fmt.Errorf("heimat-institution konnte nicht angelegt werden: %w", err)
	}
	return &org, nil
}

// Canonicalize löst einen Organisationsnamen bzw. -Identifier auf eine
// bestehende Organization auf. Reihenfolge: exakte Persistent-ID -> exakter
// Name -> Alias-Liste. (nil, nil) bedeutet "kein Treffer, Anlage erlaubt";
// ein Fehler bedeutet, dass der Store nicht erreichbar war.
func (d *InstitutionDirectory) Canonicalize(keys OrganizationKeys) (*models.Organization, error) {
	if keys.PersistentID != "" {
		var org models.Organization
		err := d.DB.Where("persistent_id = ?", keys.PersistentID).First(&org).Error
		if err == nil {
			return &org, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("directory-lookup (persistent_id) fehlgeschlagen: %w", err)
		}
	}

	if keys.Name != "" {
		var orgs []models.Organization
		if err := d.DB.Where("name = ?", keys.Name).Order("id asc").Find(&orgs).Error; err != nil {
			return nil, fmt.Errorf("directory-lookup (name) fehlgeschlagen: %w", err)
		}
		if len(orgs) > 1 {
			// DataQualityAnomaly: wird nie stillschweigend gemergt, nur vom
			// expliziten Dedup-Lauf bereinigt.
			d.Logger.Warn("Mehrere Organizations mit identischem Namen gefunden",
				zap.String("name", keys.Name), zap.Int("count", len(orgs)))
		}
		if len(orgs) > 0 {
			return &orgs[0], nil
		}
	}

	if _, ok := d.aliases[foldAlias(keys.Name)]; ok {
		return d.EnsureHome()
	}

	return nil, nil
}

// IsHomeAlias meldet, ob ein Name zur Heimat-Institution gehört.
func (d *InstitutionDirectory) IsHomeAlias(name string) bool {
	_, ok := d.aliases[foldAlias(name)]
	return ok
}
