package models

import "time"

// Organization repräsentiert eine kanonische Institution bzw. einen Arbeitgeber.
// Invariante: das Paar (Name, PersistentID) ist eindeutig; alle bekannten
// Alias-Schreibweisen der Heimat-Institution lösen auf genau eine Zeile auf.
type Organization struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name         string  `json:"name" gorm:"index:idx_org_identity,unique;size:512"`
	CountryCode  string  `json:"country_code,omitempty" gorm:"size:2"`
	PersistentID *string `json:"persistent_id,omitempty" gorm:"index:idx_org_identity,unique;size:128"` // ROR-ID

	Type string `json:"type,omitempty"` // education, company, funder, ...

	// Welche Quelle die Organisation zuerst geliefert hat.
	Provenance string `json:"provenance,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Organization) TableName() string {
	return "organizations"
}
