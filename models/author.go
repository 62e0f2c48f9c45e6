package models

import (
	"time"

	"gorm.io/datatypes"
)

// Author repräsentiert eine kanonische Person über alle Quellen hinweg.
// Invariante: eine Registry-ID (ORCID) ist, sofern vorhanden, eindeutig.
type Author struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DisplayName string `json:"display_name" gorm:"index"`
	GivenName   string `json:"given_name,omitempty"`
	FamilyName  string `json:"family_name,omitempty"`

	// Pointer, damit NULL-Zeilen nicht unter den Unique-Index fallen.
	RegistryID *string `json:"registry_id,omitempty" gorm:"uniqueIndex;size:64"`
	// ID der autoritativen Quelle (Graph-API-Author-ID), exakter Zweitschlüssel.
	SourceID string `json:"source_id,omitempty" gorm:"index;size:128"`

	// Monoton: wird nie von true auf false zurückgesetzt.
	InstitutionMember bool `json:"institution_member" gorm:"default:false"`

	// Alle beobachteten Schreibweisen des Namens (Fusion: Vereinigung).
	NameVariants datatypes.JSON `json:"name_variants,omitempty" gorm:"type:jsonb"`

	FieldSources datatypes.JSONMap `json:"-" gorm:"type:jsonb"`

	Affiliations []Affiliation `json:"affiliations,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Author) TableName() string {
	return "authors"
}

// Affiliation ist die zeitlich eingegrenzte Beziehung Author <-> Organization.
// Fusion zweier Sichtungen desselben Paars vereinigt die Jahresmengen.
type Affiliation struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AuthorID       uint `json:"author_id" gorm:"index:idx_affiliation_pair,unique"`
	OrganizationID uint `json:"organization_id" gorm:"index:idx_affiliation_pair,unique"`

	Organization *Organization `json:"organization,omitempty"`

	// Jahre, für die die Beziehung behauptet wurde ([]int, nur wachsend).
	Years datatypes.JSON `json:"years" gorm:"type:jsonb"`

	// Roh-String aus der Quelle, für Nachvollziehbarkeit.
	RawText string `json:"raw_text,omitempty" gorm:"type:text"`
}

func (Affiliation) TableName() string { return "affiliations" }
