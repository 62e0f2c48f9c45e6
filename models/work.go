package models

import (
	"time"

	"gorm.io/datatypes"
)

// Work repräsentiert die kanonische Publikation, fusioniert aus allen Quellen.
// Invariante: pro normalisierter DOI existiert höchstens eine Zeile; eine Work
// ohne DOI existiert nur, solange keine Quelle jemals eine DOI geliefert hat.
type Work struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Identität
	DOI       *string `json:"doi,omitempty" gorm:"column:doi;uniqueIndex"` // kanonische Form https://doi.org/...
	SourceURL string  `json:"source_url,omitempty"`
	Title     string  `json:"title"`
	TitleNorm string  `json:"-" gorm:"index"` // normalisierter Titel für DOI-lose Auflösung

	ItemType string `json:"item_type,omitempty" gorm:"index"`
	License  string `json:"license,omitempty"`
	OAStatus string `json:"oa_status,omitempty"` // gold, hybrid, bronze, green, closed
	Pages    string `json:"pages,omitempty"`

	VenueID *uint  `json:"venue_id,omitempty"`
	Venue   *Venue `json:"venue,omitempty"`

	// Publikationsdaten je Quelle; das früheste bestimmt das Embargo.
	IssuedDate          *time.Time `json:"issued_date,omitempty"`
	PublishedDate       *time.Time `json:"published_date,omitempty"`
	PublishedOnlineDate *time.Time `json:"published_online_date,omitempty"`
	PublishedPrintDate  *time.Time `json:"published_print_date,omitempty"`

	// Abgeleitete Attribute
	EmbargoDate   *time.Time `json:"embargo_date,omitempty"`
	PolicyKeyword string     `json:"policy_keyword,omitempty" gorm:"index"`

	// Monoton: einmal true, nie wieder false (Verknüpfung nur per Repair lösbar).
	RepoLinked bool `json:"repo_linked" gorm:"default:false"`

	// Feld -> SourceTag, der den Wert zuletzt gesetzt hat (Präzedenz-Buchhaltung).
	FieldSources datatypes.JSONMap `json:"-" gorm:"type:jsonb"`

	Authorships []WorkAuthorship `json:"authorships,omitempty"`
	Locations   []WorkLocation   `json:"locations,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Work) TableName() string {
	return "works"
}

// WorkLocation ist ein alternativer Zugriffsort (Verlag, Repository, Aggregator).
type WorkLocation struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	WorkID uint   `json:"work_id" gorm:"index:idx_work_location,unique"`
	URL    string `json:"url" gorm:"index:idx_work_location,unique;size:1024"`

	License    string `json:"license,omitempty"`
	Accepted   bool   `json:"accepted"`
	OpenAccess bool   `json:"open_access"`
	Primary    bool   `json:"primary"`
	BestOA     bool   `json:"best_oa"`
	SourceTag  string `json:"source_tag" gorm:"index"`
}

func (WorkLocation) TableName() string { return "work_locations" }
