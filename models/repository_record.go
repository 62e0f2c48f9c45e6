package models

import (
	"time"

	"gorm.io/datatypes"
)

// RepositoryRecord ist ein aus dem institutionellen Repository geerntetes
// Metadatum derselben Publikation unter fremdem Schema. Es wird mit höchstens
// einer Work verknüpft; die Verknüpfung ist monoton und wird von der normalen
// Fusion nie gelöst (nur durch explizite Reparatur).
type RepositoryRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OAIIdentifier string `json:"oai_identifier" gorm:"uniqueIndex;size:256"`

	Title string `json:"title"`
	DOI   string `json:"doi,omitempty" gorm:"index"` // kanonische Form, leer wenn unbekannt

	// Bis zu zwei Repository-eigene URLs.
	RepoURL    string `json:"repo_url,omitempty" gorm:"size:1024"`
	RepoAltURL string `json:"repo_alt_url,omitempty" gorm:"size:1024"`

	// Unstrukturierte Link- und Duplikat-ID-Sammlungen ([]string).
	OtherLinks   datatypes.JSON `json:"other_links,omitempty" gorm:"type:jsonb"`
	DuplicateIDs datatypes.JSON `json:"duplicate_ids,omitempty" gorm:"type:jsonb"`

	WorkID *uint `json:"work_id,omitempty" gorm:"index"`

	// Checkpoint für neustartbare Reparaturläufe: geprüft, auch wenn unverknüpft.
	Checked bool `json:"checked" gorm:"default:false;index"`
}

// TableName gibt explizit den Tabellennamen an.
func (RepositoryRecord) TableName() string {
	return "repository_records"
}
