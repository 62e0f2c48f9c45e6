package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEntry protokolliert einen Fusionslauf unveränderlich (append-only).
type AuditEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	SourceTag string `json:"source_tag" gorm:"index"`

	WorksCreated   int `json:"works_created"`
	WorksUpdated   int `json:"works_updated"`
	AuthorsCreated int `json:"authors_created"`
	OrgsCreated    int `json:"orgs_created"`
	VenuesCreated  int `json:"venues_created"`
	RecordsLinked  int `json:"records_linked"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`

	// Liste der Feld-Überschreibungen: [{entity, id, field, old, new, source}].
	Changes datatypes.JSON `json:"changes,omitempty" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (AuditEntry) TableName() string {
	return "audit_entries"
}
