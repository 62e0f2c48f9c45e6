package models

import (
	"time"

	"gorm.io/datatypes"
)

// Venue repräsentiert ein kanonisches Journal bzw. eine Publikationsquelle.
// Invariante: eindeutig über PersistentID, sonst über das ISSN-Paar. Das
// Paar-Index ist partiell: Venues ganz ohne ISSN (Proceedings, Reihen ohne
// Nummer) dürfen beliebig oft nebeneinander existieren.
type Venue struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `json:"name" gorm:"index"`

	ISSN  string `json:"issn,omitempty" gorm:"index:idx_venue_issn_pair,unique,where:issn <> '' OR eissn <> '';size:16"`
	EISSN string `json:"eissn,omitempty" gorm:"index:idx_venue_issn_pair,unique;size:16"`

	PersistentID *string `json:"persistent_id,omitempty" gorm:"uniqueIndex;size:128"`

	HostOrganizationID *uint         `json:"host_organization_id,omitempty"`
	HostOrganization   *Organization `json:"host_organization,omitempty"`

	OpenAccess bool `json:"open_access" gorm:"default:false"`
	InDOAJ     bool `json:"in_doaj" gorm:"default:false"`

	FieldSources datatypes.JSONMap `json:"-" gorm:"type:jsonb"`

	Deal *Deal `json:"deal,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Venue) TableName() string {
	return "venues"
}

// Deal ist eine Open-Access-Preisvereinbarung zwischen Institution und Venue.
type Deal struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	VenueID uint `json:"venue_id" gorm:"uniqueIndex"`

	// "full": Deal deckt vollständige OA-Publikation ab, "hybrid": nur Hybrid-Titel.
	Type         string `json:"type" gorm:"not null"`
	DiscountNote string `json:"discount_note,omitempty"`
}

func (Deal) TableName() string { return "deals" }
