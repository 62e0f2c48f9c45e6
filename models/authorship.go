package models

import "time"

// WorkAuthorship ist die geordnete Beziehung Work <-> Author.
type WorkAuthorship struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	WorkID   uint `json:"work_id" gorm:"index:idx_authorship_pair,unique"`
	AuthorID uint `json:"author_id" gorm:"index:idx_authorship_pair,unique"`

	Author *Author `json:"author,omitempty"`

	Position      int  `json:"position"`
	Corresponding bool `json:"corresponding" gorm:"default:false"`

	// true, wenn die Affiliationsjahre des Autors das Publikationsjahr der Work enthalten.
	YearMatch bool `json:"year_match" gorm:"default:false"`
}

// TableName gibt explizit den Tabellennamen an.
func (WorkAuthorship) TableName() string {
	return "work_authorships"
}
