package graphapi

import "time"

// WorksResponse ist die Top-Level-Struktur der Graph-API-Antwort.
type WorksResponse struct {
	Meta struct {
		Count      int    `json:"count"`
		NextCursor string `json:"next_cursor"`
	} `json:"meta"`
	Results []GraphWork `json:"results"`
}

// GraphWork repräsentiert eine einzelne Work in der API-Antwort.
type GraphWork struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	Type            string       `json:"type"`
	PublicationDate string       `json:"publication_date"`
	Authorships     []Authorship `json:"authorships"`
	PrimaryLocation *Location    `json:"primary_location"`
	BestOALocation  *Location    `json:"best_oa_location"`
	Locations       []Location   `json:"locations"`
	OpenAccess      struct {
		IsOA     bool   `json:"is_oa"`
		OAStatus string `json:"oa_status"`
	} `json:"open_access"`
	Biblio struct {
		FirstPage string `json:"first_page"`
		LastPage  string `json:"last_page"`
	} `json:"biblio"`
}

// Authorship ist ein Autor samt behaupteter Affiliationen.
type Authorship struct {
	Author struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		Orcid       string `json:"orcid"`
	} `json:"author"`
	Institutions []struct {
		ID          string `json:"id"`
		ROR         string `json:"ror"`
		DisplayName string `json:"display_name"`
		CountryCode string `json:"country_code"`
	} `json:"institutions"`
	RawAffiliationStrings []string `json:"raw_affiliation_strings"`
	IsCorresponding       bool     `json:"is_corresponding"`
}

// Location ist ein Zugriffsort samt Quelle (Journal bzw. Repository).
type Location struct {
	IsOA           bool   `json:"is_oa"`
	IsAccepted     bool   `json:"is_accepted"`
	LandingPageURL string `json:"landing_page_url"`
	PdfURL         string `json:"pdf_url"`
	License        string `json:"license"`
	Version        string `json:"version"`
	Source         *struct {
		ID                   string   `json:"id"`
		DisplayName          string   `json:"display_name"`
		ISSNL                string   `json:"issn_l"`
		ISSN                 []string `json:"issn"`
		HostOrganizationName string   `json:"host_organization_name"`
		IsOA                 bool     `json:"is_oa"`
		IsInDOAJ             bool     `json:"is_in_doaj"`
		Type                 string   `json:"type"`
	} `json:"source"`
}

// Hilfsfunktion zum sicheren Parsen von Daten.
func parseGraphDate(dateStr string) *time.Time {
	layouts := []string{"2006-01-02", "2006-01", "2006"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, dateStr)
		if err == nil {
			return &t
		}
	}
	return nil
}
