package providers

import "time"

// SourceTag identifiziert die externe Quelle eines Dokuments und damit ihren
// Rang in der Präzedenzordnung.
type SourceTag string

const (
	SourceRepoHarvest SourceTag = "repoharvest" // institutionelles Repository (OAI-PMH)
	SourceGraphAPI    SourceTag = "graphapi"    // bibliographische Graph-API
	SourceCitMeta     SourceTag = "citmeta"     // Zitations-Metadaten-API
	SourceRegistry    SourceTag = "registry"    // Forscher-Identitätsregister
	SourceStaffDir    SourceTag = "staffdir"    // Personalverzeichnis-Scrape
)

// sourceRanks: höherer Wert = höhere Präzedenz. Ein bestehender Feldwert wird
// nur überschrieben, wenn die neue Quelle STRIKT höher eingestuft ist.
var sourceRanks = map[SourceTag]int{
	SourceStaffDir:    1,
	SourceRegistry:    2,
	SourceCitMeta:     3,
	SourceGraphAPI:    4,
	SourceRepoHarvest: 5,
}

// Rank gibt den Präzedenzrang des Tags zurück; 0 für unbekannte Tags.
func (t SourceTag) Rank() int {
	return sourceRanks[t]
}

// Valid meldet, ob der Tag zu einer bekannten Quelle gehört.
func (t SourceTag) Valid() bool {
	_, ok := sourceRanks[t]
	return ok
}

// Document ist die normalisierte Zwischenform, die jeder Adapter liefert.
// Optionale Felder sind hier bereits aufgelöst (leer = nicht beobachtet);
// die Fusionslogik muss keine Roh-Schemata mehr kennen.
type Document struct {
	SourceTag SourceTag `json:"source_tag"`

	// Identität der Work: DOI falls vorhanden (beliebige Schreibweise,
	// wird vor der Auflösung kanonisiert), sonst Titel.
	DOI       string `json:"doi,omitempty"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url,omitempty"`

	ItemType string `json:"item_type,omitempty"`
	License  string `json:"license,omitempty"`
	OAStatus string `json:"oa_status,omitempty"`
	Pages    string `json:"pages,omitempty"`

	Dates DocumentDates `json:"dates"`

	Authors   []DocumentAuthor   `json:"authors,omitempty"`
	Venue     *DocumentVenue     `json:"venue,omitempty"`
	Locations []DocumentLocation `json:"locations,omitempty"`
}

// DocumentDates bündelt alle publikationsbezogenen Daten einer Quelle.
type DocumentDates struct {
	Issued          *time.Time `json:"issued,omitempty"`
	Published       *time.Time `json:"published,omitempty"`
	PublishedOnline *time.Time `json:"published_online,omitempty"`
	PublishedPrint  *time.Time `json:"published_print,omitempty"`
}

// DocumentAuthor ist ein Autor, wie ihn die Quelle behauptet.
type DocumentAuthor struct {
	DisplayName   string `json:"display_name"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	RegistryID    string `json:"registry_id,omitempty"`
	SourceID      string `json:"source_id,omitempty"`
	Corresponding bool   `json:"corresponding"`

	Affiliations []DocumentAffiliation `json:"affiliations,omitempty"`
}

// DocumentAffiliation ist ein roher Affiliations-String mit optionalen Jahren.
type DocumentAffiliation struct {
	RawText      string `json:"raw_text"`
	Name         string `json:"name,omitempty"` // bereits extrahierter Institutionsname, falls die Quelle ihn liefert
	PersistentID string `json:"persistent_id,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	Years        []int  `json:"years,omitempty"`
}

// DocumentVenue beschreibt das Journal aus Sicht der Quelle.
type DocumentVenue struct {
	Name         string `json:"name"`
	ISSN         string `json:"issn,omitempty"`
	EISSN        string `json:"eissn,omitempty"`
	PersistentID string `json:"persistent_id,omitempty"`
	HostOrgName  string `json:"host_org_name,omitempty"`
	OpenAccess   bool   `json:"open_access"`
	InDOAJ       bool   `json:"in_doaj"`
	DealType     string `json:"deal_type,omitempty"` // nur wenn die Quelle eine Preisvereinbarung kennt
}

// DocumentLocation ist ein Zugriffsort der Work aus Sicht der Quelle.
type DocumentLocation struct {
	URL        string `json:"url"`
	License    string `json:"license,omitempty"`
	Accepted   bool   `json:"accepted"`
	OpenAccess bool   `json:"open_access"`
	Primary    bool   `json:"primary"`
	BestOA     bool   `json:"best_oa"`
}
