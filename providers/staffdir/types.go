package staffdir

// StaffMember ist ein Eintrag im exportierten Personalverzeichnis.
type StaffMember struct {
	Name         string             `json:"name"`
	GivenName    string             `json:"given_name"`
	FamilyName   string             `json:"family_name"`
	RegistryID   string             `json:"orcid"`
	Department   string             `json:"department"`
	Years        []int              `json:"years"`
	Publications []StaffPublication `json:"publications"`
}

// StaffPublication ist eine vom Personal selbst gemeldete Publikation.
// Handgepflegte Daten: Titel und DOI sind oft unsauber, deshalb steht die
// Quelle ganz unten in der Präzedenzordnung.
type StaffPublication struct {
	Title   string `json:"title"`
	DOI     string `json:"doi"`
	Year    int    `json:"year"`
	Journal string `json:"journal"`
	URL     string `json:"url"`
}
