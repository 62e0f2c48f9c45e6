package registry

import "time"

// SearchResponse ist die Antwort der erweiterten Registersuche.
type SearchResponse struct {
	NumFound int            `json:"num-found"`
	Results  []SearchResult `json:"expanded-result"`
}

// SearchResult ist ein Forscherprofil in der Suchantwort.
type SearchResult struct {
	OrcidID         string   `json:"orcid-id"`
	GivenNames      string   `json:"given-names"`
	FamilyNames     string   `json:"family-names"`
	OtherName       []string `json:"other-name"`
	InstitutionName []string `json:"institution-name"`
}

// WorksResponse ist die Works-Zusammenfassung eines Profils.
type WorksResponse struct {
	Group []struct {
		WorkSummary []WorkSummary `json:"work-summary"`
	} `json:"group"`
}

// WorkSummary ist eine einzelne Work-Zusammenfassung im Register.
type WorkSummary struct {
	Title struct {
		Title struct {
			Value string `json:"value"`
		} `json:"title"`
	} `json:"title"`
	Type        string `json:"type"`
	ExternalIDs struct {
		ExternalID []struct {
			Type  string `json:"external-id-type"`
			Value string `json:"external-id-value"`
		} `json:"external-id"`
	} `json:"external-ids"`
	PublicationDate *struct {
		Year  valueField `json:"year"`
		Month valueField `json:"month"`
		Day   valueField `json:"day"`
	} `json:"publication-date"`
	JournalTitle *struct {
		Value string `json:"value"`
	} `json:"journal-title"`
	URL *struct {
		Value string `json:"value"`
	} `json:"url"`
}

type valueField struct {
	Value string `json:"value"`
}

// DOI sucht die DOI unter den externen Identifiern.
func (w *WorkSummary) DOI() string {
	for _, id := range w.ExternalIDs.ExternalID {
		if id.Type == "doi" {
			return id.Value
		}
	}
	return ""
}

// Date setzt das Publikationsdatum zusammen; fehlende Teile werden mit 1 gefüllt.
func (w *WorkSummary) Date() *time.Time {
	if w.PublicationDate == nil || w.PublicationDate.Year.Value == "" {
		return nil
	}
	layout := "2006"
	value := w.PublicationDate.Year.Value
	if w.PublicationDate.Month.Value != "" {
		layout, value = "2006-01", value+"-"+w.PublicationDate.Month.Value
		if w.PublicationDate.Day.Value != "" {
			layout, value = "2006-01-02", value+"-"+w.PublicationDate.Day.Value
		}
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return nil
	}
	return &t
}
