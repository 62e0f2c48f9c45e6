package citmeta

import "time"

// WorksResponse ist die Top-Level-Struktur der Zitations-API-Antwort.
type WorksResponse struct {
	Status  string `json:"status"`
	Message struct {
		TotalResults int        `json:"total-results"`
		NextCursor   string     `json:"next-cursor"`
		Items        []CiteWork `json:"items"`
	} `json:"message"`
}

// CiteWork repräsentiert eine einzelne Work in der API-Antwort.
type CiteWork struct {
	DOI             string       `json:"DOI"`
	Title           []string     `json:"title"`
	Type            string       `json:"type"`
	Page            string       `json:"page"`
	URL             string       `json:"URL"`
	ContainerTitle  []string     `json:"container-title"`
	ISSN            []string     `json:"ISSN"`
	ISSNType        []ISSNType   `json:"issn-type"`
	Author          []CiteAuthor `json:"author"`
	Issued          DateParts    `json:"issued"`
	Published       DateParts    `json:"published"`
	PublishedOnline DateParts    `json:"published-online"`
	PublishedPrint  DateParts    `json:"published-print"`
	License         []struct {
		URL            string `json:"URL"`
		ContentVersion string `json:"content-version"`
	} `json:"license"`
	Link []struct {
		URL         string `json:"URL"`
		ContentType string `json:"content-type"`
	} `json:"link"`
	Publisher string `json:"publisher"`
}

// ISSNType unterscheidet Print- und elektronische ISSN.
type ISSNType struct {
	Value string `json:"value"`
	Type  string `json:"type"` // "print" oder "electronic"
}

// CiteAuthor ist ein Autor mit rohen Affiliations-Strings.
type CiteAuthor struct {
	Given       string `json:"given"`
	Family      string `json:"family"`
	ORCID       string `json:"ORCID"`
	Sequence    string `json:"sequence"`
	Affiliation []struct {
		Name string `json:"name"`
	} `json:"affiliation"`
}

// DateParts ist das [[Jahr, Monat, Tag]]-Datumsformat der Zitations-API.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Time wandelt DateParts in ein Datum um; fehlende Teile werden mit 1 gefüllt.
func (d DateParts) Time() *time.Time {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return nil
	}
	parts := d.DateParts[0]
	year := parts[0]
	month, day := 1, 1
	if len(parts) > 1 {
		month = parts[1]
	}
	if len(parts) > 2 {
		day = parts[2]
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}
