package repoharvest

import (
	"encoding/xml"
	"time"
)

// OAIResponse ist die Top-Level-Struktur einer OAI-PMH ListRecords-Antwort.
type OAIResponse struct {
	XMLName     xml.Name  `xml:"OAI-PMH"`
	Error       *OAIError `xml:"error"`
	ListRecords struct {
		Records         []OAIRecord `xml:"record"`
		ResumptionToken string      `xml:"resumptionToken"`
	} `xml:"ListRecords"`
}

// OAIError ist ein Protokollfehler des Repositories.
type OAIError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// OAIRecord ist ein einzelner Record mit Dublin-Core-Metadaten.
type OAIRecord struct {
	Header struct {
		Identifier string `xml:"identifier"`
		Datestamp  string `xml:"datestamp"`
		Status     string `xml:"status,attr"`
	} `xml:"header"`
	Metadata struct {
		DC DublinCore `xml:"dc"`
	} `xml:"metadata"`
}

// DublinCore sind die oai_dc-Felder; alle Felder sind wiederholbar.
type DublinCore struct {
	Titles      []string `xml:"title"`
	Creators    []string `xml:"creator"`
	Dates       []string `xml:"date"`
	Types       []string `xml:"type"`
	Identifiers []string `xml:"identifier"`
	Relations   []string `xml:"relation"`
	Rights      []string `xml:"rights"`
	Sources     []string `xml:"source"`
}

// Hilfsfunktion zum sicheren Parsen von Daten.
func parseOAIDate(dateStr string) *time.Time {
	layouts := []string{"2006-01-02T15:04:05Z", "2006-01-02", "2006-01", "2006"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, dateStr)
		if err == nil {
			return &t
		}
	}
	return nil
}
