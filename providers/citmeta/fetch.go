package citmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"pubfuse/config"
	"pubfuse/providers"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher implementiert das Adapter-Interface für die Zitations-Metadaten-API.
// Verlegerseitige Metadaten: präzise Daten und Seitenzahlen, aber nur rohe
// Affiliations-Strings ohne Identifier.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Zitations-API Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Tag gibt den SourceTag des Adapters zurück.
func (f *Fetcher) Tag() providers.SourceTag {
	return providers.SourceCitMeta
}

// Harvest sucht alle Works mit einer Affiliation der Heimat-Institution,
// seitenweise über Deep-Paging-Cursor.
func (f *Fetcher) Harvest(ctx context.Context) ([]*providers.Document, error) {
	log := f.Logger.With(zap.String("source", string(f.Tag())))
	log.Info("Starte Ernte der Zitations-API.")

	var docs []*providers.Document
	cursor := "*"
	for cursor != "" {
		items, next, err := f.fetchPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}
		for i := range items {
			docs = append(docs, mapWorkToDocument(&items[i]))
		}
		cursor = next
	}

	log.Info("Ernte der Zitations-API abgeschlossen", zap.Int("documents", len(docs)))
	return docs, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, cursor string) ([]CiteWork, string, error) {
	q := url.Values{}
	q.Set("query.affiliation", f.Config.HomeInstitutionName)
	q.Set("rows", "500")
	q.Set("cursor", cursor)
	reqURL := fmt.Sprintf("%s/works?%s", f.Config.CitationAPIBaseURL, q.Encode())
	f.Logger.Debug("Rufe Zitations-API auf", zap.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("zitations-api nicht erreichbar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("zitations-api antwortete mit Status %d", resp.StatusCode)
	}

	var page WorksResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", fmt.Errorf("zitations-api-antwort nicht lesbar: %w", err)
	}
	return page.Message.Items, page.Message.NextCursor, nil
}

// mapWorkToDocument konvertiert eine Zitations-API Work in unser internes Dokument.
func mapWorkToDocument(w *CiteWork) *providers.Document {
	doc := &providers.Document{
		SourceTag: providers.SourceCitMeta,
		DOI:       w.DOI,
		SourceURL: w.URL,
		ItemType:  w.Type,
		Pages:     w.Page,
	}
	if len(w.Title) > 0 {
		doc.Title = w.Title[0]
	}
	doc.Dates.Issued = w.Issued.Time()
	doc.Dates.Published = w.Published.Time()
	doc.Dates.PublishedOnline = w.PublishedOnline.Time()
	doc.Dates.PublishedPrint = w.PublishedPrint.Time()

	for _, lic := range w.License {
		if l := licenseFromURL(lic.URL); l != "" {
			doc.License = l
			break
		}
	}

	for _, a := range w.Author {
		author := providers.DocumentAuthor{
			DisplayName:   strings.TrimSpace(a.Given + " " + a.Family),
			GivenName:     a.Given,
			FamilyName:    a.Family,
			RegistryID:    a.ORCID,
			Corresponding: a.Sequence == "first",
		}
		for _, aff := range a.Affiliation {
			author.Affiliations = append(author.Affiliations, providers.DocumentAffiliation{RawText: aff.Name})
		}
		doc.Authors = append(doc.Authors, author)
	}

	if len(w.ContainerTitle) > 0 {
		venue := &providers.DocumentVenue{
			Name:        w.ContainerTitle[0],
			HostOrgName: w.Publisher,
		}
		for _, it := range w.ISSNType {
			switch it.Type {
			case "print":
				venue.ISSN = it.Value
			case "electronic":
				venue.EISSN = it.Value
			}
		}
		if venue.ISSN == "" && venue.EISSN == "" && len(w.ISSN) > 0 {
			venue.ISSN = w.ISSN[0]
		}
		doc.Venue = venue
	}

	for _, link := range w.Link {
		doc.Locations = append(doc.Locations, providers.DocumentLocation{
			URL:     link.URL,
			License: doc.License,
			Primary: link.URL == w.URL,
		})
	}

	return doc
}

// licenseFromURL extrahiert "cc-by"-artige Kürzel aus Creative-Commons-URLs.
func licenseFromURL(u string) string {
	lower := strings.ToLower(u)
	if !strings.Contains(lower, "creativecommons.org") {
		return ""
	}
	if strings.Contains(lower, "publicdomain") {
		return "cc0"
	}
	for _, code := range []string{"by-nc-nd", "by-nc-sa", "by-nc", "by-nd", "by-sa", "by"} {
		if strings.Contains(lower, "/"+code+"/") {
			return "cc-" + code
		}
	}
	return ""
}
