package graphapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"pubfuse/config"
	"pubfuse/providers"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher implementiert das Adapter-Interface für die bibliographische
// Graph-API. Die Quelle liefert die reichsten Strukturdaten (Locations,
// OA-Status, Institutions-IDs) und steht deshalb weit oben in der Präzedenz.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Graph-API Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Tag gibt den SourceTag des Adapters zurück.
func (f *Fetcher) Tag() providers.SourceTag {
	return providers.SourceGraphAPI
}

// Harvest holt alle Works der Heimat-Institution (Filter über die ROR-ID),
// seitenweise über Cursor-Paging.
func (f *Fetcher) Harvest(ctx context.Context) ([]*providers.Document, error) {
	log := f.Logger.With(zap.String("source", string(f.Tag())))
	log.Info("Starte Ernte der Graph-API.")

	var docs []*providers.Document
	cursor := "*"
	for cursor != "" {
		page, next, err := f.fetchPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		for i := range page {
			docs = append(docs, mapWorkToDocument(&page[i]))
		}
		cursor = next
	}

	log.Info("Ernte der Graph-API abgeschlossen", zap.Int("documents", len(docs)))
	return docs, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, cursor string) ([]GraphWork, string, error) {
	q := url.Values{}
	q.Set("filter", "institutions.ror:"+f.Config.HomeInstitutionROR)
	q.Set("per-page", "200")
	q.Set("cursor", cursor)
	if f.Config.GraphAPIMailto != "" {
		q.Set("mailto", f.Config.GraphAPIMailto)
	}
	reqURL := fmt.Sprintf("%s/works?%s", f.Config.GraphAPIBaseURL, q.Encode())
	f.Logger.Debug("Rufe Graph-API auf", zap.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("graph-api nicht erreichbar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("graph-api antwortete mit Status %d", resp.StatusCode)
	}

	var page WorksResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", fmt.Errorf("graph-api-antwort nicht lesbar: %w", err)
	}
	return page.Results, page.Meta.NextCursor, nil
}

// mapWorkToDocument konvertiert eine Graph-API Work in unser internes Dokument.
func mapWorkToDocument(w *GraphWork) *providers.Document {
	doc := &providers.Document{
		SourceTag: providers.SourceGraphAPI,
		DOI:       w.DOI,
		Title:     w.Title,
		SourceURL: w.ID,
		ItemType:  w.Type,
		OAStatus:  w.OpenAccess.OAStatus,
	}
	doc.Dates.Published = parseGraphDate(w.PublicationDate)

	if w.Biblio.FirstPage != "" && w.Biblio.LastPage != "" {
		doc.Pages = w.Biblio.FirstPage + "-" + w.Biblio.LastPage
	} else if w.Biblio.FirstPage != "" {
		doc.Pages = w.Biblio.FirstPage
	}

	for _, a := range w.Authorships {
		author := providers.DocumentAuthor{
			DisplayName:   a.Author.DisplayName,
			RegistryID:    a.Author.Orcid,
			SourceID:      a.Author.ID,
			Corresponding: a.IsCorresponding,
		}
		for _, inst := range a.Institutions {
			author.Affiliations = append(author.Affiliations, providers.DocumentAffiliation{
				Name:         inst.DisplayName,
				PersistentID: inst.ROR,
				CountryCode:  inst.CountryCode,
			})
		}
		for _, raw := range a.RawAffiliationStrings {
			author.Affiliations = append(author.Affiliations, providers.DocumentAffiliation{RawText: raw})
		}
		doc.Authors = append(doc.Authors, author)
	}

	// Venue aus der Primary Location; die Graph-API kennt Journal und
	// Repository-Quellen, nur erstere werden zur Venue.
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil && w.PrimaryLocation.Source.Type != "repository" {
		src := w.PrimaryLocation.Source
		venue := &providers.DocumentVenue{
			Name:         src.DisplayName,
			ISSN:         src.ISSNL,
			PersistentID: src.ID,
			HostOrgName:  src.HostOrganizationName,
			OpenAccess:   src.IsOA,
			InDOAJ:       src.IsInDOAJ,
		}
		for _, code := range src.ISSN {
			if code != src.ISSNL {
				venue.EISSN = code
				break
			}
		}
		doc.Venue = venue
	}

	doc.License = bestLicense(w)
	for i := range w.Locations {
		loc := &w.Locations[i]
		u := loc.LandingPageURL
		if u == "" {
			u = loc.PdfURL
		}
		if u == "" {
			continue
		}
		doc.Locations = append(doc.Locations, providers.DocumentLocation{
			URL:        u,
			License:    loc.License,
			Accepted:   loc.IsAccepted || loc.Version == "acceptedVersion" || loc.Version == "publishedVersion",
			OpenAccess: loc.IsOA,
			Primary:    w.PrimaryLocation != nil && sameLocation(loc, w.PrimaryLocation),
			BestOA:     w.BestOALocation != nil && sameLocation(loc, w.BestOALocation),
		})
	}

	return doc
}

// bestLicense nimmt die Lizenz der Best-OA-Location, sonst der Primary.
func bestLicense(w *GraphWork) string {
	if w.BestOALocation != nil && w.BestOALocation.License != "" {
		return w.BestOALocation.License
	}
	if w.PrimaryLocation != nil {
		return w.PrimaryLocation.License
	}
	return ""
}

func sameLocation(a, b *Location) bool {
	if a.LandingPageURL != "" && a.LandingPageURL == b.LandingPageURL {
		return true
	}
	return a.PdfURL != "" && a.PdfURL == b.PdfURL
}
