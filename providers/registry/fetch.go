package registry

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

// Fetcher implementiert das Adapter-Interface für das Forscher-
// Identitätsregister. Die Quelle liefert vor allem verlässliche Autoren-
// Identität (Registry-IDs, Namensvarianten), nur dünne Work-Metadaten.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Register-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Tag gibt den SourceTag des Adapters zurück.
func (f *Fetcher) Tag() providers.SourceTag {
	return providers.SourceRegistry
}

// Harvest sucht alle Profile mit Affiliation der Heimat-Institution und holt
// pro Profil die Works-Zusammenfassung. Jede Work wird zu einem Dokument mit
// genau diesem einen Autor; die Fusion führt die Dokumente später zusammen.
func (f *Fetcher) Harvest(ctx context.Context) ([]*providers.Document, error) {
	log := f.Logger.With(zap.String("source", string(f.Tag())))
	log.Info("Starte Ernte des Identitätsregisters.")

	profiles, err := f.searchProfiles(ctx)
	if err != nil {
		return nil, err
	}

	var docs []*providers.Document
	for i := range profiles {
		works, err := f.fetchWorks(ctx, profiles[i].OrcidID)
		if err != nil {
			// Einzelne kaputte Profile brechen den Lauf nicht ab.
			log.Warn("Profil konnte nicht gelesen werden",
				zap.String("registry_id", profiles[i].OrcidID), zap.Error(err))
			continue
		}
		for j := range works {
			docs = append(docs, mapSummaryToDocument(&profiles[i], &works[j], f.Config.HomeInstitutionName))
		}
	}

	log.Info("Ernte des Identitätsregisters abgeschlossen",
		zap.Int("profiles", len(profiles)), zap.Int("documents", len(docs)))
	return docs, nil
}

func (f *Fetcher) searchProfiles(ctx context.Context) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("affiliation-org-name:%q", f.Config.HomeInstitutionName))
	q.Set("rows", "1000")
	reqURL := fmt.Sprintf("%s/expanded-search/?%s", f.Config.RegistryBaseURL, q.Encode())
	f.Logger.Debug("Rufe Registersuche auf", zap.String("url", reqURL))

	var page SearchResponse
	if err := f.getJSON(ctx, reqURL, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (f *Fetcher) fetchWorks(ctx context.Context, orcid string) ([]WorkSummary, error) {
	reqURL := fmt.Sprintf("%s/%s/works", f.Config.RegistryBaseURL, orcid)
	var page WorksResponse
	if err := f.getJSON(ctx, reqURL, &page); err != nil {
		return nil, err
	}
	var summaries []WorkSummary
	for _, g := range page.Group {
		// Pro Gruppe genügt die erste Zusammenfassung, der Rest sind
		// Duplikate derselben Work aus anderen Zuliefer-Quellen.
		if len(g.WorkSummary) > 0 {
			summaries = append(summaries, g.WorkSummary[0])
		}
	}
	return summaries, nil
}

func (f *Fetcher) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("register nicht erreichbar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("register antwortete mit Status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("register-antwort nicht lesbar: %w", err)
	}
	return nil
}

// mapSummaryToDocument konvertiert Profil + Work-Zusammenfassung in unser
// internes Dokument.
func mapSummaryToDocument(profile *SearchResult, w *WorkSummary, homeName string) *providers.Document {
	doc := &providers.Document{
		SourceTag: providers.SourceRegistry,
		DOI:       w.DOI(),
		Title:     w.Title.Title.Value,
		ItemType:  strings.ToLower(strings.ReplaceAll(w.Type, "_", "-")),
	}
	if w.URL != nil {
		doc.SourceURL = w.URL.Value
	}
	doc.Dates.Published = w.Date()
	if w.JournalTitle != nil && w.JournalTitle.Value != "" {
		doc.Venue = &providers.DocumentVenue{Name: w.JournalTitle.Value}
	}

	author := providers.DocumentAuthor{
		DisplayName: strings.TrimSpace(profile.GivenNames + " " + profile.FamilyNames),
		GivenName:   profile.GivenNames,
		FamilyName:  profile.FamilyNames,
		RegistryID:  profile.OrcidID,
	}
	author.Affiliations = append(author.Affiliations, providers.DocumentAffiliation{Name: homeName})
	doc.Authors = append(doc.Authors, author)
	return doc
}
