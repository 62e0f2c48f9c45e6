package repoharvest

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"pubfuse/config"
	"pubfuse/models"
	"pubfuse/providers"
)

var httpClient = &http.Client{Timeout: 120 * time.Second}

// Fetcher implementiert das Adapter-Interface für das institutionelle
// Repository (OAI-PMH). Als kuratierte Quelle steht es an der Spitze der
// Präzedenzordnung; zusätzlich liefert es die RepositoryRecords für die
// spätere Verknüpfung.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Repository-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Tag gibt den SourceTag des Adapters zurück.
func (f *Fetcher) Tag() providers.SourceTag {
	return providers.SourceRepoHarvest
}

// Harvest erntet alle Records per ListRecords und mappt sie auf Dokumente.
func (f *Fetcher) Harvest(ctx context.Context) ([]*providers.Document, error) {
	records, err := f.listRecords(ctx)
	if err != nil {
		return nil, err
	}
	var docs []*providers.Document
	for i := range records {
		if records[i].Header.Status == "deleted" {
			continue
		}
		docs = append(docs, mapRecordToDocument(&records[i]))
	}
	f.Logger.Info("Ernte des Repositories abgeschlossen",
		zap.String("source", string(f.Tag())), zap.Int("documents", len(docs)))
	return docs, nil
}

// Records liefert dieselbe Ernte als RepositoryRecords für den Link-Service.
func (f *Fetcher) Records(ctx context.Context) ([]*models.RepositoryRecord, error) {
	records, err := f.listRecords(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.RepositoryRecord
	for i := range records {
		if records[i].Header.Status == "deleted" {
			continue
		}
		out = append(out, mapRecordToRepositoryRecord(&records[i]))
	}
	return out, nil
}

// listRecords folgt der Resumption-Token-Paginierung bis zum Ende.
func (f *Fetcher) listRecords(ctx context.Context) ([]OAIRecord, error) {
	log := f.Logger.With(zap.String("source", string(f.Tag())))
	log.Info("Starte OAI-PMH ListRecords.")

	var all []OAIRecord
	token := ""
	for {
		q := url.Values{}
		q.Set("verb", "ListRecords")
		if token == "" {
			q.Set("metadataPrefix", "oai_dc")
		} else {
			q.Set("resumptionToken", token)
		}
		reqURL := f.Config.RepositoryOAIURL + "?" + q.Encode()
		log.Debug("Rufe Repository auf", zap.String("url", reqURL))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("repository nicht erreichbar: %w", err)
		}

		var page OAIResponse
		err = xml.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("oai-pmh-antwort nicht lesbar: %w", err)
		}
		if page.Error != nil {
			if page.Error.Code == "noRecordsMatch" {
				break
			}
			return nil, fmt.Errorf("oai-pmh-fehler %s: %s", page.Error.Code, page.Error.Message)
		}

		all = append(all, page.ListRecords.Records...)
		token = strings.TrimSpace(page.ListRecords.ResumptionToken)
		if token == "" {
			break
		}
	}
	return all, nil
}

// mapRecordToDocument konvertiert einen OAI-Record in unser internes Dokument.
func mapRecordToDocument(rec *OAIRecord) *providers.Document {
	dc := &rec.Metadata.DC
	doc := &providers.Document{
		SourceTag: providers.SourceRepoHarvest,
		SourceURL: rec.Header.Identifier,
	}
	if len(dc.Titles) > 0 {
		doc.Title = dc.Titles[0]
	}
	if len(dc.Types) > 0 {
		doc.ItemType = strings.ToLower(dc.Types[0])
	}
	for _, d := range dc.Dates {
		if t := parseOAIDate(d); t != nil {
			doc.Dates.Issued = t
			break
		}
	}
	doc.DOI, _ = splitIdentifiers(dc.Identifiers)
	for _, r := range dc.Rights {
		if l := foldRights(r); l != "" {
			doc.License = l
			break
		}
	}
	for _, c := range dc.Creators {
		doc.Authors = append(doc.Authors, providers.DocumentAuthor{DisplayName: flipCreator(c)})
	}
	for _, id := range dc.Identifiers {
		if strings.HasPrefix(id, "http") {
			doc.Locations = append(doc.Locations, providers.DocumentLocation{
				URL:        id,
				Accepted:   true,
				OpenAccess: doc.License != "",
			})
		}
	}
	return doc
}

// mapRecordToRepositoryRecord konvertiert einen OAI-Record in eine Record-Zeile.
func mapRecordToRepositoryRecord(rec *OAIRecord) *models.RepositoryRecord {
	dc := &rec.Metadata.DC
	out := &models.RepositoryRecord{OAIIdentifier: rec.Header.Identifier}
	if len(dc.Titles) > 0 {
		out.Title = dc.Titles[0]
	}

	doi, urls := splitIdentifiers(dc.Identifiers)
	out.DOI = doi
	if len(urls) > 0 {
		out.RepoURL = urls[0]
	}
	if len(urls) > 1 {
		out.RepoAltURL = urls[1]
	}
	if len(urls) > 2 {
		if raw, err := json.Marshal(urls[2:]); err == nil {
			out.OtherLinks = raw
		}
	}

	// Relations tragen alternative Identifier früherer Record-Versionen.
	var dupes []string
	for _, rel := range dc.Relations {
		if rel = strings.TrimSpace(rel); rel != "" {
			dupes = append(dupes, rel)
		}
	}
	if len(dupes) > 0 {
		if raw, err := json.Marshal(dupes); err == nil {
			out.DuplicateIDs = raw
		}
	}
	return out
}

// splitIdentifiers trennt die dc:identifier-Liste in DOI und URLs.
func splitIdentifiers(ids []string) (doi string, urls []string) {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		switch {
		case id == "":
		case strings.Contains(id, "doi.org/") || strings.HasPrefix(id, "10."):
			if doi == "" {
				doi = id
			}
		case strings.HasPrefix(id, "http"):
			urls = append(urls, id)
		}
	}
	return doi, urls
}

// foldRights mappt dc:rights-Angaben auf Lizenz-Kürzel.
func foldRights(r string) string {
	lower := strings.ToLower(r)
	for _, code := range []string{"cc-by-nc-nd", "cc-by-nc-sa", "cc-by-nc", "cc-by-nd", "cc-by-sa", "cc-by", "cc0"} {
		if strings.Contains(lower, code) || strings.Contains(lower, strings.ReplaceAll(code, "-", " ")) {
			return code
		}
	}
	if strings.Contains(lower, "creativecommons.org") {
		return "cc-by"
	}
	return ""
}

// flipCreator dreht "Nachname, Vorname" in Anzeigereihenfolge.
func flipCreator(c string) string {
	parts := strings.SplitN(c, ",", 2)
	if len(parts) != 2 {
		return strings.TrimSpace(c)
	}
	return strings.TrimSpace(strings.TrimSpace(parts[1]) + " " + strings.TrimSpace(parts[0]))
}
