package staffdir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pubfuse/config"
	"pubfuse/providers"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher implementiert das Adapter-Interface für den Personalverzeichnis-
// Export. Er belegt vor allem die Institutszugehörigkeit samt Jahren; seine
// Work-Metadaten überschreiben nie etwas, was eine andere Quelle geliefert hat.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Personalverzeichnis-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Tag gibt den SourceTag des Adapters zurück.
func (f *Fetcher) Tag() providers.SourceTag {
	return providers.SourceStaffDir
}

// Harvest lädt den Verzeichnis-Export und erzeugt pro gemeldeter Publikation
// ein Dokument mit genau dem meldenden Mitarbeiter als Autor.
func (f *Fetcher) Harvest(ctx context.Context) ([]*providers.Document, error) {
	log := f.Logger.With(zap.String("source", string(f.Tag())))
	log.Info("Starte Ernte des Personalverzeichnisses.")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Config.StaffDirectoryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("personalverzeichnis nicht erreichbar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("personalverzeichnis antwortete mit Status %d", resp.StatusCode)
	}

	var members []StaffMember
	if err := json.NewDecoder(resp.Body).Decode(&members); err != nil {
		return nil, fmt.Errorf("personalverzeichnis-export nicht lesbar: %w", err)
	}

	var docs []*providers.Document
	for i := range members {
		docs = append(docs, mapMemberToDocuments(&members[i], f.Config.HomeInstitutionName)...)
	}

	log.Info("Ernte des Personalverzeichnisses abgeschlossen",
		zap.Int("members", len(members)), zap.Int("documents", len(docs)))
	return docs, nil
}

// mapMemberToDocuments konvertiert einen Verzeichnis-Eintrag in Dokumente.
func mapMemberToDocuments(m *StaffMember, homeName string) []*providers.Document {
	author := providers.DocumentAuthor{
		DisplayName: m.Name,
		GivenName:   m.GivenName,
		FamilyName:  m.FamilyName,
		RegistryID:  m.RegistryID,
	}
	author.Affiliations = append(author.Affiliations, providers.DocumentAffiliation{
		Name:    homeName,
		RawText: m.Department,
		Years:   m.Years,
	})

	var docs []*providers.Document
	for _, pub := range m.Publications {
		if pub.Title == "" && pub.DOI == "" {
			continue
		}
		doc := &providers.Document{
			SourceTag: providers.SourceStaffDir,
			DOI:       pub.DOI,
			Title:     pub.Title,
			SourceURL: pub.URL,
			Authors:   []providers.DocumentAuthor{author},
		}
		if pub.Year > 0 {
			t := time.Date(pub.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
			doc.Dates.Published = &t
		}
		if pub.Journal != "" {
			doc.Venue = &providers.DocumentVenue{Name: pub.Journal}
		}
		docs = append(docs, doc)
	}
	return docs
}
