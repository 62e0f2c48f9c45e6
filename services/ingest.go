package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pubfuse/config"
	"pubfuse/models"
	"pubfuse/providers"
)

// IngestStatus beschreibt das Ergebnis eines einzelnen Dokuments.
type IngestStatus string

const (
	StatusCreated        IngestStatus = "created"
	StatusUpdated        IngestStatus = "updated"
	StatusUnchanged      IngestStatus = "unchanged"
	StatusAlreadyPresent IngestStatus = "already_present"
)

// IngestOptions steuert das Verhalten eines Ingest-Aufrufs.
type IngestOptions struct {
	// InsertOnly: der Aufrufer erwartet eine neue Work. Löst das Dokument
	// auf eine bestehende auf, ist das ein ConflictingIdentity-Fall und wird
	// als "already_present" gemeldet statt fusioniert.
	InsertOnly bool

	// Audit: pro Dokument einen eigenen AuditEntry schreiben. Batch-Läufe
	// lassen das aus; dort fasst RunSource den Lauf pro Quelle zusammen.
	Audit bool
}

// RunStats sammelt die Zähler und Überschreibungen eines Fusionslaufs.
type RunStats struct {
	WorksCreated   int
	WorksUpdated   int
	AuthorsCreated int
	OrgsCreated    int
	VenuesCreated  int
	Failed         int
	Skipped        int
	Changes        []FieldChange
}

func (s *RunStats) add(o *RunStats) {
	s.WorksCreated += o.WorksCreated
	s.WorksUpdated += o.WorksUpdated
	s.AuthorsCreated += o.AuthorsCreated
	s.OrgsCreated += o.OrgsCreated
	s.VenuesCreated += o.VenuesCreated
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.Changes = append(s.Changes, o.Changes...)
}

// FusionService sequenziert die Fusionsschritte pro Dokument: Organisationen
// -> Autoren + Affiliationen -> Venue -> Work -> Locations -> Authorships ->
// abgeleitete Attribute -> AuditEntry. Jedes Dokument läuft in einer eigenen
// Transaktion; ein Fehler eines Dokuments bricht nie den Batch ab.
type FusionService struct {
	Config     *config.Config
	DB         *gorm.DB
	Logger     *zap.Logger
	Resolver   *Resolver
	Policy     *FusionPolicy
	Calculator *DerivedCalculator
	Adapters   []providers.Adapter
}

// NewFusionService erstellt den Orchestrator.
func NewFusionService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, resolver *Resolver, policy *FusionPolicy, calc *DerivedCalculator, adapters []providers.Adapter) *FusionService {
	return &FusionService{
		Config:     cfg,
		DB:         db,
		Logger:     logger,
		Resolver:   resolver,
		Policy:     policy,
		Calculator: calc,
		Adapters:   adapters,
	}
}

// RunAll erntet alle aktivierten Adapter und fusioniert die Dokumente über
// einen begrenzten Worker-Pool. Pro Quelle entsteht ein AuditEntry, auch bei
// Teilausfällen.
func (s *FusionService) RunAll(ctx context.Context) (*RunStats, error) {
	total := &RunStats{}
	for _, adapter := range s.Adapters {
		stats, err := s.RunSource(ctx, adapter)
		if err != nil {
			// UpstreamUnavailable: Quelle überspringen, Rest des Laufs geht weiter.
			s.Logger.Error("Quelle nicht verfügbar, wird übersprungen",
				zap.String("source", string(adapter.Tag())), zap.Error(err))
			continue
		}
		total.add(stats)
	}
	return total, nil
}

// RunSource erntet eine Quelle und fusioniert alle gelieferten Dokumente.
func (s *FusionService) RunSource(ctx context.Context, adapter providers.Adapter) (*RunStats, error) {
	log := s.Logger.With(zap.String("source", string(adapter.Tag())))
	log.Info("Starte Harvest.")

	docs, err := adapter.Harvest(ctx)
	if err != nil {
		return nil, fmt.Errorf("harvest %s fehlgeschlagen: %w", adapter.Tag(), err)
	}
	log.Info("Harvest abgeschlossen", zap.Int("documents", len(docs)))

	stats := &RunStats{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	workers := s.Config.IngestWorkers
	if workers <= 0 {
		workers = 1
	}
	semaphore := make(chan struct{}, workers)

	for _, doc := range docs {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(doc *providers.Document) {
			defer wg.Done()
			defer func() { <-semaphore }()

			_, docStats, err := s.Ingest(ctx, doc, IngestOptions{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Isolation pro Dokument: zählen, loggen, weiter.
				stats.Failed++
				log.Error("Dokument konnte nicht fusioniert werden",
					zap.String("doi", doc.DOI), zap.String("title", doc.Title), zap.Error(err))
				return
			}
			stats.add(docStats)
		}(doc)
	}
	wg.Wait()

	if err := s.writeAudit(adapter.Tag(), stats); err != nil {
		log.Error("AuditEntry konnte nicht geschrieben werden", zap.Error(err))
	}
	log.Info("Fusionslauf abgeschlossen",
		zap.Int("works_created", stats.WorksCreated),
		zap.Int("works_updated", stats.WorksUpdated),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// Ingest fusioniert genau ein Dokument. Kollisionen beim Anlegen der Work
// (zwei Worker, dieselbe DOI) werden einmalig als Lookup wiederholt; erst die
// zweite Kollision ist für dieses eine Dokument fatal.
func (s *FusionService) Ingest(ctx context.Context, doc *providers.Document, opts IngestOptions) (*models.Work, *RunStats, error) {
	if doc == nil {
		return nil, nil, errors.New("kein Dokument übergeben")
	}
	if !doc.SourceTag.Valid() {
		return nil, nil, fmt.Errorf("ungültiges Dokument: unbekannter source_tag %q", doc.SourceTag)
	}

	stats := &RunStats{}
	var work *models.Work
	run := func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			w, err := s.ingestTx(tx, doc, opts, stats)
			if err != nil {
				return err
			}
			work = w
			return nil
		})
	}

	err := run()
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Gutartiges Rennen: die Zeile existiert inzwischen, also neu
		// auflösen und den Fuse-Pfad nehmen.
		s.Logger.Info("Kollision beim Anlegen, wiederhole als Lookup",
			zap.String("doi", doc.DOI), zap.String("title", doc.Title))
		*stats = RunStats{}
		err = run()
	}
	if err != nil {
		return nil, nil, err
	}
	if opts.Audit {
		if err := s.writeAudit(doc.SourceTag, stats); err != nil {
			s.Logger.Error("AuditEntry konnte nicht geschrieben werden", zap.Error(err))
		}
	}
	return work, stats, nil
}

// ingestTx führt die eigentliche Schrittfolge innerhalb der Transaktion aus.
func (s *FusionService) ingestTx(tx *gorm.DB, doc *providers.Document, opts IngestOptions, stats *RunStats) (*models.Work, error) {
	resolver := s.resolverFor(tx)
	tag := doc.SourceTag

	// 1. Autoren samt Organisationen und Affiliationen.
	authors := make([]*models.Author, 0, len(doc.Authors))
	for _, in := range doc.Authors {
		author, err := s.upsertAuthor(tx, resolver, in, tag, stats)
		if err != nil {
			return nil, err
		}
		authors = append(authors, author)
	}

	// 2. Venue samt Preisvereinbarung.
	venue, err := s.upsertVenue(tx, resolver, doc, stats)
	if err != nil {
		return nil, err
	}

	// 3. Work auflösen oder anlegen, dann fusionieren.
	work, resolved, err := s.resolveOrCreateWork(tx, resolver, doc, stats)
	if err != nil {
		return nil, err
	}
	if resolved && opts.InsertOnly {
		// ConflictingIdentity: kein Fehler, aber auch keine Fusion.
		stats.Skipped++
		return work, nil
	}

	changes, changed := s.Policy.FuseWork(work, doc)
	stats.Changes = append(stats.Changes, changes...)
	if venue != nil && (work.VenueID == nil || *work.VenueID == 0) {
		work.VenueID = &venue.ID
		changed = true
	}

	// 4. Locations (alternative Zugriffsorte) anhängen.
	if err := s.attachLocations(tx, work, doc); err != nil {
		return nil, err
	}

	// 5. Authorships anhängen.
	authorships, err := s.attachAuthorships(tx, work, doc, authors)
	if err != nil {
		return nil, err
	}

	// 6. Abgeleitete Attribute.
	if venue != nil {
		if err := tx.Preload("Deal").First(venue, venue.ID).Error; err != nil {
			return nil, fmt.Errorf("venue konnte nicht nachgeladen werden: %w", err)
		}
	}
	if s.Calculator.Apply(work, authorships, venue) {
		changed = true
	}

	if changed || resolved {
		if err := tx.Save(work).Error; err != nil {
			return nil, fmt.Errorf("work konnte nicht gespeichert werden: %w", err)
		}
	}
	if resolved && changed {
		stats.WorksUpdated++
	}
	return work, nil
}

// resolverFor bindet den Resolver an die laufende Transaktion.
func (s *FusionService) resolverFor(tx *gorm.DB) *Resolver {
	dir := *s.Resolver.Directory
	dir.DB = tx
	r := *s.Resolver
	r.DB = tx
	r.Directory = &dir
	return &r
}

// upsertOrganization löst eine Affiliations-Organisation auf oder legt sie an.
// Das Directory wird IMMER zuerst konsultiert (Alias-Konvergenz).
func (s *FusionService) upsertOrganization(tx *gorm.DB, resolver *Resolver, in providers.DocumentAffiliation, tag providers.SourceTag, stats *RunStats) (*models.Organization, error) {
	name := in.Name
	if name == "" {
		name = in.RawText
	}
	if name == "" {
		return nil, nil
	}

	keys := OrganizationKeys{Name: name, PersistentID: in.PersistentID, CountryCode: in.CountryCode}
	org, _, err := resolver.ResolveOrganization(keys)
	if err != nil {
		return nil, err
	}
	if org != nil {
		if s.Policy.FuseOrganization(org, in) {
			if err := tx.Save(org).Error; err != nil {
				return nil, fmt.Errorf("organization konnte nicht aktualisiert werden: %w", err)
			}
		}
		return org, nil
	}

	org = &models.Organization{
		Name:        name,
		CountryCode: in.CountryCode,
		Provenance:  string(tag),
	}
	if in.PersistentID != "" {
		pid := in.PersistentID
		org.PersistentID = &pid
	}
	if err := tx.Create(org).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Kollision mit parallelem Ingest: als Lookup wiederholen.
			existing, _, rerr := resolver.ResolveOrganization(keys)
			if rerr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("organization konnte nicht angelegt werden: %w", err)
	}
	stats.OrgsCreated++
	return org, nil
}

// upsertAuthor löst einen Quell-Autor auf oder legt ihn an und pflegt
// Affiliationen (Jahresmengen nur wachsend) und das Mitglieds-Flag (monoton).
func (s *FusionService) upsertAuthor(tx *gorm.DB, resolver *Resolver, in providers.DocumentAuthor, tag providers.SourceTag, stats *RunStats) (*models.Author, error) {
	keys := AuthorKeys{
		DisplayName: in.DisplayName,
		GivenName:   in.GivenName,
		FamilyName:  in.FamilyName,
		RegistryID:  in.RegistryID,
		SourceID:    in.SourceID,
	}
	author, score, err := resolver.ResolveAuthor(keys)
	if err != nil {
		return nil, err
	}

	created := false
	if author == nil {
		author = &models.Author{
			DisplayName: in.DisplayName,
			GivenName:   in.GivenName,
			FamilyName:  in.FamilyName,
			SourceID:    in.SourceID,
		}
		if in.RegistryID != "" {
			id := in.RegistryID
			author.RegistryID = &id
		}
		if err := tx.Create(author).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				existing, _, rerr := resolver.ResolveAuthor(keys)
				if rerr == nil && existing != nil {
					author = existing
				} else {
					return nil, fmt.Errorf("author konnte nicht angelegt werden: %w", err)
				}
			} else {
				return nil, fmt.Errorf("author konnte nicht angelegt werden: %w", err)
			}
		} else {
			created = true
			stats.AuthorsCreated++
		}
	} else {
		s.Logger.Debug("Autor aufgelöst", zap.Uint("author_id", author.ID), zap.Float64("score", score))
	}

	changes, changed := s.Policy.FuseAuthor(author, in, tag)
	stats.Changes = append(stats.Changes, changes...)

	// Affiliationen anlegen bzw. Jahresmengen vereinigen.
	for _, aff := range in.Affiliations {
		org, err := s.upsertOrganization(tx, resolver, aff, tag, stats)
		if err != nil {
			return nil, err
		}
		if org == nil {
			continue
		}

		var row models.Affiliation
		err = tx.Where("author_id = ? AND organization_id = ?", author.ID, org.ID).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			years, _ := UnionYears(nil, aff.Years)
			row = models.Affiliation{
				AuthorID:       author.ID,
				OrganizationID: org.ID,
				Years:          years,
				RawText:        aff.RawText,
			}
			if err := tx.Create(&row).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("affiliation konnte nicht angelegt werden: %w", err)
			}
		case err != nil:
			return nil, fmt.Errorf("affiliation-lookup fehlgeschlagen: %w", err)
		default:
			if years, yc := UnionYears(row.Years, aff.Years); yc {
				row.Years = years
				if err := tx.Save(&row).Error; err != nil {
					return nil, fmt.Errorf("affiliation konnte nicht aktualisiert werden: %w", err)
				}
			}
		}

		// Directory-Treffer auf die Heimat-Institution macht den Autor zum
		// Institutsmitglied; das Flag fällt nie wieder zurück.
		if s.Resolver.Directory.IsHomeAlias(org.Name) && !author.InstitutionMember {
			author.InstitutionMember = true
			changed = true
		}
	}

	if changed || created {
		if err := tx.Save(author).Error; err != nil {
			return nil, fmt.Errorf("author konnte nicht gespeichert werden: %w", err)
		}
	}
	return author, nil
}

// upsertVenue löst die Venue des Dokuments auf oder legt sie an, inklusive
// Host-Organisation und neu entdeckter Preisvereinbarung.
func (s *FusionService) upsertVenue(tx *gorm.DB, resolver *Resolver, doc *providers.Document, stats *RunStats) (*models.Venue, error) {
	in := doc.Venue
	if in == nil {
		return nil, nil
	}

	keys := VenueKeys{Name: in.Name, ISSN: in.ISSN, EISSN: in.EISSN, PersistentID: in.PersistentID}
	venue, _, err := resolver.ResolveVenue(keys)
	if err != nil {
		return nil, err
	}

	if venue == nil {
		venue = &models.Venue{
			Name:       in.Name,
			ISSN:       in.ISSN,
			EISSN:      in.EISSN,
			OpenAccess: in.OpenAccess,
			InDOAJ:     in.InDOAJ,
		}
		if in.PersistentID != "" {
			pid := in.PersistentID
			venue.PersistentID = &pid
		}
		if in.HostOrgName != "" {
			org, err := s.upsertOrganization(tx, resolver, providers.DocumentAffiliation{Name: in.HostOrgName}, doc.SourceTag, stats)
			if err != nil {
				return nil, err
			}
			if org != nil {
				venue.HostOrganizationID = &org.ID
			}
		}
		if err := tx.Create(venue).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				existing, _, rerr := resolver.ResolveVenue(keys)
				if rerr == nil && existing != nil {
					venue = existing
				} else {
					return nil, fmt.Errorf("venue konnte nicht angelegt werden: %w", err)
				}
			} else {
				return nil, fmt.Errorf("venue konnte nicht angelegt werden: %w", err)
			}
		} else {
			stats.VenuesCreated++
		}
	}

	changes, changed := s.Policy.FuseVenue(venue, in, doc.SourceTag)
	stats.Changes = append(stats.Changes, changes...)
	if changed {
		if err := tx.Save(venue).Error; err != nil {
			return nil, fmt.Errorf("venue konnte nicht gespeichert werden: %w", err)
		}
	}

	// Neu entdeckte Preisvereinbarung anlegen; bestehende bleibt unberührt.
	if in.DealType != "" {
		deal := models.Deal{VenueID: venue.ID, Type: in.DealType}
		if err := tx.Where("venue_id = ?", venue.ID).FirstOrCreate(&deal).Error; err != nil {
			return nil, fmt.Errorf("deal konnte nicht angelegt werden: %w", err)
		}
	}

	return venue, nil
}

// resolveOrCreateWork löst die Work auf oder legt sie frisch aus dem Dokument an.
func (s *FusionService) resolveOrCreateWork(tx *gorm.DB, resolver *Resolver, doc *providers.Document, stats *RunStats) (*models.Work, bool, error) {
	work, _, err := resolver.ResolveWork(WorkKeys{DOI: doc.DOI, Title: doc.Title})
	if err != nil {
		return nil, false, err
	}
	if work != nil {
		return work, true, nil
	}

	work = &models.Work{
		Title:        doc.Title,
		TitleNorm:    NormalizeTitle(doc.Title),
		FieldSources: datatypes.JSONMap{},
	}
	// Create schlägt bei einer parallelen Anlage mit ErrDuplicatedKey fehl;
	// Ingest wiederholt dann die gesamte Transaktion als Lookup.
	if doi := NormalizeDOI(doc.DOI); doi != "" {
		work.DOI = &doi
		work.FieldSources["doi"] = string(doc.SourceTag)
	}
	if err := tx.Create(work).Error; err != nil {
		return nil, false, err
	}
	stats.WorksCreated++
	return work, false, nil
}

// attachLocations hängt die Zugriffsorte des Dokuments idempotent an die Work.
func (s *FusionService) attachLocations(tx *gorm.DB, work *models.Work, doc *providers.Document) error {
	for _, loc := range doc.Locations {
		if loc.URL == "" {
			continue
		}
		row := models.WorkLocation{
			WorkID:     work.ID,
			URL:        loc.URL,
			License:    loc.License,
			Accepted:   loc.Accepted,
			OpenAccess: loc.OpenAccess,
			Primary:    loc.Primary,
			BestOA:     loc.BestOA,
			SourceTag:  string(doc.SourceTag),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "work_id"}, {Name: "url"}},
			DoNothing: true,
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("location konnte nicht angelegt werden: %w", err)
		}
	}
	return nil
}

// attachAuthorships pflegt die geordnete Work<->Author-Beziehung samt
// Institution-Year-Match-Flag.
func (s *FusionService) attachAuthorships(tx *gorm.DB, work *models.Work, doc *providers.Document, authors []*models.Author) ([]models.WorkAuthorship, error) {
	pubYear := publicationYear(work)

	for i, author := range authors {
		in := doc.Authors[i]

		var row models.WorkAuthorship
		err := tx.Where("work_id = ? AND author_id = ?", work.ID, author.ID).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.WorkAuthorship{
				WorkID:        work.ID,
				AuthorID:      author.ID,
				Position:      i + 1,
				Corresponding: in.Corresponding,
			}
			if err := tx.Create(&row).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("authorship konnte nicht angelegt werden: %w", err)
			}
		case err != nil:
			return nil, fmt.Errorf("authorship-lookup fehlgeschlagen: %w", err)
		}

		rowChanged := false
		// Corresponding ist ein entdecktes Faktum: monoton.
		if in.Corresponding && !row.Corresponding {
			row.Corresponding = true
			rowChanged = true
		}
		if pubYear > 0 && !row.YearMatch {
			var affs []models.Affiliation
			if err := tx.Where("author_id = ?", author.ID).Find(&affs).Error; err != nil {
				return nil, fmt.Errorf("affiliationen konnten nicht geladen werden: %w", err)
			}
			for _, aff := range affs {
				if YearsContain(aff.Years, pubYear) {
					row.YearMatch = true
					rowChanged = true
					break
				}
			}
		}
		if rowChanged {
			if err := tx.Save(&row).Error; err != nil {
				return nil, fmt.Errorf("authorship konnte nicht gespeichert werden: %w", err)
			}
		}
	}

	var authorships []models.WorkAuthorship
	if err := tx.Preload("Author").Where("work_id = ?", work.ID).Order("position asc").Find(&authorships).Error; err != nil {
		return nil, fmt.Errorf("authorships konnten nicht geladen werden: %w", err)
	}
	return authorships, nil
}

// writeAudit persistiert die Zusammenfassung eines Laufs (append-only).
func (s *FusionService) writeAudit(tag providers.SourceTag, stats *RunStats) error {
	entry := models.AuditEntry{
		SourceTag:      string(tag),
		WorksCreated:   stats.WorksCreated,
		WorksUpdated:   stats.WorksUpdated,
		AuthorsCreated: stats.AuthorsCreated,
		OrgsCreated:    stats.OrgsCreated,
		VenuesCreated:  stats.VenuesCreated,
		Failed:         stats.Failed,
		Skipped:        stats.Skipped,
	}
	if len(stats.Changes) > 0 {
		if raw, err := json.Marshal(stats.Changes); err == nil {
			entry.Changes = datatypes.JSON(raw)
		}
	}
	return s.DB.Create(&entry).Error
}

// publicationYear ist das Jahr des frühesten bekannten Publikationsdatums.
func publicationYear(work *models.Work) int {
	var earliest *time.Time
	for _, d := range []*time.Time{work.IssuedDate, work.PublishedDate, work.PublishedOnlineDate, work.PublishedPrintDate} {
		if d == nil {
			continue
		}
		if earliest == nil || d.Before(*earliest) {
			earliest = d
		}
	}
	if earliest == nil {
		return 0
	}
	return earliest.Year()
}
