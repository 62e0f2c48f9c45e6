package services

import (
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"pubfuse/models"
	"pubfuse/providers"
)

// FieldChange dokumentiert eine Überschreibung während der Fusion; jede
// Überschreibung landet im AuditEntry des Laufs.
type FieldChange struct {
	Entity   string `json:"entity"`
	EntityID uint   `json:"entity_id"`
	Field    string `json:"field"`
	Old      string `json:"old"`
	New      string `json:"new"`
	Source   string `json:"source"`
}

// FusionPolicy führt die Feld-Fusion unter der Quellen-Präzedenzordnung aus.
// Regeln in dieser Reihenfolge: Lücken füllen, Konflikte nur bei strikt
// höherer Präzedenz überschreiben, Mengenfelder vereinigen, Fakten-Flags
// monoton halten. Die Policy ist idempotent: dasselbe Dokument ein zweites
// Mal zu fusionieren ändert nichts mehr.
type FusionPolicy struct {
	Logger *zap.Logger
}

// NewFusionPolicy erstellt eine neue FusionPolicy.
func NewFusionPolicy(logger *zap.Logger) *FusionPolicy {
	return &FusionPolicy{Logger: logger}
}

// lastRank liest den Präzedenzrang der Quelle, die ein Feld zuletzt gesetzt
// hat; 0, wenn unbekannt (dann darf jede bekannte Quelle überschreiben).
func lastRank(fs datatypes.JSONMap, field string) int {
	if fs == nil {
		return 0
	}
	tag, _ := fs[field].(string)
	return providers.SourceTag(tag).Rank()
}

// fuseString wendet die Skalar-Regeln auf ein String-Feld an.
func (p *FusionPolicy) fuseString(fs datatypes.JSONMap, field string, current *string, incoming string, tag providers.SourceTag) (changed, overwrote bool, old string) {
	if incoming == "" || incoming == *current {
		return false, false, ""
	}
	if *current == "" {
		*current = incoming
		fs[field] = string(tag)
		return true, false, ""
	}
	if tag.Rank() > lastRank(fs, field) {
		old = *current
		*current = incoming
		fs[field] = string(tag)
		return true, true, old
	}
	return false, false, ""
}

// fuseDate wendet dieselben Regeln auf ein Datumsfeld an.
func (p *FusionPolicy) fuseDate(fs datatypes.JSONMap, field string, current **time.Time, incoming *time.Time, tag providers.SourceTag) (changed, overwrote bool, old string) {
	if incoming == nil {
		return false, false, ""
	}
	if *current == nil {
		t := *incoming
		*current = &t
		fs[field] = string(tag)
		return true, false, ""
	}
	if (*current).Equal(*incoming) {
		return false, false, ""
	}
	if tag.Rank() > lastRank(fs, field) {
		old = (*current).Format(time.RFC3339)
		t := *incoming
		*current = &t
		fs[field] = string(tag)
		return true, true, old
	}
	return false, false, ""
}

// fuseFlagUp hält ein entdecktes Faktum monoton: einmal true, immer true.
func fuseFlagUp(current *bool, incoming bool) bool {
	if incoming && !*current {
		*current = true
		return true
	}
	return false
}

// UnionYears vereinigt eine Jahresmenge mit neuen Jahren; die Menge wächst nur.
func UnionYears(existing datatypes.JSON, incoming []int) (datatypes.JSON, bool) {
	var years []int
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &years)
	}
	seen := make(map[int]struct{}, len(years))
	for _, y := range years {
		seen[y] = struct{}{}
	}
	changed := false
	for _, y := range incoming {
		if _, ok := seen[y]; !ok {
			seen[y] = struct{}{}
			years = append(years, y)
			changed = true
		}
	}
	if !changed {
		return existing, false
	}
	sort.Ints(years)
	out, _ := json.Marshal(years)
	return datatypes.JSON(out), true
}

// UnionStrings vereinigt eine String-Menge (Namensvarianten, Link-Bags).
func UnionStrings(existing datatypes.JSON, incoming ...string) (datatypes.JSON, bool) {
	var values []string
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &values)
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	changed := false
	for _, v := range incoming {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			values = append(values, v)
			changed = true
		}
	}
	if !changed {
		return existing, false
	}
	sort.Strings(values)
	out, _ := json.Marshal(values)
	return datatypes.JSON(out), true
}

// FuseWork fusioniert ein Dokument in eine bestehende Work (in place) und
// liefert die Überschreibungen plus ob sich überhaupt etwas geändert hat.
func (p *FusionPolicy) FuseWork(work *models.Work, doc *providers.Document) (changes []FieldChange, changed bool) {
	if work.FieldSources == nil {
		work.FieldSources = datatypes.JSONMap{}
	}
	tag := doc.SourceTag

	record := func(field, old, newVal string, c, o bool) {
		if c {
			changed = true
		}
		if o {
			changes = append(changes, FieldChange{
				Entity: "work", EntityID: work.ID, Field: field,
				Old: old, New: newVal, Source: string(tag),
			})
		}
	}

	// DOI ist Identität: nur Lücken füllen, nie überschreiben.
	if doi := NormalizeDOI(doc.DOI); doi != "" {
		if work.DOI == nil || *work.DOI == "" {
			work.DOI = &doi
			work.FieldSources["doi"] = string(tag)
			changed = true
		} else if *work.DOI != doi {
			p.Logger.Warn("Dokument liefert abweichende DOI für bestehende Work, wird ignoriert",
				zap.Uint("work_id", work.ID), zap.String("existing", *work.DOI), zap.String("incoming", doi))
		}
	}

	c, o, old := p.fuseString(work.FieldSources, "title", &work.Title, doc.Title, tag)
	record("title", old, doc.Title, c, o)
	if c {
		work.TitleNorm = NormalizeTitle(work.Title)
	}
	c, o, old = p.fuseString(work.FieldSources, "source_url", &work.SourceURL, doc.SourceURL, tag)
	record("source_url", old, doc.SourceURL, c, o)
	c, o, old = p.fuseString(work.FieldSources, "item_type", &work.ItemType, doc.ItemType, tag)
	record("item_type", old, doc.ItemType, c, o)
	c, o, old = p.fuseString(work.FieldSources, "license", &work.License, doc.License, tag)
	record("license", old, doc.License, c, o)
	c, o, old = p.fuseString(work.FieldSources, "oa_status", &work.OAStatus, doc.OAStatus, tag)
	record("oa_status", old, doc.OAStatus, c, o)
	c, o, old = p.fuseString(work.FieldSources, "pages", &work.Pages, doc.Pages, tag)
	record("pages", old, doc.Pages, c, o)

	c, o, old = p.fuseDate(work.FieldSources, "issued_date", &work.IssuedDate, doc.Dates.Issued, tag)
	record("issued_date", old, fmtDate(doc.Dates.Issued), c, o)
	c, o, old = p.fuseDate(work.FieldSources, "published_date", &work.PublishedDate, doc.Dates.Published, tag)
	record("published_date", old, fmtDate(doc.Dates.Published), c, o)
	c, o, old = p.fuseDate(work.FieldSources, "published_online_date", &work.PublishedOnlineDate, doc.Dates.PublishedOnline, tag)
	record("published_online_date", old, fmtDate(doc.Dates.PublishedOnline), c, o)
	c, o, old = p.fuseDate(work.FieldSources, "published_print_date", &work.PublishedPrintDate, doc.Dates.PublishedPrint, tag)
	record("published_print_date", old, fmtDate(doc.Dates.PublishedPrint), c, o)

	return changes, changed
}

// FuseAuthor fusioniert einen Quell-Autor in einen bestehenden Author.
func (p *FusionPolicy) FuseAuthor(author *models.Author, in providers.DocumentAuthor, tag providers.SourceTag) (changes []FieldChange, changed bool) {
	if author.FieldSources == nil {
		author.FieldSources = datatypes.JSONMap{}
	}

	record := func(field, old, newVal string, c, o bool) {
		if c {
			changed = true
		}
		if o {
			changes = append(changes, FieldChange{
				Entity: "author", EntityID: author.ID, Field: field,
				Old: old, New: newVal, Source: string(tag),
			})
		}
	}

	c, o, old := p.fuseString(author.FieldSources, "display_name", &author.DisplayName, in.DisplayName, tag)
	record("display_name", old, in.DisplayName, c, o)
	c, o, old = p.fuseString(author.FieldSources, "given_name", &author.GivenName, in.GivenName, tag)
	record("given_name", old, in.GivenName, c, o)
	c, o, old = p.fuseString(author.FieldSources, "family_name", &author.FamilyName, in.FamilyName, tag)
	record("family_name", old, in.FamilyName, c, o)

	// Registry-ID ist eindeutig: nur Lücken füllen.
	if in.RegistryID != "" && (author.RegistryID == nil || *author.RegistryID == "") {
		id := in.RegistryID
		author.RegistryID = &id
		author.FieldSources["registry_id"] = string(tag)
		changed = true
	}
	if in.SourceID != "" && author.SourceID == "" {
		author.SourceID = in.SourceID
		author.FieldSources["source_id"] = string(tag)
		changed = true
	}

	// Namensvarianten: Vereinigung, nie Überschreibung.
	if variants, vc := UnionStrings(author.NameVariants, in.DisplayName); vc {
		author.NameVariants = variants
		changed = true
	}

	return changes, changed
}

// FuseVenue fusioniert Quell-Angaben in eine bestehende Venue.
func (p *FusionPolicy) FuseVenue(venue *models.Venue, in *providers.DocumentVenue, tag providers.SourceTag) (changes []FieldChange, changed bool) {
	if in == nil {
		return nil, false
	}
	if venue.FieldSources == nil {
		venue.FieldSources = datatypes.JSONMap{}
	}

	record := func(field, old, newVal string, c, o bool) {
		if c {
			changed = true
		}
		if o {
			changes = append(changes, FieldChange{
				Entity: "venue", EntityID: venue.ID, Field: field,
				Old: old, New: newVal, Source: string(tag),
			})
		}
	}

	c, o, old := p.fuseString(venue.FieldSources, "name", &venue.Name, in.Name, tag)
	record("name", old, in.Name, c, o)
	c, o, old = p.fuseString(venue.FieldSources, "issn", &venue.ISSN, in.ISSN, tag)
	record("issn", old, in.ISSN, c, o)
	c, o, old = p.fuseString(venue.FieldSources, "eissn", &venue.EISSN, in.EISSN, tag)
	record("eissn", old, in.EISSN, c, o)

	if in.PersistentID != "" && (venue.PersistentID == nil || *venue.PersistentID == "") {
		id := in.PersistentID
		venue.PersistentID = &id
		venue.FieldSources["persistent_id"] = string(tag)
		changed = true
	}

	if fuseFlagUp(&venue.OpenAccess, in.OpenAccess) {
		changed = true
	}
	if fuseFlagUp(&venue.InDOAJ, in.InDOAJ) {
		changed = true
	}

	return changes, changed
}

// FuseOrganization füllt Lücken einer bestehenden Organization (Name ist
// Identität und wird nie angefasst).
func (p *FusionPolicy) FuseOrganization(org *models.Organization, in providers.DocumentAffiliation) (changed bool) {
	if org.CountryCode == "" && in.CountryCode != "" {
		org.CountryCode = in.CountryCode
		changed = true
	}
	if (org.PersistentID == nil || *org.PersistentID == "") && in.PersistentID != "" {
		id := in.PersistentID
		org.PersistentID = &id
		changed = true
	}
	return changed
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
