package services

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pubfuse/models"
)

// Policy-Keywords, die der Kalkulator an Works hängt.
const (
	KeywordDealDiscount = "deal discount applies"
	KeywordDealMissed   = "missed deal, notify authors"
	KeywordNoAction     = "no action needed"
)

// PolicyProcedureKeyword ist das Keyword für die Embargo-Nachverwertung.
func PolicyProcedureKeyword(year int) string {
	return fmt.Sprintf("policy procedure, year=%d", year)
}

// dealCoverage: welcher akzeptierte OA-Status von welchem Deal-Typ abgedeckt wird.
var dealCoverage = map[string]map[string]bool{
	"full":   {"gold": true, "diamond": true},
	"hybrid": {"hybrid": true, "bronze": true},
}

// DerivedCalculator berechnet Embargo-Datum und Policy-Keyword einer fertig
// fusionierten Work. Reine Ableitung, kein Store-Zugriff.
type DerivedCalculator struct {
	Logger            *zap.Logger
	EmbargoOffsetDays int
	openLicenses      map[string]bool

	// Now ist injizierbar, damit Tests den Stichtag fixieren können.
	Now func() time.Time
}

// NewDerivedCalculator erstellt den Kalkulator; die Lizenzliste kommt aus der
// Konfiguration, nicht aus Paket-Globals.
func NewDerivedCalculator(logger *zap.Logger, embargoOffsetDays int, openLicenses []string) *DerivedCalculator {
	set := make(map[string]bool, len(openLicenses))
	for _, l := range openLicenses {
		set[l] = true
	}
	return &DerivedCalculator{
		Logger:            logger,
		EmbargoOffsetDays: embargoOffsetDays,
		openLicenses:      set,
		Now:               time.Now,
	}
}

// EmbargoDate ist das früheste bekannte Publikationsdatum plus Embargo-Offset.
// Ohne jedes Datum bleibt das Embargo undefiniert (nil, kein Default).
func (c *DerivedCalculator) EmbargoDate(work *models.Work) *time.Time {
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
		return nil
	}
	e := earliest.AddDate(0, 0, c.EmbargoOffsetDays)
	return &e
}

// PolicyKeyword wertet die Compliance-Kaskade aus. Genau ein Zweig feuert;
// die Reihenfolge ist fachlich bindend und darf nicht umsortiert werden.
func (c *DerivedCalculator) PolicyKeyword(work *models.Work, authorships []models.WorkAuthorship, venue *models.Venue) string {
	memberCorresponding := false
	for _, as := range authorships {
		if as.Author != nil && as.Author.InstitutionMember && as.Corresponding {
			memberCorresponding = true
			break
		}
	}

	// 1. Korrespondierender Institutsautor + Preisvereinbarung der Venue.
	if memberCorresponding && venue != nil && venue.Deal != nil {
		if dealCoverage[venue.Deal.Type][work.OAStatus] {
			return KeywordDealDiscount
		}
		return KeywordDealMissed
	}

	// 2. Anerkannte offene Lizenz: nichts zu tun.
	if c.openLicenses[work.License] {
		return KeywordNoAction
	}

	// 3. Abgelaufenes Embargo: Nachverwertungsverfahren fürs Embargo-Jahr.
	if work.EmbargoDate != nil && !work.EmbargoDate.After(c.Now()) {
		return PolicyProcedureKeyword(work.EmbargoDate.Year())
	}

	return ""
}

// Apply setzt EmbargoDate und PolicyKeyword an der Work und meldet, ob sich
// etwas geändert hat.
func (c *DerivedCalculator) Apply(work *models.Work, authorships []models.WorkAuthorship, venue *models.Venue) bool {
	changed := false

	embargo := c.EmbargoDate(work)
	switch {
	case embargo == nil && work.EmbargoDate != nil:
		// Nie rückwärts löschen: ohne Datum bleibt der alte Wert stehen.
	case embargo != nil && (work.EmbargoDate == nil || !work.EmbargoDate.Equal(*embargo)):
		work.EmbargoDate = embargo
		changed = true
	}

	keyword := c.PolicyKeyword(work, authorships, venue)
	if keyword != work.PolicyKeyword {
		c.Logger.Debug("Policy-Keyword aktualisiert",
			zap.Uint("work_id", work.ID),
			zap.String("old", work.PolicyKeyword),
			zap.String("new", keyword))
		work.PolicyKeyword = keyword
		changed = true
	}

	return changed
}

// YearsContain prüft, ob eine Affiliations-Jahresmenge ein Jahr enthält.
func YearsContain(raw []byte, year int) bool {
	var years []int
	if err := json.Unmarshal(raw, &years); err != nil {
		return false
	}
	for _, y := range years {
		if y == year {
			return true
		}
	}
	return false
}
