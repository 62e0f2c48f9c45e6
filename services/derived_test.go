package services

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"pubfuse/models"
)

func newTestCalculator() *DerivedCalculator {
	c := NewDerivedCalculator(zap.NewNop(), 184, []string{"cc-by", "cc-by-sa", "cc0"})
	c.Now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestEmbargoDateUsesEarliestDate(t *testing.T) {
	c := newTestCalculator()
	work := &models.Work{
		IssuedDate:          datePtr(2024, 5, 1),
		PublishedOnlineDate: datePtr(2024, 1, 10),
		PublishedPrintDate:  datePtr(2024, 6, 1),
	}
	got := c.EmbargoDate(work)
	want := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 184)
	if got == nil || !got.Equal(want) {
		t.Errorf("EmbargoDate = %v, want %v", got, want)
	}
}

func TestEmbargoDateNilWithoutDates(t *testing.T) {
	c := newTestCalculator()
	if got := c.EmbargoDate(&models.Work{}); got != nil {
		t.Errorf("ohne Datum darf es kein Embargo geben, got %v", got)
	}
}

func TestApplyNeverClearsEmbargo(t *testing.T) {
	c := newTestCalculator()
	existing := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	work := &models.Work{EmbargoDate: &existing}
	c.Apply(work, nil, nil)
	if work.EmbargoDate == nil || !work.EmbargoDate.Equal(existing) {
		t.Errorf("Embargo darf nie rückwärts gelöscht werden, got %v", work.EmbargoDate)
	}
}

func memberCorrespondingAuthorships() []models.WorkAuthorship {
	return []models.WorkAuthorship{
		{Corresponding: true, Author: &models.Author{InstitutionMember: true}},
		{Corresponding: false, Author: &models.Author{InstitutionMember: false}},
	}
}

func TestPolicyKeywordDealDiscount(t *testing.T) {
	c := newTestCalculator()
	venue := &models.Venue{Deal: &models.Deal{Type: "full"}}
	work := &models.Work{OAStatus: "gold"}
	if got := c.PolicyKeyword(work, memberCorrespondingAuthorships(), venue); got != KeywordDealDiscount {
		t.Errorf("keyword = %q, want %q", got, KeywordDealDiscount)
	}
}

func TestPolicyKeywordDealMissed(t *testing.T) {
	c := newTestCalculator()
	venue := &models.Venue{Deal: &models.Deal{Type: "full"}}
	work := &models.Work{OAStatus: "hybrid"}
	if got := c.PolicyKeyword(work, memberCorrespondingAuthorships(), venue); got != KeywordDealMissed {
		t.Errorf("keyword = %q, want %q", got, KeywordDealMissed)
	}
}

func TestPolicyKeywordHybridDealCoversBronze(t *testing.T) {
	c := newTestCalculator()
	venue := &models.Venue{Deal: &models.Deal{Type: "hybrid"}}
	work := &models.Work{OAStatus: "bronze"}
	if got := c.PolicyKeyword(work, memberCorrespondingAuthorships(), venue); got != KeywordDealDiscount {
		t.Errorf("keyword = %q, want %q", got, KeywordDealDiscount)
	}
}

func TestPolicyKeywordDealRequiresMemberCorresponding(t *testing.T) {
	c := newTestCalculator()
	venue := &models.Venue{Deal: &models.Deal{Type: "full"}}
	work := &models.Work{OAStatus: "gold"}
	authorships := []models.WorkAuthorship{
		// Mitglied, aber nicht korrespondierend.
		{Corresponding: false, Author: &models.Author{InstitutionMember: true}},
	}
	if got := c.PolicyKeyword(work, authorships, venue); got == KeywordDealDiscount || got == KeywordDealMissed {
		t.Errorf("ohne korrespondierenden Institutsautor kein Deal-Zweig, got %q", got)
	}
}

func TestPolicyKeywordOpenLicenseNoAction(t *testing.T) {
	c := newTestCalculator()
	work := &models.Work{License: "cc-by"}
	if got := c.PolicyKeyword(work, nil, nil); got != KeywordNoAction {
		t.Errorf("keyword = %q, want %q", got, KeywordNoAction)
	}
}

func TestPolicyKeywordOpenLicenseBeatsExpiredEmbargo(t *testing.T) {
	c := newTestCalculator()
	work := &models.Work{License: "cc-by", EmbargoDate: datePtr(2024, 1, 1)}
	if got := c.PolicyKeyword(work, nil, nil); got != KeywordNoAction {
		t.Errorf("offene Lizenz darf nie im Verfahrens-Zweig landen, got %q", got)
	}
}

func TestPolicyKeywordExpiredEmbargo(t *testing.T) {
	c := newTestCalculator()
	work := &models.Work{EmbargoDate: datePtr(2024, 11, 15)}
	want := PolicyProcedureKeyword(2024)
	if got := c.PolicyKeyword(work, nil, nil); got != want {
		t.Errorf("keyword = %q, want %q", got, want)
	}
}

func TestPolicyKeywordFutureEmbargoEmpty(t *testing.T) {
	c := newTestCalculator()
	work := &models.Work{EmbargoDate: datePtr(2026, 1, 1)}
	if got := c.PolicyKeyword(work, nil, nil); got != "" {
		t.Errorf("laufendes Embargo ergibt kein Keyword, got %q", got)
	}
}

func TestPolicyProcedureKeywordFormat(t *testing.T) {
	if got := PolicyProcedureKeyword(2023); got != "policy procedure, year=2023" {
		t.Errorf("keyword = %q", got)
	}
}

func TestYearsContain(t *testing.T) {
	raw := []byte("[2019,2021]")
	if !YearsContain(raw, 2021) {
		t.Error("2021 muss enthalten sein")
	}
	if YearsContain(raw, 2020) {
		t.Error("2020 darf nicht enthalten sein")
	}
	if YearsContain([]byte("kaputt"), 2021) {
		t.Error("kaputte Daten ergeben false")
	}
}
