package services

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pubfuse/models"
)

func newTestRepoLink(t *testing.T) (*RepoLinkService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewRepoLinkService(db, zap.NewNop()), db
}

func TestRunRepairLinksByDOI(t *testing.T) {
	svc, db := newTestRepoLink(t)

	doi := "https://doi.org/10.1234/abc"
	work := models.Work{Title: "A Study", DOI: &doi}
	db.Create(&work)
	db.Create(&models.RepositoryRecord{OAIIdentifier: "oai:repo:1", DOI: doi, Title: "A Study"})

	stats, err := svc.RunRepair(context.Background())
	if err != nil {
		t.Fatalf("RunRepair: %v", err)
	}
	if stats.Linked != 1 || stats.Unlinked != 0 {
		t.Errorf("stats = %+v", stats)
	}

	var rec models.RepositoryRecord
	db.First(&rec, "oai_identifier = ?", "oai:repo:1")
	if rec.WorkID == nil || *rec.WorkID != work.ID || !rec.Checked {
		t.Errorf("Record nicht verknüpft: %+v", rec)
	}

	db.First(&work, work.ID)
	if !work.RepoLinked {
		t.Error("Work.RepoLinked muss gesetzt werden")
	}
}

func TestRunRepairLinksByRepoURL(t *testing.T) {
	svc, db := newTestRepoLink(t)

	work := models.Work{Title: "URL Matched"}
	db.Create(&work)
	db.Create(&models.WorkLocation{WorkID: work.ID, URL: "https://repo.example.org/handle/1887/42"})
	db.Create(&models.RepositoryRecord{
		OAIIdentifier: "oai:repo:2",
		Title:         "Ganz anderer Titel",
		RepoURL:       "https://repo.example.org/handle/1887/42",
	})

	stats, err := svc.RunRepair(context.Background())
	if err != nil {
		t.Fatalf("RunRepair: %v", err)
	}
	if stats.Linked != 1 {
		t.Errorf("URL-Substring-Match muss verknüpfen: %+v", stats)
	}
}

func TestRunRepairLinksByTitle(t *testing.T) {
	svc, db := newTestRepoLink(t)

	db.Create(&models.Work{Title: "A Study of Things", TitleNorm: "a study of things"})
	db.Create(&models.RepositoryRecord{OAIIdentifier: "oai:repo:3", Title: "A Study: of Things!"})

	stats, err := svc.RunRepair(context.Background())
	if err != nil {
		t.Fatalf("RunRepair: %v", err)
	}
	if stats.Linked != 1 {
		t.Errorf("Titel-Match muss verknüpfen: %+v", stats)
	}
}

func TestRunRepairLinksByDuplicateID(t *testing.T) {
	svc, db := newTestRepoLink(t)

	doi := "https://doi.org/10.1234/alt"
	db.Create(&models.Work{Title: "Altversion", DOI: &doi})
	db.Create(&models.RepositoryRecord{
		OAIIdentifier: "oai:repo:4",
		Title:         "Ganz anderer Titel",
		DuplicateIDs:  []byte(`["10.1234/ALT"]`),
	})

	stats, err := svc.RunRepair(context.Background())
	if err != nil {
		t.Fatalf("RunRepair: %v", err)
	}
	if stats.Linked != 1 {
		t.Errorf("Duplikat-ID-Match muss verknüpfen: %+v", stats)
	}
}

func TestRunRepairMarksUnmatchedAsChecked(t *testing.T) {
	svc, db := newTestRepoLink(t)

	db.Create(&models.RepositoryRecord{OAIIdentifier: "oai:repo:5", Title: "Nirgends zu finden"})

	stats, err := svc.RunRepair(context.Background())
	if err != nil {
		t.Fatalf("RunRepair: %v", err)
	}
	if stats.Unlinked != 1 {
		t.Errorf("stats = %+v", stats)
	}

	var rec models.RepositoryRecord
	db.First(&rec, "oai_identifier = ?", "oai:repo:5")
	if !rec.Checked || rec.WorkID != nil {
		t.Errorf("Record muss geprüft-aber-unverknüpft sein: %+v", rec)
	}
}

func TestRunRepairSkipsCheckedRecords(t *testing.T) {
	svc, db := newTestRepoLink(t)

	doi := "https://doi.org/10.1234/abc"
	db.Create(&models.Work{Title: "A Study", DOI: &doi})
	db.Create(&models.RepositoryRecord{OAIIdentifier: "oai:repo:6", DOI: doi, Title: "A Study"})

	if _, err := svc.RunRepair(context.Background()); err != nil {
		t.Fatalf("erster Lauf: %v", err)
	}
	stats, err := svc.RunRepair(context.Background())
	if err != nil {
		t.Fatalf("zweiter Lauf: %v", err)
	}
	if stats.Checked != 0 {
		t.Errorf("geprüfte Records dürfen nicht erneut angefasst werden: %+v", stats)
	}
}

func TestRecheckReleasesRecord(t *testing.T) {
	svc, db := newTestRepoLink(t)

	workID := uint(7)
	db.Create(&models.RepositoryRecord{OAIIdentifier: "oai:repo:7", WorkID: &workID, Checked: true})

	var rec models.RepositoryRecord
	db.First(&rec, "oai_identifier = ?", "oai:repo:7")
	if err := svc.Recheck(rec.ID); err != nil {
		t.Fatalf("Recheck: %v", err)
	}

	db.First(&rec, rec.ID)
	if rec.Checked || rec.WorkID != nil {
		t.Errorf("Recheck muss Verknüpfung und Checkpoint lösen: %+v", rec)
	}

	if err := svc.Recheck(99999); err == nil {
		t.Error("unbekannte ID muss einen Fehler liefern")
	}
}

func TestUpsertRecordKeepsExistingLink(t *testing.T) {
	svc, db := newTestRepoLink(t)

	workID := uint(3)
	db.Create(&models.RepositoryRecord{OAIIdentifier: "oai:repo:8", Title: "Alt", WorkID: &workID, Checked: true})

	rec := &models.RepositoryRecord{OAIIdentifier: "oai:repo:8", Title: "Neu", DOI: "10.1234/abc"}
	if err := svc.UpsertRecord(rec); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}
	if rec.WorkID == nil || *rec.WorkID != workID || !rec.Checked {
		t.Errorf("bestehende Verknüpfung muss unberührt bleiben: %+v", rec)
	}
	if rec.Title != "Neu" || rec.DOI != "https://doi.org/10.1234/abc" {
		t.Errorf("Metadaten müssen aktualisiert werden: %+v", rec)
	}

	var count int64
	db.Model(&models.RepositoryRecord{}).Count(&count)
	if count != 1 {
		t.Errorf("records = %d, want 1", count)
	}
}
