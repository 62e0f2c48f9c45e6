package services

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"pubfuse/models"
)

func TestDeduplicateOrganizations(t *testing.T) {
	db := newTestDB(t)
	svc := NewDedupService(db, zap.NewNop())

	// Zwei Zeilen mit identischem Namen (historischer Datenqualitätsdefekt).
	survivor := models.Organization{Name: "Utrecht University", CountryCode: "NL"}
	db.Create(&survivor)
	dup := models.Organization{Name: "Utrecht University"}
	db.Create(&dup)

	author := models.Author{DisplayName: "Anna Visser"}
	db.Create(&author)
	db.Create(&models.Affiliation{AuthorID: author.ID, OrganizationID: dup.ID, Years: []byte("[2021]")})

	venue := models.Venue{Name: "Journal of Things", HostOrganizationID: &dup.ID}
	db.Create(&venue)

	result, err := svc.DeduplicateOrganizations(context.Background())
	if err != nil {
		t.Fatalf("DeduplicateOrganizations: %v", err)
	}
	if result.Groups != 1 || result.Removed != 1 {
		t.Errorf("result = %+v", result)
	}

	var orgs int64
	db.Model(&models.Organization{}).Where("name = ?", "Utrecht University").Count(&orgs)
	if orgs != 1 {
		t.Fatalf("orgs = %d, want 1", orgs)
	}

	// Beziehungen müssen auf den Überlebenden zeigen.
	var aff models.Affiliation
	db.First(&aff, "author_id = ?", author.ID)
	if aff.OrganizationID != survivor.ID {
		t.Errorf("Affiliation zeigt auf %d statt %d", aff.OrganizationID, survivor.ID)
	}
	db.First(&venue, venue.ID)
	if venue.HostOrganizationID == nil || *venue.HostOrganizationID != survivor.ID {
		t.Errorf("Venue-Host nicht umgehängt: %+v", venue.HostOrganizationID)
	}
}

func TestDeduplicateOrganizationsMergesAffiliationYears(t *testing.T) {
	db := newTestDB(t)
	svc := NewDedupService(db, zap.NewNop())

	survivor := models.Organization{Name: "Utrecht University"}
	db.Create(&survivor)
	dup := models.Organization{Name: "Utrecht University"}
	db.Create(&dup)

	author := models.Author{DisplayName: "Anna Visser"}
	db.Create(&author)
	// Der Autor hängt an beiden Zeilen, mit verschiedenen Jahren.
	db.Create(&models.Affiliation{AuthorID: author.ID, OrganizationID: survivor.ID, Years: []byte("[2019]")})
	db.Create(&models.Affiliation{AuthorID: author.ID, OrganizationID: dup.ID, Years: []byte("[2021]")})

	if _, err := svc.DeduplicateOrganizations(context.Background()); err != nil {
		t.Fatalf("DeduplicateOrganizations: %v", err)
	}

	var affs []models.Affiliation
	db.Where("author_id = ?", author.ID).Find(&affs)
	if len(affs) != 1 {
		t.Fatalf("affs = %d, want 1", len(affs))
	}
	if !YearsContain(affs[0].Years, 2019) || !YearsContain(affs[0].Years, 2021) {
		t.Errorf("Jahresmengen müssen vereinigt werden: %s", affs[0].Years)
	}
}

func TestDeduplicateWorks(t *testing.T) {
	db := newTestDB(t)
	svc := NewDedupService(db, zap.NewNop())

	survivor := models.Work{Title: "A Study", TitleNorm: "a study"}
	db.Create(&survivor)
	dup := models.Work{Title: "A Study", TitleNorm: "a study"}
	db.Create(&dup)

	author := models.Author{DisplayName: "Anna Visser"}
	db.Create(&author)
	db.Create(&models.WorkAuthorship{WorkID: dup.ID, AuthorID: author.ID, Position: 1})
	db.Create(&models.WorkLocation{WorkID: dup.ID, URL: "https://example.org/x"})

	result, err := svc.DeduplicateWorks(context.Background())
	if err != nil {
		t.Fatalf("DeduplicateWorks: %v", err)
	}
	if result.Removed != 1 {
		t.Errorf("result = %+v", result)
	}

	var authorship models.WorkAuthorship
	db.First(&authorship, "author_id = ?", author.ID)
	if authorship.WorkID != survivor.ID {
		t.Errorf("Authorship nicht umgehängt: work_id=%d", authorship.WorkID)
	}
	var loc models.WorkLocation
	db.First(&loc, "url = ?", "https://example.org/x")
	if loc.WorkID != survivor.ID {
		t.Errorf("Location nicht umgehängt: work_id=%d", loc.WorkID)
	}
}

func TestDeduplicateWorksMergesSharedRelations(t *testing.T) {
	db := newTestDB(t)
	svc := NewDedupService(db, zap.NewNop())

	survivor := models.Work{Title: "A Study", TitleNorm: "a study"}
	db.Create(&survivor)
	dup := models.Work{Title: "A Study", TitleNorm: "a study"}
	db.Create(&dup)

	// Die übliche Form eines Duplikats: beide Zeilen teilen sich Autor und URL.
	author := models.Author{DisplayName: "Anna Visser"}
	db.Create(&author)
	db.Create(&models.WorkAuthorship{WorkID: survivor.ID, AuthorID: author.ID, Position: 1})
	db.Create(&models.WorkAuthorship{WorkID: dup.ID, AuthorID: author.ID, Position: 1, Corresponding: true})
	db.Create(&models.WorkLocation{WorkID: survivor.ID, URL: "https://example.org/x"})
	db.Create(&models.WorkLocation{WorkID: dup.ID, URL: "https://example.org/x"})

	result, err := svc.DeduplicateWorks(context.Background())
	if err != nil {
		t.Fatalf("geteilte Beziehungen dürfen den Lauf nicht abbrechen: %v", err)
	}
	if result.Removed != 1 {
		t.Errorf("result = %+v", result)
	}

	var authorships []models.WorkAuthorship
	db.Where("author_id = ?", author.ID).Find(&authorships)
	if len(authorships) != 1 || authorships[0].WorkID != survivor.ID {
		t.Fatalf("genau eine Authorship auf dem Überlebenden erwartet: %+v", authorships)
	}
	if !authorships[0].Corresponding {
		t.Error("Corresponding-Flag des Duplikats muss auf den Überlebenden wandern")
	}

	var locations []models.WorkLocation
	db.Where("url = ?", "https://example.org/x").Find(&locations)
	if len(locations) != 1 || locations[0].WorkID != survivor.ID {
		t.Errorf("genau eine Location auf dem Überlebenden erwartet: %+v", locations)
	}
}

func TestDeduplicateWorksIgnoresDOIWorks(t *testing.T) {
	db := newTestDB(t)
	svc := NewDedupService(db, zap.NewNop())

	doi := "https://doi.org/10.1234/abc"
	db.Create(&models.Work{Title: "A Study", TitleNorm: "a study", DOI: &doi})
	db.Create(&models.Work{Title: "A Study", TitleNorm: "a study"})

	result, err := svc.DeduplicateWorks(context.Background())
	if err != nil {
		t.Fatalf("DeduplicateWorks: %v", err)
	}
	if result.Removed != 0 {
		t.Errorf("Works mit DOI sind nie Titel-Duplikate: %+v", result)
	}
}
