package services

import "testing"

func TestCanonicalizeAliasConvergence(t *testing.T) {
	db := newTestDB(t)
	dir := newTestDirectory(db)
	if _, err := dir.EnsureHome(); err != nil {
		t.Fatalf("EnsureHome: %v", err)
	}

	// Alle Alias-Schreibweisen müssen auf dieselbe Zeile zeigen.
	spellings := []string{
		"Leiden University",
		"Universiteit Leiden",
		"universiteit leiden",
		"  Leiden   Univ  ",
		"LEI",
	}
	var firstID uint
	for _, s := range spellings {
		org, err := dir.Canonicalize(OrganizationKeys{Name: s})
		if err != nil {
			t.Fatalf("Canonicalize(%q): %v", s, err)
		}
		if org == nil {
			t.Fatalf("Canonicalize(%q) = nil, Alias muss treffen", s)
		}
		if firstID == 0 {
			firstID = org.ID
		} else if org.ID != firstID {
			t.Errorf("Alias %q zeigt auf Organization %d statt %d", s, org.ID, firstID)
		}
	}

	var count int64
	db.Table("organizations").Count(&count)
	if count != 1 {
		t.Errorf("Alias-Konvergenz verletzt: %d Organization-Zeilen", count)
	}
}

func TestCanonicalizePersistentIDBeforeName(t *testing.T) {
	db := newTestDB(t)
	dir := newTestDirectory(db)

	pid := "https://ror.org/zzzz"
	db.Exec("INSERT INTO organizations (name, persistent_id) VALUES (?, ?)", "Other University", pid)

	org, err := dir.Canonicalize(OrganizationKeys{Name: "Völlig anderer Name", PersistentID: pid})
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if org == nil || org.Name != "Other University" {
		t.Errorf("Persistent-ID muss vor dem Namen gewinnen, got %+v", org)
	}
}

func TestCanonicalizeUnknownIsNoMatch(t *testing.T) {
	db := newTestDB(t)
	dir := newTestDirectory(db)

	org, err := dir.Canonicalize(OrganizationKeys{Name: "Unbekannte Hochschule"})
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if org != nil {
		t.Errorf("kein Treffer erwartet, got %+v", org)
	}
}

func TestIsHomeAlias(t *testing.T) {
	db := newTestDB(t)
	dir := newTestDirectory(db)

	if !dir.IsHomeAlias("universiteit leiden") {
		t.Error("Alias muss erkannt werden")
	}
	if dir.IsHomeAlias("Utrecht University") {
		t.Error("fremde Institution darf kein Alias sein")
	}
}
