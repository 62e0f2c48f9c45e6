package citmeta

import (
	"testing"
	"time"
)

func TestDatePartsTime(t *testing.T) {
	full := DateParts{DateParts: [][]int{{2024, 3, 15}}}
	if got := full.Time(); got == nil || !got.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Time() = %v", got)
	}

	yearOnly := DateParts{DateParts: [][]int{{2024}}}
	if got := yearOnly.Time(); got == nil || !got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("fehlende Teile werden mit 1 gefüllt, got %v", got)
	}

	if got := (DateParts{}).Time(); got != nil {
		t.Errorf("leere DateParts ergeben nil, got %v", got)
	}
}

func TestLicenseFromURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://creativecommons.org/licenses/by/4.0/", "cc-by"},
		{"http://creativecommons.org/licenses/by-nc-nd/4.0/", "cc-by-nc-nd"},
		{"https://creativecommons.org/publicdomain/zero/1.0/", "cc0"},
		{"https://www.elsevier.com/tdm/userlicense/1.0/", ""},
	}
	for _, tc := range cases {
		if got := licenseFromURL(tc.in); got != tc.want {
			t.Errorf("licenseFromURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMapWorkToDocument(t *testing.T) {
	w := &CiteWork{
		DOI:            "10.1234/abc",
		Title:          []string{"A Study"},
		Type:           "journal-article",
		Page:           "1-10",
		ContainerTitle: []string{"Journal of Things"},
		ISSNType: []ISSNType{
			{Value: "1234-5678", Type: "print"},
			{Value: "8765-4321", Type: "electronic"},
		},
		Author: []CiteAuthor{{Given: "John", Family: "Smith", Sequence: "first"}},
	}
	doc := mapWorkToDocument(w)
	if doc.Title != "A Study" || doc.DOI != "10.1234/abc" || doc.Pages != "1-10" {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Venue == nil || doc.Venue.ISSN != "1234-5678" || doc.Venue.EISSN != "8765-4321" {
		t.Errorf("venue = %+v", doc.Venue)
	}
	if len(doc.Authors) != 1 || doc.Authors[0].DisplayName != "John Smith" || !doc.Authors[0].Corresponding {
		t.Errorf("authors = %+v", doc.Authors)
	}
}
