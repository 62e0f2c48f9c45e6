package services

import "testing"

func TestNormalizeDOI(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "10.1234/abc", "https://doi.org/10.1234/abc"},
		{"uppercase", "10.1234/ABC.DEF", "https://doi.org/10.1234/abc.def"},
		{"https prefix", "https://doi.org/10.1234/abc", "https://doi.org/10.1234/abc"},
		{"dx prefix", "http://dx.doi.org/10.1234/abc", "https://doi.org/10.1234/abc"},
		{"doi scheme", "doi:10.1234/abc", "https://doi.org/10.1234/abc"},
		{"trailing slash", "https://doi.org/10.1234/abc/", "https://doi.org/10.1234/abc"},
		{"percent encoded", "10.1234%2Fabc", "https://doi.org/10.1234/abc"},
		{"whitespace", "  10.1234/abc  ", "https://doi.org/10.1234/abc"},
		{"pdf contamination", "10.1234/abc.OpenAccess", "https://doi.org/10.1234/abc"},
		{"funder contamination", "10.1234/abc.FundedByNWO", "https://doi.org/10.1234/abc"},
		{"not a doi", "hdl:1887/12345", ""},
		{"no suffix", "10.1234", ""},
		{"empty", "", ""},
		{"garbage", "just some text", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeDOI(tc.in); got != tc.want {
				t.Errorf("NormalizeDOI(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeDOIIdempotent(t *testing.T) {
	once := NormalizeDOI("DOI:10.1234/AbC")
	twice := NormalizeDOI(once)
	if once != twice {
		t.Errorf("nicht idempotent: %q -> %q", once, twice)
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"A Study: of Things!", "a study of things"},
		{"  Doppelte   Leerzeichen  ", "doppelte leerzeichen"},
		{"Números & Text", "números text"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeTitle(tc.in); got != tc.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
