package services

import (
	"net/url"
	"regexp"
	"strings"
)

// doiPrefixes sind bekannte Präfixe, in denen DOIs angeliefert werden.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// doiContamination entfernt bekannte Verunreinigungen am Ende einer DOI,
// z.B. angehängtes "openaccess" oder Förderhinweis-Boilerplate aus PDFs.
var doiContamination = regexp.MustCompile(`(?i)\.?(openaccess|thisarticleislicensed\w*|fundedby\w*|supplementary(data|material)\w*)$`)

// NormalizeDOI kanonisiert eine DOI in die Form https://doi.org/<doi>
// (Kleinschreibung, ohne Slash am Ende). Liefert "" für Eingaben, die keine
// DOI sind; niemals einen Fehler.
func NormalizeDOI(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	// Prozent-kodierte DOIs (z.B. 10.1000%2Fabc) zuerst dekodieren.
	if dec, err := url.QueryUnescape(s); err == nil {
		s = dec
	}
	lower := strings.ToLower(s)
	for _, p := range doiPrefixes {
		if strings.HasPrefix(lower, p) {
			s = s[len(p):]
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "/")
	s = doiContamination.ReplaceAllString(s, "")
	if !strings.HasPrefix(s, "10.") || !strings.Contains(s, "/") {
		return ""
	}
	return "https://doi.org/" + strings.ToLower(s)
}

var titleJunk = regexp.MustCompile(`[^\p{L}\p{N} ]+`)
var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeTitle normalisiert einen Titel für die DOI-lose Work-Auflösung:
// Kleinschreibung, Interpunktion raus, Whitespace kollabiert.
func NormalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = titleJunk.ReplaceAllString(t, " ")
	t = multiSpace.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
