package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/adrg/strutil/metrics"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NameMatcher berechnet die Ähnlichkeit zweier Personennamen in [0,1].
// Deterministisch, symmetrisch, tolerant gegenüber Diakritika, vertauschter
// Vor-/Nachnamen-Reihenfolge, Initialen statt ausgeschriebener Vornamen und
// Interpunktionsunterschieden. Fehlerhafte Eingaben ergeben 0, nie einen Fehler.
type NameMatcher struct {
	jw *metrics.JaroWinkler
}

// NewNameMatcher erstellt einen neuen NameMatcher.
func NewNameMatcher() *NameMatcher {
	return &NameMatcher{jw: metrics.NewJaroWinkler()}
}

// diacriticFolder entfernt kombinierende Zeichen (é -> e, ü -> u).
var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeName zerlegt einen Namen in bereinigte Tokens.
// "Smith, J." und "J. Smith" ergeben dieselbe Tokenmenge.
func normalizeName(name string) []string {
	folded, _, err := transform.String(diacriticFolder, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	tokens := strings.Fields(b.String())
	sort.Strings(tokens)
	return tokens
}

// tokenScore bewertet ein Tokenpaar. Eine Initiale gilt als perfekter Treffer
// für jedes Token mit demselben Anfangsbuchstaben.
func (m *NameMatcher) tokenScore(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 1 || len(b) == 1 {
		if a[0] == b[0] {
			return 1
		}
		return 0
	}
	return m.jw.Compare(a, b)
}

// Score berechnet die Namensähnlichkeit. Die Tokens beider Namen werden global
// bestmöglich gepaart (höchste Paarbewertung zuerst); ungepaarte Tokens zählen
// als 0, normiert wird über die längere Tokenliste.
func (m *NameMatcher) Score(nameA, nameB string) float64 {
	ta := normalizeName(nameA)
	tb := normalizeName(nameB)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	type pair struct {
		i, j  int
		score float64
	}
	var pairs []pair
	for i, a := range ta {
		for j, b := range tb {
			pairs = append(pairs, pair{i, j, m.tokenScore(a, b)})
		}
	}
	// Stabile Ordnung: Score absteigend, dann Indizes; hält das Ergebnis
	// deterministisch und symmetrisch (Tokenlisten sind sortiert).
	sort.Slice(pairs, func(x, y int) bool {
		if pairs[x].score != pairs[y].score {
			return pairs[x].score > pairs[y].score
		}
		if pairs[x].i != pairs[y].i {
			return pairs[x].i < pairs[y].i
		}
		return pairs[x].j < pairs[y].j
	})

	usedA := make([]bool, len(ta))
	usedB := make([]bool, len(tb))
	total := 0.0
	for _, p := range pairs {
		if usedA[p.i] || usedB[p.j] {
			continue
		}
		usedA[p.i] = true
		usedB[p.j] = true
		total += p.score
	}

	denom := len(ta)
	if len(tb) > denom {
		denom = len(tb)
	}
	score := total / float64(denom)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
