package services

import "testing"

func TestScoreInitialMatchesFullName(t *testing.T) {
	m := NewNameMatcher()
	score := m.Score("J. Smith", "John Smith")
	if score < 0.98 {
		t.Errorf("Initiale sollte als Volltreffer zählen, score = %f", score)
	}
}

func TestScoreDifferentGivenNamesBelowThreshold(t *testing.T) {
	m := NewNameMatcher()
	score := m.Score("Jane Smith", "John Smith")
	if score >= 0.98 {
		t.Errorf("verschiedene Vornamen dürfen die Schwelle nicht erreichen, score = %f", score)
	}
	if score <= 0.5 {
		t.Errorf("ähnliche Namen sollten deutlich über 0.5 liegen, score = %f", score)
	}
}

func TestScoreSymmetric(t *testing.T) {
	m := NewNameMatcher()
	pairs := [][2]string{
		{"J. Smith", "John Smith"},
		{"Jane Smith", "John Smith"},
		{"Maria de la Cruz", "M. Cruz"},
	}
	for _, p := range pairs {
		ab := m.Score(p[0], p[1])
		ba := m.Score(p[1], p[0])
		if ab != ba {
			t.Errorf("Score(%q, %q) = %f, aber Score(%q, %q) = %f", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestScoreDiacriticsFolded(t *testing.T) {
	m := NewNameMatcher()
	if score := m.Score("José García", "Jose Garcia"); score < 0.999 {
		t.Errorf("Diakritika sollten keine Rolle spielen, score = %f", score)
	}
}

func TestScoreTokenOrderIrrelevant(t *testing.T) {
	m := NewNameMatcher()
	if score := m.Score("Smith, John", "John Smith"); score < 0.999 {
		t.Errorf("Namensreihenfolge sollte keine Rolle spielen, score = %f", score)
	}
}

func TestScoreIdenticalNames(t *testing.T) {
	m := NewNameMatcher()
	if score := m.Score("Anna Visser", "Anna Visser"); score != 1 {
		t.Errorf("identische Namen sollten 1 ergeben, score = %f", score)
	}
}

func TestScoreMalformedInput(t *testing.T) {
	m := NewNameMatcher()
	cases := [][2]string{
		{"", "John Smith"},
		{"John Smith", ""},
		{"...", "John Smith"},
		{"", ""},
	}
	for _, c := range cases {
		if score := m.Score(c[0], c[1]); score != 0 {
			t.Errorf("Score(%q, %q) = %f, want 0", c[0], c[1], score)
		}
	}
}

func TestScoreUnmatchedTokensPenalized(t *testing.T) {
	m := NewNameMatcher()
	full := m.Score("John Smith", "John Smith")
	extra := m.Score("John Smith", "John Jacob Smith")
	if extra >= full {
		t.Errorf("ungepaarte Tokens müssen den Score drücken: %f >= %f", extra, full)
	}
}
