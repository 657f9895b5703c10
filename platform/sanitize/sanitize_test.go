package sanitize

import (
	"fmt"
	"strings"
	"testing"
)

func TestStripHTML(t *testing.T) {
	got := StripHTML(`<b>Bonjour</b> &lt;script&gt;alert(1)&lt;/script&gt;`)
	if strings.Contains(got, "<") {
		t.Fatalf("expected tags removed, got %q", got)
	}
}

func TestFold(t *testing.T) {
	cases := map[string]string{
		"Hélène":       "helene",
		" FRANÇOIS ":   "francois",
		"Cœur d'Alène": "coeur d'alene",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSearchPattern(t *testing.T) {
	if SearchPattern("   ") != nil {
		t.Fatal("expected nil for blank query")
	}
	p := SearchPattern("Dupré 50%")
	if p == nil || *p != `%dupre 50\%%` {
		t.Fatalf("unexpected pattern %v", p)
	}
}

func TestAccentFoldSQL(t *testing.T) {
	expr := fmt.Sprintf(AccentFoldSQL, "last_name")
	if !strings.HasPrefix(expr, "translate(lower(last_name)") {
		t.Fatalf("unexpected expression %s", expr)
	}
}
