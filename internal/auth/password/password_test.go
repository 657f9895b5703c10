package password

import "testing"

func TestHashAndCompare(t *testing.T) {
	hash, err := Hash("Raccord2024x")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := Compare(hash, "Raccord2024x"); err != nil {
		t.Fatalf("expected match: %v", err)
	}
	if err := Compare(hash, "raccord2024x"); err == nil {
		t.Fatal("expected mismatch")
	}
}

func TestStrong(t *testing.T) {
	cases := map[string]bool{
		"Raccord2024x":  true,
		"short1A":       false,
		"alllowercase1": false,
		"ALLUPPERCASE1": false,
		"NoDigitsHere":  false,
	}
	for in, want := range cases {
		if got := Strong(in); got != want {
			t.Errorf("Strong(%q) = %v, want %v", in, got, want)
		}
	}
}
