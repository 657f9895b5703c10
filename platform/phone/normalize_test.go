package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"06 12 34 56 78", "+33612345678"},
		{"+33 1 42 68 53 00", "+33142685300"},
		{"0033612345678", "+33612345678"},
		{"not a phone", "not a phone"},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := NormalizeE164(tc.in); got != tc.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("0612345678") {
		t.Error("expected mobile number to be valid")
	}
	if IsValid("0612") {
		t.Error("expected short number to be invalid")
	}
}
