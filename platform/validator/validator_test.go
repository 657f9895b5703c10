package validator

import "testing"

func TestSIRETAndSIREN(t *testing.T) {
	cases := []struct {
		name  string
		siret string
		want  bool
	}{
		{"valid", "73282932000074", true},
		{"with spaces", "732 829 320 00074", true},
		{"bad key", "73282932000075", false},
		{"too short", "7328293200007", false},
		{"letters", "7328293200007A", false},
		{"la poste", "35600000000001", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidSIRET(tc.siret); got != tc.want {
				t.Fatalf("ValidSIRET(%q) = %v, want %v", tc.siret, got, tc.want)
			}
		})
	}

	if !ValidSIREN("732829320") {
		t.Error("expected valid SIREN")
	}
	if ValidSIREN("732829321") {
		t.Error("expected invalid SIREN")
	}
}

func TestStructTags(t *testing.T) {
	type payload struct {
		PostalCode string `validate:"frpostalcode"`
		SIRET      string `validate:"omitempty,siret"`
	}
	v := New()

	if err := v.Struct(payload{PostalCode: "75011"}); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	if err := v.Struct(payload{PostalCode: "00100"}); err == nil {
		t.Fatal("expected postal code error")
	}
	if err := v.Struct(payload{PostalCode: "69003", SIRET: "123"}); err == nil {
		t.Fatal("expected siret error")
	}
}
