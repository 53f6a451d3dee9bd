package validation

import "testing"

func TestIsValidRecordID(t *testing.T) {
	valid := []string{
		"#CTX4f1a2b3c4d5e6f7a8b9c0d1e",
		"#PAYabcdefabcdefabcdefabcdef",
		"#ESC000000000000000000000000",
	}
	for _, id := range valid {
		if !IsValidRecordID(id) {
			t.Errorf("expected %q to be valid", id)
		}
	}

	invalid := []string{
		"",
		"CTX4f1a2b3c4d5e6f7a8b9c0d1e",    // missing #
		"#ctx4f1a2b3c4d5e6f7a8b9c0d1e",   // lowercase prefix
		"#CTX4f1a",                       // too short
		"#CTXZZZZZZZZZZZZZZZZZZZZZZZZ",   // non-hex body
		"#CTX4f1a2b3c4d5e6f7a8b9c0d1e00", // too long
	}
	for _, id := range invalid {
		if IsValidRecordID(id) {
			t.Errorf("expected %q to be invalid", id)
		}
	}
}

func TestIsValidOwnerID(t *testing.T) {
	if !IsValidOwnerID("client_42") || !IsValidOwnerID("64a1f0b2c3") {
		t.Error("expected plain owner ids to be valid")
	}
	if IsValidOwnerID("") || IsValidOwnerID("has spaces") || IsValidOwnerID("semi;colon") {
		t.Error("expected malformed owner ids to be invalid")
	}
}

func TestValidAmount(t *testing.T) {
	tests := []struct {
		value string
		valid bool
	}{
		{"", true}, // empty handled by Required
		{"100", true},
		{"0.50", true},
		{"1.2.3", false},
		{".5", false},
		{"5.", false},
		{"0", false},
		{"0.00", false},
		{"-5", false},
		{"abc", false},
	}
	for _, tt := range tests {
		err := ValidAmount("amount", tt.value)()
		if tt.valid && err != nil {
			t.Errorf("ValidAmount(%q) unexpected error: %v", tt.value, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("ValidAmount(%q) expected error", tt.value)
		}
	}
}

func TestValidate_Collects(t *testing.T) {
	errs := Validate(
		Required("contractId", ""),
		ValidAmount("amount", "bad"),
	)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	if errs.Error() == "" {
		t.Error("expected non-empty error string")
	}
}

func TestSanitizeString(t *testing.T) {
	got := SanitizeString("  note\x00 ", 100)
	if got != "note" {
		t.Errorf("SanitizeString = %q", got)
	}
	if len(SanitizeString("aaaaaaaaaa", 4)) != 4 {
		t.Error("expected truncation to max length")
	}
}
