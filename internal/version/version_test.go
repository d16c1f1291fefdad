package version

import "testing"

func TestParseValidVersion(t *testing.T) {
	v, err := Parse("v1.2.3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.String() != "1.2.3" {
		t.Fatalf("String() = %q, want %q", v.String(), "1.2.3")
	}
}

func TestParseInvalidVersion(t *testing.T) {
	if _, err := Parse("not-a-version"); err == nil {
		t.Fatal("Parse() succeeded on garbage input, want error")
	}
}

func TestCheckMinSupportedRejectsOlder(t *testing.T) {
	err := CheckMinSupported("v0.0.1")
	if err == nil {
		t.Fatal("CheckMinSupported() succeeded for a version older than minimum")
	}
	if _, ok := err.(*TooOldError); !ok {
		t.Fatalf("error type = %T, want *TooOldError", err)
	}
}

func TestCheckMinSupportedAcceptsNewer(t *testing.T) {
	if err := CheckMinSupported("v9.9.9"); err != nil {
		t.Fatalf("CheckMinSupported() = %v, want nil", err)
	}
}
