package netaddr

import "testing"

func TestParseAndString(t *testing.T) {
	a, err := Parse("127.0.0.1:9981")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := a.String(); got != "127.0.0.1:9981" {
		t.Fatalf("String() = %q, want %q", got, "127.0.0.1:9981")
	}
}

func TestToTCPAddrRoundTrip(t *testing.T) {
	a, err := Parse("10.0.0.5:53")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tcp := a.ToTCPAddr()
	back := FromTCPAddr(tcp)
	if back != a {
		t.Fatalf("round trip = %+v, want %+v", back, a)
	}
}

func TestParseRejectsMissingPort(t *testing.T) {
	if _, err := Parse("127.0.0.1"); err == nil {
		t.Fatal("Parse() succeeded without a port, want error")
	}
}
