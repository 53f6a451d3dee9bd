package money

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"", 0, true},
		{"0", 0, true},
		{"1.50", 150, true},
		{"500", 50000, true},
		{"0.05", 5, true},
		{"12.345", 1234, true}, // truncated to 2 decimals
		{"-5", 0, false},
		{"1.2.3", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if ok != tt.ok {
			t.Errorf("Parse(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got.Int64() != tt.want {
			t.Errorf("Parse(%q) = %d, want %d", tt.in, got.Int64(), tt.want)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"0.00", "1.50", "500.00", "0.05", "19999.99"} {
		v, ok := Parse(s)
		if !ok {
			t.Fatalf("Parse(%q) failed", s)
		}
		if got := Format(v); got != s {
			t.Errorf("Format(Parse(%q)) = %q", s, got)
		}
	}
}

func TestMulHours(t *testing.T) {
	// 2 hours at rate 100 => 200.00
	got, ok := MulHours("100", 120)
	if !ok || got != "200.00" {
		t.Errorf("MulHours(100, 120) = %q, %v", got, ok)
	}
	// 90 minutes at 100/h => 150.00
	got, _ = MulHours("100", 90)
	if got != "150.00" {
		t.Errorf("MulHours(100, 90) = %q", got)
	}
	// 1 minute at 0.50/h => 0.50/60 = 0.0083 -> rounds to 0.01
	got, _ = MulHours("0.50", 1)
	if got != "0.01" {
		t.Errorf("MulHours(0.50, 1) = %q", got)
	}
	if _, ok := MulHours("100", -5); ok {
		t.Error("expected failure for negative minutes")
	}
}

func TestCommission(t *testing.T) {
	// 15% of 200 = 30, net 170
	c, n, ok := Commission("200", 1500)
	if !ok || c != "30.00" || n != "170.00" {
		t.Errorf("Commission(200, 1500) = %q, %q, %v", c, n, ok)
	}
	// Commission + net must equal gross exactly even with odd amounts.
	c, n, _ = Commission("0.01", 1500)
	if Add(c, n) != "0.01" {
		t.Errorf("commission %q + net %q != 0.01", c, n)
	}
	if _, _, ok := Commission("100", 10001); ok {
		t.Error("expected failure for rate over 100%")
	}
}

func TestCmpAddSub(t *testing.T) {
	if Cmp("100.00", "99.99") <= 0 {
		t.Error("expected 100.00 > 99.99")
	}
	if Add("100", "0.50") != "100.50" {
		t.Errorf("Add = %q", Add("100", "0.50"))
	}
	if Sub("100", "30") != "70.00" {
		t.Errorf("Sub = %q", Sub("100", "30"))
	}
}
