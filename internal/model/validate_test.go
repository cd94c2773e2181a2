package model

import "testing"

func TestValidatePlate(t *testing.T) {
	valid := []string{"BCYT91", "GFDD74", "AB1234", "hg-lf-99", "jg 5165", "KFBJ31"}
	for _, p := range valid {
		if err := ValidatePlate(p); err != nil {
			t.Errorf("ValidatePlate(%q): unexpected error %v", p, err)
		}
	}
	invalid := []string{"", "BCYT9", "BCYT911", "1234AB", "BC12Y4", "ABCDEF", "123456"}
	for _, p := range invalid {
		if err := ValidatePlate(p); err == nil {
			t.Errorf("ValidatePlate(%q): want error", p)
		}
	}
}

func TestFormatPlate(t *testing.T) {
	if got := FormatPlate("hg-lf-99"); got != "HGLF99" {
		t.Fatalf("FormatPlate: got %q", got)
	}
}

func TestValidateRUT(t *testing.T) {
	valid := []string{"11111111-1", "12.345.678-5", "20656816-K", "20656816-k"}
	for _, r := range valid {
		if err := ValidateRUT(r); err != nil {
			t.Errorf("ValidateRUT(%q): unexpected error %v", r, err)
		}
	}
	invalid := []string{"", "1234", "20656816-6", "12345678-9", "abcdefgh-1"}
	for _, r := range invalid {
		if err := ValidateRUT(r); err == nil {
			t.Errorf("ValidateRUT(%q): want error", r)
		}
	}
}

func TestStatusTransition(t *testing.T) {
	cases := []struct {
		from, to RouteStatus
		ok       bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCompleted, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusPending, false},
		{StatusInProgress, StatusPending, false},
		{StatusPending, RouteStatus("Cancelled"), false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}
