package model

import (
	"fmt"
	"strings"
)

// Chilean plate grammars: the current series is four letters followed by
// two digits (BCYT91), the older one two letters followed by four digits
// (AB1234). Separators and case are ignored.

func cleanPlate(plate string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(plate) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPlate strips separators and upcases a plate.
func FormatPlate(plate string) string { return cleanPlate(plate) }

// ValidatePlate checks a plate against the national plate grammars.
func ValidatePlate(plate string) error {
	p := cleanPlate(plate)
	if len(p) != 6 {
		return fmt.Errorf("invalid plate %q: want 6 characters", plate)
	}
	if isLetters(p[:4]) && isDigits(p[4:]) {
		return nil
	}
	if isLetters(p[:2]) && isDigits(p[2:]) {
		return nil
	}
	return fmt.Errorf("invalid plate %q: want LLLLNN or LLNNNN", plate)
}

// ValidateRUT checks a Chilean RUT's mod-11 verification digit.
// Accepts dotted/dashed input; the digit K stands for 10.
func ValidateRUT(rut string) error {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == 'k' || r == 'K':
			return 'K'
		}
		return -1
	}, rut)
	if len(clean) < 7 {
		return fmt.Errorf("invalid rut %q: too short", rut)
	}
	body, dv := clean[:len(clean)-1], clean[len(clean)-1:]
	if !isDigits(body) {
		return fmt.Errorf("invalid rut %q", rut)
	}
	sum, mult := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * mult
		if mult == 7 {
			mult = 2
		} else {
			mult++
		}
	}
	var want string
	switch mod := 11 - sum%11; mod {
	case 11:
		want = "0"
	case 10:
		want = "K"
	default:
		want = fmt.Sprintf("%d", mod)
	}
	if dv != want {
		return fmt.Errorf("invalid rut %q: verification digit should be %s", rut, want)
	}
	return nil
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
