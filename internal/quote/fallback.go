package quote

import (
	"fmt"
	"strconv"
	"strings"
)

// fallbackQuote computes a deterministic local quote from the distance
// string when the external service is unreachable or returns a malformed
// body. Same input, same output: no randomness, no wall clock.
func fallbackQuote(distance string) Result {
	km := parseKm(distance)
	low := (900 * km * 85) / 100
	high := (900 * km * 115) / 100
	return Result{
		EstimatedPrice:  fmt.Sprintf("$%s - $%s CLP", formatCLP(low), formatCLP(high)),
		VehicleType:     fallbackVehicleClass(km),
		TimeEstimate:    fallbackTimeEstimate(km),
		LogisticsAdvice: []string{
			"Cotización estimada localmente; el servicio AI no está disponible.",
			"Confirma el precio final con el operador antes de registrar la ruta.",
			"Verifica restricciones de peso y alto en la ruta seleccionada.",
		},
		ConfidenceScore: 40,
	}
}

// parseKm extracts the leading integer from a formatted distance string
// like "120 km". Unparseable input counts as zero.
func parseKm(distance string) int {
	s := strings.TrimSpace(distance)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	km, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return km
}

func fallbackVehicleClass(km int) string {
	switch {
	case km <= 50:
		return "Camión 3/4"
	case km <= 300:
		return "Camión Rígido"
	default:
		return "Tracto + Rampla"
	}
}

// fallbackTimeEstimate assumes a 60 km/h effective mean speed.
func fallbackTimeEstimate(km int) string {
	hours := km / 60
	if hours < 1 {
		return "1 - 2 horas"
	}
	return fmt.Sprintf("%d - %d horas", hours, hours+1)
}

// formatCLP renders an amount with dot thousand separators, CLP style.
func formatCLP(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
