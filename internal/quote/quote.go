// Package quote produces structured freight quotes from a generative AI
// service, behind a response cache and a sliding-window rate limiter.
// Callers always receive a well-formed Result, never an error: the rate
// limit yields a sentinel result and AI failures yield a deterministic
// locally-computed fallback.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetsync/internal/metrics"
	"fleetsync/internal/model"
)

const (
	cacheTTL          = 5 * time.Minute
	rateWindow        = time.Minute
	requestsPerMinute = 10
	callTimeout       = 12 * time.Second
)

// VehicleTypeRateLimited is the sentinel carried by a rate-limited
// Result. Callers check this field, not an error.
const VehicleTypeRateLimited = "Rate limit excedido"

// Result is a structured freight quote.
type Result struct {
	EstimatedPrice  string   `json:"estimatedPrice"`
	VehicleType     string   `json:"vehicleType"`
	TimeEstimate    string   `json:"timeEstimate"`
	LogisticsAdvice []string `json:"logisticsAdvice"`
	ConfidenceScore float64  `json:"confidenceScore"`
}

// RateLimited reports whether r is the rate-limit sentinel.
func (r Result) RateLimited() bool { return r.VehicleType == VehicleTypeRateLimited }

// LLM is the single external call the gateway depends on. It returns the
// raw JSON body matching the supplied response schema.
type LLM interface {
	GenerateStructured(ctx context.Context, systemInstruction, prompt string, schema json.RawMessage) ([]byte, error)
	GenerateText(ctx context.Context, systemInstruction, prompt string) (string, error)
}

type cacheEntry struct {
	result Result
	at     time.Time
}

// Gateway wraps the external AI call. Cache and ledger are owned by this
// instance and mutated only through it; construct one per process and
// inject it (no module-level shared state).
type Gateway struct {
	mu     sync.Mutex
	llm    LLM
	cache  map[string]cacheEntry
	ledger *ledger
	clock  func() time.Time
	log    *zap.Logger
}

type Option func(*Gateway)

// WithClock substitutes the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(g *Gateway) { g.clock = clock }
}

func New(llm LLM, log *zap.Logger, opts ...Option) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{
		llm:    llm,
		cache:  map[string]cacheEntry{},
		ledger: newLedger(rateWindow, requestsPerMinute),
		clock:  time.Now,
		log:    log,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

const systemInstruction = `Eres FleetTech AI, un experto en operaciones logísticas.
Tu objetivo es optimizar el rendimiento de la flota, reducir costos y garantizar la seguridad.
Prioriza insights accionables basados en datos. Responde SIEMPRE en español.`

var quoteSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "estimatedPrice": {"type": "STRING", "description": "Rango de precio estimado (ej: $150.000 - $200.000 CLP)"},
    "vehicleType": {"type": "STRING", "description": "Tipo de vehículo recomendado en español"},
    "timeEstimate": {"type": "STRING", "description": "Duración estimada en español"},
    "logisticsAdvice": {"type": "ARRAY", "items": {"type": "STRING"}, "description": "3 puntos de consejo profesional en español para optimizar esta ruta"},
    "confidenceScore": {"type": "NUMBER", "description": "Puntaje de confianza 0-100"}
  },
  "required": ["estimatedPrice", "vehicleType", "timeEstimate", "logisticsAdvice", "confidenceScore"]
}`)

// cacheKey is the exact pair, no normalization: differing case or
// whitespace are distinct keys. Known staleness trade-off kept as-is.
func cacheKey(description, distance string) string {
	return "quote-" + description + "-" + distance
}

// Generate returns a quote for the cargo description and distance string.
// Order of checks: fresh cache hit (no ledger touch, no external call),
// then rate ledger (sentinel, no external call), then one external call
// cached on success, with the deterministic fallback on any failure.
func (g *Gateway) Generate(ctx context.Context, description, distance string) Result {
	key := cacheKey(description, distance)
	now := g.clock()

	g.mu.Lock()
	if e, ok := g.cache[key]; ok {
		if now.Sub(e.at) <= cacheTTL {
			g.mu.Unlock()
			metrics.QuoteCache.WithLabelValues("hit").Inc()
			return e.result
		}
		delete(g.cache, key) // expired entries are treated as absent
	}
	metrics.QuoteCache.WithLabelValues("miss").Inc()
	admitted := g.ledger.admit(now)
	g.mu.Unlock()

	if !admitted {
		metrics.QuoteRateLimited.Inc()
		g.log.Warn("quote rate limit hit", zap.String("distance", distance))
		return Result{
			EstimatedPrice:  "$0 - $0",
			VehicleType:     VehicleTypeRateLimited,
			TimeEstimate:    "N/A",
			LogisticsAdvice: []string{"Demasiadas solicitudes. Intenta en 1 minuto."},
			ConfidenceScore: 0,
		}
	}

	prompt := fmt.Sprintf(`Analiza esta solicitud de carga:
Items/Descripción: %s
Distancia Aproximada: %s

Proporciona una estimación estructurada en español.
Para el precio, usa formato CLP (Pesos Chilenos) o USD si es internacional.`, description, distance)

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	body, err := g.llm.GenerateStructured(callCtx, systemInstruction, prompt, quoteSchema)
	if err == nil {
		var res Result
		if jerr := json.Unmarshal(body, &res); jerr == nil && res.EstimatedPrice != "" {
			g.mu.Lock()
			g.cache[key] = cacheEntry{result: res, at: now}
			g.mu.Unlock()
			return res
		} else if jerr != nil {
			err = jerr
		} else {
			err = fmt.Errorf("response missing required fields")
		}
	}

	metrics.QuoteFallbacks.Inc()
	g.log.Warn("quote generation failed, serving deterministic fallback", zap.Error(err))
	return fallbackQuote(distance)
}

// LedgerLen reports how many external requests sit in the trailing
// window right now.
func (g *Gateway) LedgerLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ledger.len(g.clock())
}

// FleetHealthSummary produces a two-sentence operational readiness brief
// for the dashboard. Plain-text call; fixed message on failure.
func (g *Gateway) FleetHealthSummary(ctx context.Context, vehicles []model.Vehicle) string {
	parts := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		parts = append(parts, fmt.Sprintf("%s (%s): %dkm, Combustible: %d%%", v.Model, v.Status, v.Mileage, v.FuelLevel))
	}
	prompt := fmt.Sprintf(`Analiza esta instantánea del estado de la flota: [%s].
Proporciona un resumen ejecutivo de 2 oraciones en español sobre la preparación operativa y una recomendación de mantenimiento específica.`, strings.Join(parts, "; "))
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	text, err := g.llm.GenerateText(callCtx, "Eres un asistente de gerente de flota. Sé conciso, profesional y responde en español.", prompt)
	if err != nil || text == "" {
		return "Sistemas de análisis AI fuera de línea."
	}
	return text
}

// RouteRiskBrief produces a one-sentence risk assessment for a route.
func (g *Gateway) RouteRiskBrief(ctx context.Context, origin, destination string) string {
	prompt := fmt.Sprintf(`Analiza la ruta desde %s hasta %s para un vehículo de carga pesada en el sur de Chile.
Identifica riesgos potenciales como condiciones climáticas, patrones de tráfico o desafíos del terreno.
Proporciona una evaluación de riesgo concisa de 1 oración en español.`, origin, destination)
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	text, err := g.llm.GenerateText(callCtx, systemInstruction, prompt)
	if err != nil || text == "" {
		return "Análisis de ruta temporalmente no disponible."
	}
	return text
}
