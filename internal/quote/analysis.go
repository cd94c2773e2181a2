package quote

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"fleetsync/internal/model"
)

// MaintenancePrediction is a structured predictive diagnosis for one
// vehicle.
type MaintenancePrediction struct {
	HealthScore       float64 `json:"healthScore"`
	PredictedFailure  string  `json:"predictedFailure"`
	Urgency           string  `json:"urgency"` // Low, Medium, High or Critical
	RecommendedAction string  `json:"recommendedAction"`
	EstimatedCost     string  `json:"estimatedCost"`
}

// FinancialReport is a structured margin analysis over recent routes.
type FinancialReport struct {
	TopDriver             string `json:"topDriver"`
	MostProfitableRoute   string `json:"mostProfitableRoute"`
	CostSavingOpportunity string `json:"costSavingOpportunity"`
	EfficiencyTrend       string `json:"efficiencyTrend"`
	NetProfitMargin       string `json:"netProfitMargin"`
}

var maintenanceSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "healthScore": {"type": "NUMBER", "description": "Salud general del vehículo 0-100"},
    "predictedFailure": {"type": "STRING", "description": "Componente con mayor riesgo de falla (ej: Frenos, Transmisión)"},
    "urgency": {"type": "STRING", "enum": ["Low", "Medium", "High", "Critical"]},
    "recommendedAction": {"type": "STRING", "description": "Acción recomendada breve"},
    "estimatedCost": {"type": "STRING", "description": "Costo estimado en CLP"}
  },
  "required": ["healthScore", "predictedFailure", "urgency", "recommendedAction", "estimatedCost"]
}`)

var financialSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "topDriver": {"type": "STRING", "description": "Nombre del conductor más rentable"},
    "mostProfitableRoute": {"type": "STRING", "description": "Ruta con mejor margen"},
    "costSavingOpportunity": {"type": "STRING", "description": "Dónde se puede ahorrar dinero"},
    "efficiencyTrend": {"type": "STRING", "description": "Tendencia general (Positiva/Negativa)"},
    "netProfitMargin": {"type": "STRING", "description": "Margen promedio %"}
  }
}`)

// PredictMaintenance produces a predictive diagnosis from the vehicle's
// model and mileage. Any failure returns the fixed manual-review result.
func (g *Gateway) PredictMaintenance(ctx context.Context, v model.Vehicle) MaintenancePrediction {
	prompt := fmt.Sprintf(`Realiza un diagnóstico predictivo para un %s con %dkm. Último servicio fue hace 6 meses.
Basado en patrones de desgaste estándar para este kilometraje, ¿qué es probable que falle pronto?`, v.Model, v.Mileage)
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	body, err := g.llm.GenerateStructured(callCtx, "", prompt, maintenanceSchema)
	if err == nil {
		var p MaintenancePrediction
		if err = json.Unmarshal(body, &p); err == nil {
			return p
		}
	}
	g.log.Warn("maintenance prediction failed, serving fixed result", zap.Error(err))
	return MaintenancePrediction{
		HealthScore:       50,
		PredictedFailure:  "Error en análisis",
		Urgency:           "Medium",
		RecommendedAction: "Revisión manual requerida",
		EstimatedCost:     "$0 CLP",
	}
}

// AnalyzeFinancials summarizes the margin picture over recent routes.
// Any failure returns the fixed insufficient-data report.
func (g *Gateway) AnalyzeFinancials(ctx context.Context, routes []model.Route) FinancialReport {
	data, err := json.Marshal(routes)
	if err == nil {
		prompt := fmt.Sprintf("Analiza estos datos financieros de rutas recientes: %s. Identifica qué conductor y ruta generaron mejor margen.", data)
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		var body []byte
		body, err = g.llm.GenerateStructured(callCtx, "", prompt, financialSchema)
		if err == nil {
			var r FinancialReport
			if err = json.Unmarshal(body, &r); err == nil {
				return r
			}
		}
	}
	g.log.Warn("financial analysis failed, serving fixed report", zap.Error(err))
	return FinancialReport{
		TopDriver:             "N/A",
		MostProfitableRoute:   "N/A",
		CostSavingOpportunity: "Datos insuficientes",
		EfficiencyTrend:       "Estable",
		NetProfitMargin:       "0%",
	}
}
