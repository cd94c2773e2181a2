package quote

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"fleetsync/internal/model"
)

func TestPredictMaintenance(t *testing.T) {
	llm := &stubLLM{body: []byte(`{"healthScore":72,"predictedFailure":"Frenos","urgency":"High","recommendedAction":"Cambiar pastillas","estimatedCost":"$450.000 CLP"}`)}
	g, _ := newTestGateway(llm)

	got := g.PredictMaintenance(context.Background(), model.Vehicle{Model: "Volvo FH16 750", Mileage: 120000})
	want := MaintenancePrediction{HealthScore: 72, PredictedFailure: "Frenos", Urgency: "High", RecommendedAction: "Cambiar pastillas", EstimatedCost: "$450.000 CLP"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPredictMaintenanceFallback(t *testing.T) {
	for name, llm := range map[string]*stubLLM{
		"upstream error": {err: fmt.Errorf("down")},
		"malformed body": {body: []byte(`not-json`)},
	} {
		g, _ := newTestGateway(llm)
		got := g.PredictMaintenance(context.Background(), model.Vehicle{Model: "Volvo FH", Mileage: 90000})
		want := MaintenancePrediction{HealthScore: 50, PredictedFailure: "Error en análisis", Urgency: "Medium", RecommendedAction: "Revisión manual requerida", EstimatedCost: "$0 CLP"}
		if got != want {
			t.Fatalf("%s: got %+v, want %+v", name, got, want)
		}
	}
}

func TestAnalyzeFinancials(t *testing.T) {
	llm := &stubLLM{body: []byte(`{"topDriver":"Carlos Mendoza","mostProfitableRoute":"Osorno - Puerto Montt","costSavingOpportunity":"Consolidar cargas parciales","efficiencyTrend":"Positiva","netProfitMargin":"18%"}`)}
	g, _ := newTestGateway(llm)

	routes := []model.Route{{ID: "r1", Origin: "Osorno", Destination: "Puerto Montt", EstimatedPrice: "$96.300 CLP", Driver: "Carlos Mendoza", Status: model.StatusCompleted}}
	got := g.AnalyzeFinancials(context.Background(), routes)
	want := FinancialReport{TopDriver: "Carlos Mendoza", MostProfitableRoute: "Osorno - Puerto Montt", CostSavingOpportunity: "Consolidar cargas parciales", EfficiencyTrend: "Positiva", NetProfitMargin: "18%"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestAnalyzeFinancialsFallback(t *testing.T) {
	for name, llm := range map[string]*stubLLM{
		"upstream error": {err: fmt.Errorf("down")},
		"malformed body": {body: []byte(`{"topDriver":`)},
	} {
		g, _ := newTestGateway(llm)
		got := g.AnalyzeFinancials(context.Background(), nil)
		want := FinancialReport{TopDriver: "N/A", MostProfitableRoute: "N/A", CostSavingOpportunity: "Datos insuficientes", EfficiencyTrend: "Estable", NetProfitMargin: "0%"}
		if got != want {
			t.Fatalf("%s: got %+v, want %+v", name, got, want)
		}
	}
}
