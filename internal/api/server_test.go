package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/strategy-validator/internal/scenarios"
	"github.com/atlas-desktop/strategy-validator/internal/validator"
	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

type flatGen struct{}

func (flatGen) Generate(p scenarios.PathParams) []float64 {
	prices := make([]float64, p.Length)
	for i := range prices {
		prices[i] = p.InitialPrice
	}
	return prices
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := types.DefaultValidatorConfig()
	cfg.Seed = 42
	cfg.MonteCarloSimulations = 100

	v, err := validator.New(zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	v.SetPathGenerator(flatGen{})

	return NewServer(zap.NewNop(), types.DefaultServerConfig(), v, nil, nil, nil)
}

func testRequest() *ValidationRequest {
	stop := 0.05
	rr := 2.0
	daily := 0.03

	trades := make([]types.TradeRecord, 120)
	returns := make([]float64, 120)
	equity := make([]float64, 121)
	equity[0] = 10000
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range trades {
		if i%3 == 2 {
			trades[i] = types.TradeRecord{Profit: decimal.NewFromInt(-75), Timestamp: ts}
			returns[i] = -0.0075
		} else {
			trades[i] = types.TradeRecord{Profit: decimal.NewFromInt(100), Timestamp: ts}
			returns[i] = 0.01
		}
		equity[i+1] = equity[i] * (1 + returns[i])
		ts = ts.Add(time.Hour)
	}

	return &ValidationRequest{
		Strategy: &types.StrategyDefinition{
			Name:      "api-test",
			Type:      types.StrategyMomentum,
			Timeframe: types.Timeframe1h,
			Markets:   []string{"BTC/USDT"},
			EntryConditions: []types.Condition{
				{Indicator: "momentum", Operator: "gt", Value: 0.01, Lookback: 14},
			},
			ExitConditions: []types.Condition{
				{Indicator: "momentum", Operator: "lt", Value: -0.02, Lookback: 14},
			},
			StopLoss:        &stop,
			PositionSizing:  "fixed",
			MaxPositionSize: 0.05,
			Leverage:        1,
			RiskRewardRatio: &rr,
			MaxDailyLoss:    &daily,
		},
		Dataset: &types.BacktestDataset{
			Trades:      trades,
			Returns:     returns,
			EquityCurve: equity,
		},
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
}

func TestCreateValidationSync(t *testing.T) {
	s := newTestServer(t)

	payload, err := json.Marshal(testRequest())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/v1/validations", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var record types.ValidationRecord
	if err := json.NewDecoder(w.Body).Decode(&record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.ID == "" {
		t.Error("record ID should be set")
	}
	if record.Status != types.StatusApproved && record.Status != types.StatusRejected {
		t.Errorf("status = %s, want a terminal status", record.Status)
	}
	if len(record.Results) != 8 {
		t.Errorf("components = %d, want 8", len(record.Results))
	}

	// The record is retrievable afterwards.
	req = httptest.NewRequest("GET", "/api/v1/validations/"+record.ID, nil)
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("get by id status = %d, want 200", w.Code)
	}
}

func TestCreateValidationBadBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/validations", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateValidationMissingStrategy(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/validations", bytes.NewReader([]byte("{}")))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetValidationNotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/validations/nope", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListValidations(t *testing.T) {
	s := newTestServer(t)

	payload, _ := json.Marshal(testRequest())
	req := httptest.NewRequest("POST", "/api/v1/validations", bytes.NewReader(payload))
	s.Router().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/api/v1/validations?limit=10", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Count       int                       `json:"count"`
		Validations []*types.ValidationRecord `json:"validations"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || len(body.Validations) != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
