/*
scenarios.go - Demo dataset loaders for testing and demonstrations

PURPOSE:

	Provides pre-built customer datasets that show specific engine
	behaviour without preparing a CSV export by hand.

AVAILABLE SCENARIOS:

	starter:      A handful of customers on the default program
	tier-climb:   One heavy buyer climbing every bracket of a tiered program
	coin-expiry:  Long gaps between orders so coins expire before use

HOW SCENARIOS WORK:
 1. Drop the stored dataset
 2. Import the scenario customers
 3. Save the scenario program, if it has one

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "tier-climb"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' with ID, name, description, customers
 2. Optionally set program for a scenario-specific program

NOTE:

	Loading a scenario replaces the customer dataset. Saved programs are
	kept.

SEE ALSO:
  - handlers.go: Simulation handlers that run over the loaded dataset
  - factory/program.go: Program JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	customers func() []cashback.CustomerRow
	program   func() *factory.ProgramJSON
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "starter",
			Name:        "Starter",
			Description: "Four customers on the default program, with gold, promo and an unreadable order",
		},
		customers: starterCustomers,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "tier-climb",
			Name:        "Tier Climb",
			Description: "One heavy buyer whose lifetime value crosses every bracket of a tiered program",
		},
		customers: tierClimbCustomers,
		program:   tieredProgram,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "coin-expiry",
			Name:        "Coin Expiry",
			Description: "Orders more than 180 days apart, so earned coins expire unused",
		},
		customers: coinExpiryCustomers,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
		dtos[i].Customers = len(distinctCustomers(s.customers()))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario replaces the dataset with a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	programID, err := h.loadScenario(r.Context(), s)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	resp := map[string]string{"status": "loaded", "scenario": s.ID}
	if programID != "" {
		resp["program_id"] = programID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) loadScenario(ctx context.Context, s scenario) (string, error) {
	if err := h.Store.DeleteCustomers(ctx); err != nil {
		return "", fmt.Errorf("reset customers: %w", err)
	}
	if _, err := h.Store.ImportCustomers(ctx, s.customers()); err != nil {
		return "", fmt.Errorf("import customers: %w", err)
	}
	if s.program == nil {
		return "", nil
	}
	rec, _, err := h.SaveProgram(ctx, *s.program())
	if err != nil {
		return "", fmt.Errorf("save program: %w", err)
	}
	return rec.ID, nil
}

// =============================================================================
// SCENARIO DATA
// =============================================================================

type demoOrder struct {
	id, date            string
	silver, gold, promo float64
}

func blob(orders ...demoOrder) string {
	records := make([]string, len(orders))
	for i, o := range orders {
		records[i] = fmt.Sprintf(`{:order_id "%s" :order_date #t "%s" :silver_revenue %vM :gold_revenue %vM :promo_amount %vM}`,
			o.id, o.date, o.silver, o.gold, o.promo)
	}
	return "[" + strings.Join(records, " ") + "]"
}

func distinctCustomers(rows []cashback.CustomerRow) map[string]struct{} {
	ids := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		ids[r.CustomerID] = struct{}{}
	}
	return ids
}

func starterCustomers() []cashback.CustomerRow {
	return []cashback.CustomerRow{
		{CustomerID: "C001", OrderHistory: blob(
			demoOrder{"#A101", "2024-01-05", 1200, 0, 0},
			demoOrder{"#A102", "2024-02-14", 800, 300, 50},
			demoOrder{"#A103", "2024-04-02", 1500, 0, 0},
		)},
		{CustomerID: "C002", OrderHistory: blob(
			demoOrder{"#B201", "2024-01-20", 0, 2500, 0},
			demoOrder{"#B202", "2024-03-11", 400, 0, 0},
		)},
		{CustomerID: "C003", OrderHistory: blob(
			demoOrder{"#C301", "2024-02-01", 650, 0, 25},
			demoOrder{"#C302", "not recorded", 900, 0, 0},
		)},
		// C001 exported twice: rows are merged before simulation.
		{CustomerID: "C001", OrderHistory: blob(
			demoOrder{"#A104", "2024-05-18", 700, 700, 0},
		)},
		{CustomerID: "C004", OrderHistory: blob(
			demoOrder{"#D401", "2024-03-30", 5200, 0, 200},
		)},
	}
}

func tierClimbCustomers() []cashback.CustomerRow {
	orders := make([]demoOrder, 0, 12)
	for m := 1; m <= 12; m++ {
		orders = append(orders, demoOrder{
			id:     fmt.Sprintf("#T%02d", m),
			date:   fmt.Sprintf("2024-%02d-10", m),
			silver: 9000,
			gold:   3000,
		})
	}
	return []cashback.CustomerRow{{CustomerID: "WHALE-1", OrderHistory: blob(orders...)}}
}

func coinExpiryCustomers() []cashback.CustomerRow {
	return []cashback.CustomerRow{
		{CustomerID: "E001", OrderHistory: blob(
			demoOrder{"#E1", "2023-01-10", 2000, 0, 0},
			demoOrder{"#E2", "2023-09-01", 1000, 0, 0},
			demoOrder{"#E3", "2024-06-01", 1000, 0, 0},
		)},
		{CustomerID: "E002", OrderHistory: blob(
			demoOrder{"#F1", "2023-03-01", 500, 0, 0},
			demoOrder{"#F2", "2023-05-01", 500, 0, 0},
			demoOrder{"#F3", "2024-01-15", 500, 0, 0},
		)},
	}
}

// tieredProgram rewards higher brackets with higher rates.
func tieredProgram() *factory.ProgramJSON {
	pj := factory.DefaultProgramJSON()
	pj.ID = "tiered"
	pj.Name = "Tiered"
	for i, b := range pj.Brackets {
		step := float64(i)
		pj.Tiers[b.Label] = factory.TierJSON{
			SilverCashbackPct: 4 + step,
			GoldCashbackPct:   2 + step/2,
			RedeemPct:         20 + 5*step,
		}
	}
	return &pj
}
