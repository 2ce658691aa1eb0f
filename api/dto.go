/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the cashback domain model from the external API contract. Money and
  percentages leave the API as JSON numbers rounded to two decimals.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Customers:
    CustomerDTO, OrderDTO, CustomerListDTO, ImportResponse

  Programs:
    ProgramDTO (wraps factory.ProgramJSON)

  Simulations:
    SimulationRequest, LifetimeResponse, MonthlyRequest, MonthlyResponse,
    CustomerSimulationResponse

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/program.go: ProgramJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/factory"
	"github.com/warp/cashback-engine/store"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

// CustomerDTO is one customer with every imported history and the parsed orders.
type CustomerDTO struct {
	ID        string     `json:"id"`
	Histories []string   `json:"order_histories"`
	Orders    []OrderDTO `json:"orders"`
}

// OrderDTO is one parsed sub-record. ValidDate is false when the order is
// skipped by the simulator.
type OrderDTO struct {
	ID            string  `json:"order_id"`
	Date          string  `json:"order_date"`
	ValidDate     bool    `json:"valid_date"`
	SilverRevenue float64 `json:"silver_revenue"`
	GoldRevenue   float64 `json:"gold_revenue"`
	PromoAmount   float64 `json:"promo_amount"`
}

// CustomerListDTO lists the distinct customer ids in import order.
type CustomerListDTO struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

// ImportResponse reports a CSV import.
type ImportResponse struct {
	Imported  int `json:"imported"`
	Customers int `json:"customers"`
}

// =============================================================================
// PROGRAMS
// =============================================================================

// ProgramDTO represents a saved program in API responses.
type ProgramDTO struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Config    factory.ProgramJSON `json:"config"`
	Version   int                 `json:"version"`
	CreatedAt string              `json:"created_at,omitempty"`
	UpdatedAt string              `json:"updated_at,omitempty"`
}

func toProgramDTO(rec store.ProgramRecord, config factory.ProgramJSON) ProgramDTO {
	dto := ProgramDTO{
		ID:      rec.ID,
		Name:    rec.Name,
		Config:  config,
		Version: rec.Version,
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
	}
	if !rec.UpdatedAt.IsZero() {
		dto.UpdatedAt = rec.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// SIMULATIONS
// =============================================================================

// SimulationRequest selects the program of a run: an inline definition wins
// over a saved program id, and neither means the default program.
type SimulationRequest struct {
	ProgramID    string               `json:"program_id,omitempty"`
	Program      *factory.ProgramJSON `json:"program,omitempty"`
	IncludeTrace bool                 `json:"include_trace,omitempty"`
	ByBracket    bool                 `json:"by_bracket,omitempty"`
}

// MonthlyRequest is a month-scoped run over the stored customers.
type MonthlyRequest struct {
	SimulationRequest
	Months []string `json:"months"`
}

// TotalsDTO carries the additive figures and their derived metrics.
type TotalsDTO struct {
	Revenue        float64 `json:"revenue"`
	SilverRevenue  float64 `json:"silver_revenue"`
	GoldRevenue    float64 `json:"gold_revenue"`
	PromoAmount    float64 `json:"promo_amount"`
	SilverCashback float64 `json:"silver_cashback"`
	GoldCashback   float64 `json:"gold_cashback"`
	EarnedCashback float64 `json:"earned_cashback"`
	CoinsUsed      float64 `json:"coins_used"`
	CoinsExpired   float64 `json:"coins_expired"`
	TotalDiscount  float64 `json:"total_discount"`
	RedemptionRate float64 `json:"redemption_rate_pct"`
}

type CustomerSummaryDTO struct {
	CustomerID string `json:"customer_id"`
	Orders     int    `json:"orders"`
	TotalsDTO
	RepeatRevenue float64 `json:"repeat_revenue"`
	FinalWallet   float64 `json:"final_wallet"`
	FinalLTV      float64 `json:"final_ltv"`
	FinalBracket  string  `json:"final_bracket"`
}

type BracketSummaryDTO struct {
	Bracket string `json:"bracket"`
	Users   int    `json:"users"`
	TotalsDTO
	RepeatRevenue float64 `json:"repeat_revenue"`
	CoinBalance   float64 `json:"coin_balance"`
}

// OverviewDTO is the KPI block of the lifetime view.
type OverviewDTO struct {
	Users int `json:"users"`
	TotalsDTO
}

type TraceRowDTO struct {
	CustomerID     string  `json:"customer_id"`
	OrderID        string  `json:"order_id"`
	OrderDate      string  `json:"order_date"`
	Month          string  `json:"month"`
	OrderIndex     int     `json:"order_index"`
	Bracket        string  `json:"bracket"`
	SilverRevenue  float64 `json:"silver_revenue"`
	GoldRevenue    float64 `json:"gold_revenue"`
	PromoAmount    float64 `json:"promo_amount"`
	SilverCashback float64 `json:"silver_cashback"`
	GoldCashback   float64 `json:"gold_cashback"`
	CoinsUsed      float64 `json:"coins_used"`
	CoinsExpired   float64 `json:"coins_expired"`
	AmountPaid     float64 `json:"amount_paid"`
	CumulativeLTV  float64 `json:"cumulative_ltv"`
	WalletBalance  float64 `json:"wallet_balance"`
}

type TraceMonthDTO struct {
	Month   string `json:"month"`
	Bracket string `json:"bracket,omitempty"`
	Users   int    `json:"users"`
	TotalsDTO
	WalletBalance float64 `json:"wallet_balance"`
}

type MonthSummaryDTO struct {
	Month   string `json:"month"`
	Bracket string `json:"bracket,omitempty"`
	Users   int    `json:"users"`
	TotalsDTO
	CoinBalance           float64 `json:"coin_balance"`
	MonthEndWalletBalance float64 `json:"month_end_wallet_balance"`
}

// LifetimeResponse is the full-history view.
type LifetimeResponse struct {
	RunID       string               `json:"run_id"`
	Program     string               `json:"program"`
	Overview    OverviewDTO          `json:"overview"`
	Customers   []CustomerSummaryDTO `json:"customers"`
	Brackets    []BracketSummaryDTO  `json:"brackets"`
	Trace       []TraceRowDTO        `json:"trace,omitempty"`
	TraceMonths []TraceMonthDTO      `json:"trace_months,omitempty"`
}

// MonthlyResponse is the month-scoped view. Trend has one row per month
// with exact distinct user counts.
type MonthlyResponse struct {
	RunID   string            `json:"run_id"`
	Program string            `json:"program"`
	Rows    []MonthSummaryDTO `json:"rows"`
	Trend   []MonthSummaryDTO `json:"trend"`
}

type CustomerSimulationResponse struct {
	RunID    string             `json:"run_id"`
	Program  string             `json:"program"`
	Customer CustomerSummaryDTO `json:"customer"`
	Trace    []TraceRowDTO      `json:"trace"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Customers   int    `json:"customers"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// money rounds to cents for display. Internal arithmetic stays exact.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func toTotalsDTO(t cashback.Totals) TotalsDTO {
	return TotalsDTO{
		Revenue:        money(t.Revenue()),
		SilverRevenue:  money(t.SilverRevenue),
		GoldRevenue:    money(t.GoldRevenue),
		PromoAmount:    money(t.PromoAmount),
		SilverCashback: money(t.SilverCashback),
		GoldCashback:   money(t.GoldCashback),
		EarnedCashback: money(t.EarnedCashback()),
		CoinsUsed:      money(t.CoinsUsed),
		CoinsExpired:   money(t.CoinsExpired),
		TotalDiscount:  money(t.TotalDiscount()),
		RedemptionRate: money(t.RedemptionRate()),
	}
}

func toCustomerSummaryDTO(s cashback.CustomerSummary) CustomerSummaryDTO {
	return CustomerSummaryDTO{
		CustomerID:    s.CustomerID,
		Orders:        s.Orders,
		TotalsDTO:     toTotalsDTO(s.Totals),
		RepeatRevenue: money(s.RepeatRevenue),
		FinalWallet:   money(s.FinalWallet),
		FinalLTV:      money(s.FinalLTV),
		FinalBracket:  s.FinalBracket,
	}
}

func toTraceDTOs(trace []cashback.TraceRow) []TraceRowDTO {
	dtos := make([]TraceRowDTO, len(trace))
	for i, r := range trace {
		dtos[i] = TraceRowDTO{
			CustomerID:     r.CustomerID,
			OrderID:        r.OrderID,
			OrderDate:      r.OrderDate.String(),
			Month:          r.Month,
			OrderIndex:     r.OrderIndex,
			Bracket:        r.Bracket,
			SilverRevenue:  money(r.SilverRevenue),
			GoldRevenue:    money(r.GoldRevenue),
			PromoAmount:    money(r.PromoAmount),
			SilverCashback: money(r.SilverCashback),
			GoldCashback:   money(r.GoldCashback),
			CoinsUsed:      money(r.CoinsUsed),
			CoinsExpired:   money(r.CoinsExpired),
			AmountPaid:     money(r.AmountPaid),
			CumulativeLTV:  money(r.CumulativeLTV),
			WalletBalance:  money(r.WalletBalance),
		}
	}
	return dtos
}

func toMonthDTOs(rows []cashback.MonthSummary) []MonthSummaryDTO {
	dtos := make([]MonthSummaryDTO, len(rows))
	for i, m := range rows {
		dtos[i] = MonthSummaryDTO{
			Month:                 m.Month,
			Bracket:               m.Bracket,
			Users:                 m.Users,
			TotalsDTO:             toTotalsDTO(m.Totals),
			CoinBalance:           money(m.CoinBalance),
			MonthEndWalletBalance: money(m.MonthEndWalletBalance),
		}
	}
	return dtos
}

func toOrderDTOs(orders []cashback.Order) []OrderDTO {
	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		_, valid := o.Date()
		dtos[i] = OrderDTO{
			ID:            o.ID,
			Date:          o.DateText,
			ValidDate:     valid,
			SilverRevenue: money(o.SilverRevenue),
			GoldRevenue:   money(o.GoldRevenue),
			PromoAmount:   money(o.PromoAmount),
		}
	}
	return dtos
}

func toLifetimeResponse(runID string, program cashback.Program, report cashback.LifetimeReport, req SimulationRequest) LifetimeResponse {
	overview := report.Overview()
	resp := LifetimeResponse{
		RunID:     runID,
		Program:   program.Name,
		Overview:  OverviewDTO{Users: overview.Users, TotalsDTO: toTotalsDTO(overview.Totals)},
		Customers: make([]CustomerSummaryDTO, len(report.Customers)),
	}
	for i, c := range report.Customers {
		resp.Customers[i] = toCustomerSummaryDTO(c)
	}

	brackets := cashback.SummarizeByBracket(report.Customers, program.Brackets)
	resp.Brackets = make([]BracketSummaryDTO, len(brackets))
	for i, b := range brackets {
		resp.Brackets[i] = BracketSummaryDTO{
			Bracket:       b.Bracket,
			Users:         b.Users,
			TotalsDTO:     toTotalsDTO(b.Totals),
			RepeatRevenue: money(b.RepeatRevenue),
			CoinBalance:   money(b.CoinBalance),
		}
	}

	if req.IncludeTrace {
		resp.Trace = toTraceDTOs(report.Trace)
		for _, m := range cashback.SummarizeTraceByMonth(report.Trace, req.ByBracket) {
			resp.TraceMonths = append(resp.TraceMonths, TraceMonthDTO{
				Month:         m.Month,
				Bracket:       m.Bracket,
				Users:         m.Users,
				TotalsDTO:     toTotalsDTO(m.Totals),
				WalletBalance: money(m.WalletBalance),
			})
		}
	}
	return resp
}
