package core

import "time"

// UnknownMemberName is shown for records whose member no longer exists.
const UnknownMemberName = "Unknown member"

const (
	Receivable BalanceStatus = "receivable"
	Payable    BalanceStatus = "payable"
	Settled    BalanceStatus = "settled"
)

type BalanceStatus string

// MemberSummary is one member's settlement in a window. Balance is
// TotalDeposit - TotalCost: positive means the household owes the member.
// Under the paid-by model TotalDeposit holds what the member fronted.
type MemberSummary struct {
	MemberID     string  `json:"memberId"`
	Name         string  `json:"name"`
	TotalMeals   float64 `json:"totalMeals"`
	TotalLunch   float64 `json:"totalLunch"`
	TotalDinner  float64 `json:"totalDinner"`
	TotalCost    float64 `json:"totalCost"`
	TotalDeposit float64 `json:"totalDeposit"`
	Balance      float64 `json:"balance"`
}

// Status classifies the balance by sign.
func (s MemberSummary) Status() BalanceStatus {
	switch {
	case s.Balance > 0:
		return Receivable
	case s.Balance < 0:
		return Payable
	default:
		return Settled
	}
}

// MonthlyStats aggregates the household for one window.
type MonthlyStats struct {
	TotalMeals         float64 `json:"totalMeals"`
	TotalExpenses      float64 `json:"totalExpenses"`
	TotalExtraExpenses float64 `json:"totalExtraExpenses"`
	TotalDeposits      float64 `json:"totalDeposits"`
	TotalMaidPayments  float64 `json:"totalMaidPayments"`
	MealRate           float64 `json:"mealRate"`
	CashInHand         float64 `json:"cashInHand"`
	MemberCount        int     `json:"memberCount"`
}

// TodayStats describes meal intake for a single day.
type TodayStats struct {
	Date          string  `json:"date"`
	Lunch         float64 `json:"lunch"`
	Dinner        float64 `json:"dinner"`
	TotalWeight   float64 `json:"totalWeight"`
	Submitted     int     `json:"submitted"`
	ActiveMembers int     `json:"activeMembers"`
}

// ShopAccount is the running balance against the shop. Positive means
// money is owed to the shop.
type ShopAccount struct {
	TotalPurchase float64 `json:"totalPurchase"`
	TotalPayment  float64 `json:"totalPayment"`
	Balance       float64 `json:"balance"`
}

// Report is a detached, read-only view handed to report collaborators.
type Report struct {
	Window      string          `json:"window"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Stats       MonthlyStats    `json:"stats"`
	Members     []MemberSummary `json:"members"`
	Deposits    []DepositLine   `json:"deposits"`
	Shop        ShopAccount     `json:"shop"`
}

// DepositLine is a deposit with its member's name resolved. Deposits of
// removed members carry UnknownMemberName.
type DepositLine struct {
	Date     string  `json:"date"`
	MemberID string  `json:"memberId"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
}
