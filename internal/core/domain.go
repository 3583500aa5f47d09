package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Lunch  MealSlot = "lunch"
	Dinner MealSlot = "dinner"

	ShopPurchase ShopTxType = "purchase"
	ShopPayment  ShopTxType = "payment"
)

// DateLayout is the calendar-day format used by every dated record.
const DateLayout = "2006-01-02"

type (
	MealSlot   string
	ShopTxType string

	Date struct {
		time.Time
	}

	Member struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		IsActive bool   `json:"isActive"`
	}

	// MealRecord is one member's consumption for one day. LunchCount and
	// DinnerCount override the booleans when present.
	MealRecord struct {
		Date        string   `json:"date"`
		MemberID    string   `json:"memberId"`
		Lunch       bool     `json:"lunch"`
		Dinner      bool     `json:"dinner"`
		LunchCount  *float64 `json:"lunchCount,omitempty"`
		DinnerCount *float64 `json:"dinnerCount,omitempty"`
	}

	// Expense is a grocery ("bazar") purchase. PaidBy is only meaningful
	// under the paid-by contribution model.
	Expense struct {
		ID     string  `json:"id"`
		Date   string  `json:"date"`
		Item   string  `json:"item"`
		Amount float64 `json:"amount"`
		PaidBy string  `json:"paidBy,omitempty"`
	}

	ExtraExpense struct {
		ID     string  `json:"id"`
		Date   string  `json:"date"`
		Item   string  `json:"item"`
		Amount float64 `json:"amount"`
		Note   string  `json:"note,omitempty"`
	}

	Deposit struct {
		ID       string  `json:"id"`
		Date     string  `json:"date"`
		MemberID string  `json:"memberId"`
		Amount   float64 `json:"amount"`
	}

	MaidPayment struct {
		ID     string  `json:"id"`
		Date   string  `json:"date"`
		Amount float64 `json:"amount"`
		PaidBy string  `json:"paidBy,omitempty"`
		Note   string  `json:"note,omitempty"`
	}

	ShopTransaction struct {
		ID     string     `json:"id"`
		Date   string     `json:"date"`
		Type   ShopTxType `json:"type"`
		Amount float64    `json:"amount"`
		Note   string     `json:"note,omitempty"`
	}

	// MealUnits is the normalized form of a MealRecord.
	MealUnits struct {
		Lunch  float64
		Dinner float64
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyItem       = errors.New("empty item")
	ErrEmptyMember     = errors.New("empty member id")
	ErrInvalidSlot     = errors.New("invalid meal slot")
	ErrInvalidShopType = errors.New("invalid shop transaction type")
	ErrTooLong         = errors.New("value too long")
)

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads the calendar day from an ISO-8601 string. Full
// timestamps are accepted; only the date part is used.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return Date{}, ErrInvalidDate
	}
	t, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// CanonicalDate returns the YYYY-MM-DD form of an ISO-8601 date or
// timestamp, so that one calendar day always has one spelling.
// Unparseable input is returned unchanged.
func CanonicalDate(s string) string {
	d, err := ParseDate(s)
	if err != nil {
		return s
	}
	return d.String()
}

// Today returns the calendar day of now as seen in loc.
func Today(now time.Time, loc *time.Location) Date {
	if loc != nil {
		now = now.In(loc)
	}
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (s MealSlot) Validate() error {
	switch s {
	case Lunch, Dinner:
		return nil
	default:
		return ErrInvalidSlot
	}
}

func (t ShopTxType) Validate() error {
	switch t {
	case ShopPurchase, ShopPayment:
		return nil
	default:
		return ErrInvalidShopType
	}
}

// Units resolves the optional counts against the booleans.
func (r MealRecord) Units() MealUnits {
	return MealUnits{
		Lunch:  slotUnits(r.LunchCount, r.Lunch),
		Dinner: slotUnits(r.DinnerCount, r.Dinner),
	}
}

func slotUnits(count *float64, eaten bool) float64 {
	if count != nil {
		return *count
	}
	if eaten {
		return 1
	}
	return 0
}

// ValidateAmount is the entry-time rule for money: finite and positive.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateDate(s string) error {
	_, err := ParseDate(s)
	return err
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if len(m.Name) > 100 {
		return fmt.Errorf("%w: name (max 100 characters)", ErrTooLong)
	}
	return nil
}

func (e Expense) Validate() error {
	if err := validateDate(e.Date); err != nil {
		return err
	}
	if strings.TrimSpace(e.Item) == "" {
		return ErrEmptyItem
	}
	if len(e.Item) > 200 {
		return fmt.Errorf("%w: item (max 200 characters)", ErrTooLong)
	}
	return ValidateAmount(e.Amount)
}

func (e ExtraExpense) Validate() error {
	if err := validateDate(e.Date); err != nil {
		return err
	}
	if strings.TrimSpace(e.Item) == "" {
		return ErrEmptyItem
	}
	return ValidateAmount(e.Amount)
}

func (d Deposit) Validate() error {
	if err := validateDate(d.Date); err != nil {
		return err
	}
	if strings.TrimSpace(d.MemberID) == "" {
		return ErrEmptyMember
	}
	return ValidateAmount(d.Amount)
}

func (p MaidPayment) Validate() error {
	if err := validateDate(p.Date); err != nil {
		return err
	}
	return ValidateAmount(p.Amount)
}

func (t ShopTransaction) Validate() error {
	if err := validateDate(t.Date); err != nil {
		return err
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	return ValidateAmount(t.Amount)
}
