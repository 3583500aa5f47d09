package settlement

import (
	"fmt"

	"mess/internal/core"
	"mess/internal/window"
)

// ContributionModel selects what counts as a member's payment into the
// household. It is fixed for the lifetime of an Engine.
type ContributionModel string

const (
	// DepositModel credits members with their Deposit records.
	DepositModel ContributionModel = "deposit"
	// PaidByModel credits members with the grocery expenses they fronted.
	PaidByModel ContributionModel = "paid_by"
)

// Contributor is the strategy behind a ContributionModel.
type Contributor interface {
	// MemberTotal is what memberID contributed within the window.
	MemberTotal(snap core.Snapshot, memberID string, pred window.Predicate) float64
	// Total is what all members, including removed ones, contributed.
	Total(snap core.Snapshot, pred window.Predicate) float64
}

// DepositContributor implements Contributor for DepositModel.
type DepositContributor struct{}

func (DepositContributor) MemberTotal(snap core.Snapshot, memberID string, pred window.Predicate) float64 {
	var total float64
	for _, d := range snap.Deposits {
		if d.MemberID == memberID && pred(d.Date) {
			total += d.Amount
		}
	}
	return total
}

func (DepositContributor) Total(snap core.Snapshot, pred window.Predicate) float64 {
	var total float64
	for _, d := range snap.Deposits {
		if pred(d.Date) {
			total += d.Amount
		}
	}
	return total
}

// PaidByContributor implements Contributor for PaidByModel. Expenses
// with no payer are shared cost only.
type PaidByContributor struct{}

func (PaidByContributor) MemberTotal(snap core.Snapshot, memberID string, pred window.Predicate) float64 {
	var total float64
	for _, e := range snap.Expenses {
		if e.PaidBy != "" && e.PaidBy == memberID && pred(e.Date) {
			total += e.Amount
		}
	}
	return total
}

func (PaidByContributor) Total(snap core.Snapshot, pred window.Predicate) float64 {
	var total float64
	for _, e := range snap.Expenses {
		if e.PaidBy != "" && pred(e.Date) {
			total += e.Amount
		}
	}
	return total
}

var contributors = map[ContributionModel]Contributor{
	DepositModel: DepositContributor{},
	PaidByModel:  PaidByContributor{},
}

// GetContributor returns the strategy for a model.
func GetContributor(model ContributionModel) (Contributor, error) {
	c, ok := contributors[model]
	if !ok {
		return nil, fmt.Errorf("unknown contribution model: %q", model)
	}
	return c, nil
}

// ParseContributionModel validates a configured model name.
func ParseContributionModel(s string) (ContributionModel, error) {
	model := ContributionModel(s)
	if _, err := GetContributor(model); err != nil {
		return "", err
	}
	return model, nil
}
