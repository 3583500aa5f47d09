package core

// SchemaVersion is written into every exported document.
const SchemaVersion = 1

// Snapshot holds every ledger collection. It is the unit of persistence
// and of export/import.
type Snapshot struct {
	Version          int               `json:"version"`
	Members          []Member          `json:"members"`
	Meals            []MealRecord      `json:"meals"`
	Expenses         []Expense         `json:"expenses"`
	ExtraExpenses    []ExtraExpense    `json:"extraExpenses"`
	Deposits         []Deposit         `json:"deposits"`
	MaidPayments     []MaidPayment     `json:"maidPayments"`
	ShopTransactions []ShopTransaction `json:"shopTransactions"`
}

// DefaultMembers is the household roster used on first run and after a
// clear. The daily-entry view needs at least one row, so this is never
// empty.
func DefaultMembers() []Member {
	return []Member{
		{ID: "1", Name: "রহিম উদ্দিন", IsActive: true},
		{ID: "2", Name: "করিম হোসেন", IsActive: true},
		{ID: "3", Name: "জামাল আহমেদ", IsActive: true},
		{ID: "4", Name: "সাইফুল ইসলাম", IsActive: true},
		{ID: "5", Name: "মাহমুদ হাসান", IsActive: true},
		{ID: "6", Name: "আব্দুল্লাহ আল মামুন", IsActive: true},
		{ID: "7", Name: "তানভীর রহমান", IsActive: true},
		{ID: "8", Name: "শাহরিয়ার কবির", IsActive: true},
	}
}

// SeedSnapshot returns the default state: seed members, nothing else.
func SeedSnapshot() Snapshot {
	s := Snapshot{Version: SchemaVersion, Members: DefaultMembers()}
	s.Normalize()
	return s
}

// Normalize replaces nil collections with empty ones so that an exported
// document always carries every key as an array.
func (s *Snapshot) Normalize() {
	if s.Version == 0 {
		s.Version = SchemaVersion
	}
	if s.Members == nil {
		s.Members = []Member{}
	}
	if s.Meals == nil {
		s.Meals = []MealRecord{}
	}
	if s.Expenses == nil {
		s.Expenses = []Expense{}
	}
	if s.ExtraExpenses == nil {
		s.ExtraExpenses = []ExtraExpense{}
	}
	if s.Deposits == nil {
		s.Deposits = []Deposit{}
	}
	if s.MaidPayments == nil {
		s.MaidPayments = []MaidPayment{}
	}
	if s.ShopTransactions == nil {
		s.ShopTransactions = []ShopTransaction{}
	}
}

// Clone returns a deep copy that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Version:          s.Version,
		Members:          append([]Member{}, s.Members...),
		Meals:            make([]MealRecord, len(s.Meals)),
		Expenses:         append([]Expense{}, s.Expenses...),
		ExtraExpenses:    append([]ExtraExpense{}, s.ExtraExpenses...),
		Deposits:         append([]Deposit{}, s.Deposits...),
		MaidPayments:     append([]MaidPayment{}, s.MaidPayments...),
		ShopTransactions: append([]ShopTransaction{}, s.ShopTransactions...),
	}
	for i, m := range s.Meals {
		out.Meals[i] = m.Clone()
	}
	return out
}

// Clone copies the record including its optional counts.
func (r MealRecord) Clone() MealRecord {
	if r.LunchCount != nil {
		v := *r.LunchCount
		r.LunchCount = &v
	}
	if r.DinnerCount != nil {
		v := *r.DinnerCount
		r.DinnerCount = &v
	}
	return r
}

// MemberName resolves a member id, falling back to UnknownMemberName for
// dangling references.
func (s Snapshot) MemberName(id string) string {
	for _, m := range s.Members {
		if m.ID == id {
			return m.Name
		}
	}
	return UnknownMemberName
}

// ActiveMembers returns the active members in roster order.
func (s Snapshot) ActiveMembers() []Member {
	out := make([]Member, 0, len(s.Members))
	for _, m := range s.Members {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out
}
