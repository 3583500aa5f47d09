package ledger

import (
	"math"

	"mess/internal/core"
)

type mealKey struct {
	date     string
	memberID string
}

func keyOfMeal(r core.MealRecord) mealKey {
	return mealKey{date: r.Date, memberID: r.MemberID}
}

// Meals returns a copy of every meal record.
func (s *Store) Meals() []core.MealRecord {
	return s.Snapshot().Meals
}

// Meal returns the stored record for a (date, member) pair.
func (s *Store) Meal(date, memberID string) (core.MealRecord, bool) {
	date = core.CanonicalDate(date)
	for _, m := range s.snap.Meals {
		if m.Date == date && m.MemberID == memberID {
			return m.Clone(), true
		}
	}
	return core.MealRecord{}, false
}

// UpdateMeal sets one slot of the (date, member) record, creating the
// record if needed. The slot's explicit count is dropped so the boolean
// is the effective value afterwards. It reports whether a record was
// created.
func (s *Store) UpdateMeal(date, memberID string, slot core.MealSlot, value bool) (core.MealRecord, bool) {
	date = core.CanonicalDate(date)
	rec, found := s.Meal(date, memberID)
	if !found {
		rec = core.MealRecord{Date: date, MemberID: memberID}
	}
	switch slot {
	case core.Lunch:
		rec.Lunch = value
		rec.LunchCount = nil
	case core.Dinner:
		rec.Dinner = value
		rec.DinnerCount = nil
	}
	return rec, s.UpsertMeal(rec)
}

// UpdateMealCount stores explicit counts for the (date, member) record.
// Negative and NaN counts are written as zero; the booleans follow the
// counts.
func (s *Store) UpdateMealCount(date, memberID string, lunchCount, dinnerCount float64) (core.MealRecord, bool) {
	date = core.CanonicalDate(date)
	lunchCount = clampCount(lunchCount)
	dinnerCount = clampCount(dinnerCount)
	rec := core.MealRecord{
		Date:        date,
		MemberID:    memberID,
		Lunch:       lunchCount > 0,
		Dinner:      dinnerCount > 0,
		LunchCount:  &lunchCount,
		DinnerCount: &dinnerCount,
	}
	return rec.Clone(), s.UpsertMeal(rec)
}

// UpsertMeal replaces the record for the same (date, member) pair or
// appends it, and reports whether it was appended. Timestamps are
// stored as their calendar day.
func (s *Store) UpsertMeal(rec core.MealRecord) bool {
	rec.Date = core.CanonicalDate(rec.Date)
	var created bool
	s.snap.Meals, created = upsertByKey(s.snap.Meals, rec.Clone(), keyOfMeal)
	s.touch()
	return created
}

// RemoveMeal deletes the record for a (date, member) pair. Local edits
// never delete meals; this exists for remote delete events.
func (s *Store) RemoveMeal(date, memberID string) (core.MealRecord, bool) {
	date = core.CanonicalDate(date)
	for i, m := range s.snap.Meals {
		if m.Date != date || m.MemberID != memberID {
			continue
		}
		out := make([]core.MealRecord, 0, len(s.snap.Meals)-1)
		out = append(out, s.snap.Meals[:i]...)
		out = append(out, s.snap.Meals[i+1:]...)
		s.snap.Meals = out
		s.touch()
		return m, true
	}
	return core.MealRecord{}, false
}

func clampCount(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// canonicalMeals rewrites dates to YYYY-MM-DD and keeps one record per
// (date, member); a later record replaces an earlier one in the earlier
// position.
func canonicalMeals(meals []core.MealRecord) []core.MealRecord {
	out := make([]core.MealRecord, 0, len(meals))
	for _, m := range meals {
		m.Date = core.CanonicalDate(m.Date)
		out, _ = upsertByKey(out, m, keyOfMeal)
	}
	return out
}
