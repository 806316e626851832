package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"masjid/internal/core"
)

// rawEntry is one collection element tagged with its storage key.
type rawEntry struct {
	ID  string
	Raw json.RawMessage
}

// decodeCollection accepts either a JSON array or a keyed object and returns
// its non-null elements in storage order. Array elements use their index as
// id. Object keys are ordered numerically when numeric, otherwise
// lexicographically; push ids are time ordered so this is insertion order.
func decodeCollection(raw json.RawMessage) []rawEntry {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		out := make([]rawEntry, 0, len(items))
		for i, it := range items {
			if isNull(it) {
				continue
			}
			out = append(out, rawEntry{ID: strconv.Itoa(i), Raw: it})
		}
		return out
	case '{':
		var items map[string]json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		keys := make([]string, 0, len(items))
		for k, v := range items {
			if !isNull(v) {
				keys = append(keys, k)
			}
		}
		sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
		out := make([]rawEntry, 0, len(keys))
		for _, k := range keys {
			out = append(out, rawEntry{ID: k, Raw: items[k]})
		}
		return out
	}
	return nil
}

func lessKey(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	}
	return a < b
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeDonations(raw json.RawMessage) []core.DonationEntry {
	out := []core.DonationEntry{}
	for _, re := range decodeCollection(raw) {
		var e core.DonationEntry
		if err := json.Unmarshal(re.Raw, &e); err != nil {
			continue
		}
		e.ID = re.ID
		out = append(out, e)
	}
	return out
}

func decodeExpenses(raw json.RawMessage) []core.ExpenseEntry {
	out := []core.ExpenseEntry{}
	for _, re := range decodeCollection(raw) {
		var e core.ExpenseEntry
		if err := json.Unmarshal(re.Raw, &e); err != nil {
			continue
		}
		e.ID = re.ID
		out = append(out, e)
	}
	return out
}

// decodeMonth builds a fully defaulted record from the stored month object.
// Malformed fields fall back to their defaults instead of failing the read.
func decodeMonth(key core.MonthKey, raw json.RawMessage) (core.MonthRecord, error) {
	rec := core.EmptyMonth(key)
	if isNull(raw) {
		return rec, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return rec, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, key, err)
	}
	rec.Exists = true

	rec.Donations = decodeDonations(fields[FieldDonations])
	rec.Expenses = decodeExpenses(fields[FieldExpenses])

	if v, ok := present(fields, FieldBillBook); ok {
		var bb core.BillBook
		if json.Unmarshal(v, &bb) == nil {
			rec.BillBook = bb
		}
	}
	if v, ok := present(fields, FieldOldBalance); ok {
		_ = json.Unmarshal(v, &rec.OldBalance)
		rec.OldBalanceSet = true
	}
	if v, ok := present(fields, FieldFinalBalance); ok {
		_ = json.Unmarshal(v, &rec.FinalBalance)
		rec.FinalBalanceSet = true
	}
	for _, role := range []core.SalaryRole{core.RoleImam, core.RoleMouzan} {
		v, ok := present(fields, role.Field())
		if !ok {
			continue
		}
		var s core.Salary
		if json.Unmarshal(v, &s) != nil {
			continue
		}
		if role == core.RoleImam {
			rec.ImamSalary = s
		} else {
			rec.MouzanSalary = s
		}
	}
	return rec, nil
}

func present(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	v, ok := fields[name]
	if !ok || isNull(v) {
		return nil, false
	}
	return v, true
}
