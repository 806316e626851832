package memory

import "masjid/internal/ledger"

const legacyFinanceRoot = "masjid_finance"

var legacyFields = map[string]string{
	"jumaon_ka_chanda": ledger.FieldDonations,
	"kharcha":          ledger.FieldExpenses,
}

// importLegacy moves months found under the legacy root into finance and
// renames legacy collection fields. Months already present under finance win.
// The users collection becomes accounts.
func importLegacy(root map[string]any) map[string]any {
	finance := asObject(root[ledger.RootFinance])
	if finance == nil {
		finance = map[string]any{}
	}
	if legacy := asObject(root[legacyFinanceRoot]); legacy != nil {
		for month, rec := range legacy {
			if _, ok := finance[month]; !ok {
				finance[month] = rec
			}
		}
		delete(root, legacyFinanceRoot)
	}
	for month, rec := range finance {
		obj := asObject(rec)
		if obj == nil {
			continue
		}
		for old, cur := range legacyFields {
			v, ok := obj[old]
			if !ok {
				continue
			}
			if _, exists := obj[cur]; !exists {
				obj[cur] = v
			}
			delete(obj, old)
		}
		finance[month] = obj
	}
	if len(finance) > 0 {
		root[ledger.RootFinance] = finance
	}
	if users, ok := root["users"]; ok {
		if _, exists := root[ledger.RootAccounts]; !exists {
			root[ledger.RootAccounts] = users
		}
		delete(root, "users")
	}
	return root
}
