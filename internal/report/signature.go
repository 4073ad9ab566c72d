package report

import (
	"encoding/json"
	"sort"
	"strings"
)

// Signature fingerprints everything that requires a refetch. Display dates
// are deliberately absent: narrowing them only re-slices loaded data.
type Signature struct {
	ReportID    string           `json:"report_id"`
	LoadFrom    string           `json:"load_from"`
	LoadTo      string           `json:"load_to"`
	Attribution string           `json:"attribution"`
	AccountIDs  []string         `json:"account_ids"`
	Selections  map[Tab][]string `json:"selections"`
}

func ComputeSignature(params Params) Signature {
	accountIDs := make([]string, 0, len(params.Accounts))
	for _, account := range params.Accounts {
		accountIDs = append(accountIDs, account.ID)
	}
	return Signature{
		ReportID:    params.ReportID,
		LoadFrom:    params.LoadFrom,
		LoadTo:      params.LoadTo,
		Attribution: params.Attribution,
		AccountIDs:  accountIDs,
		Selections:  params.Selections,
	}.canonical()
}

func (s Signature) canonical() Signature {
	out := Signature{
		ReportID:    strings.TrimSpace(s.ReportID),
		LoadFrom:    strings.TrimSpace(s.LoadFrom),
		LoadTo:      strings.TrimSpace(s.LoadTo),
		Attribution: strings.TrimSpace(s.Attribution),
		AccountIDs:  sortedUnique(s.AccountIDs),
		Selections:  map[Tab][]string{},
	}
	for tab, ids := range s.Selections {
		normalized := sortedUnique(ids)
		if len(normalized) == 0 {
			continue
		}
		out.Selections[tab] = normalized
	}
	return out
}

// Key is the serialized canonical form; two signatures are equal iff their
// keys are identical.
func (s Signature) Key() string {
	encoded, err := json.Marshal(s.canonical())
	if err != nil {
		return ""
	}
	return string(encoded)
}

func SignaturesEqual(a Signature, b Signature) bool {
	return a.Key() == b.Key()
}

func sortedUnique(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}
