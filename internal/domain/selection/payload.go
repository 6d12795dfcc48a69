package selection

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Slot keys, one per workflow kind that receives a cross-page selection.
const (
	SlotLicenseBatchOrder = "license_batch_order_selection"
)

// MinYear is the exclusive lower bound for a usable payload year.
const MinYear = 2000

// Payload is the selection handed from an originating screen to a workflow.
// INVARIANT: SelectedIDs holds unique positive integers in first-seen order.
type Payload struct {
	SelectedIDs    []int
	SelectedClubID *int
	Year           *int
}

// wirePayload mirrors the stored JSON. Fields are decoded loosely so that a
// single bad value never discards the rest of the payload.
type wirePayload struct {
	SelectedIDs    json.RawMessage `json:"selectedIds"`
	SelectedClubID json.RawMessage `json:"selectedClubId"`
	Year           json.RawMessage `json:"year"`
}

// IsEmpty reports whether the payload carries no member ids.
func (p Payload) IsEmpty() bool {
	return len(p.SelectedIDs) == 0
}

// ClubID returns the selected club id, or 0 when none was handed over.
func (p Payload) ClubID() int {
	if p.SelectedClubID == nil {
		return 0
	}
	return *p.SelectedClubID
}

// ParsePayload decodes a transfer slot value.
// PRE: raw may be empty, malformed, or partially valid
// POST: Returns a Payload; malformed parts degrade to their zero value
// INVARIANT: Never fails; ids are positive, deduplicated integers
func ParsePayload(raw string) Payload {
	var wire wirePayload
	if strings.TrimSpace(raw) == "" {
		return Payload{SelectedIDs: []int{}}
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Payload{SelectedIDs: []int{}}
	}

	p := Payload{SelectedIDs: parseIDs(wire.SelectedIDs)}
	if id, ok := coerceInt(wire.SelectedClubID); ok && id > 0 {
		p.SelectedClubID = &id
	}
	if year, ok := coerceStrictInt(wire.Year); ok && year > MinYear {
		p.Year = &year
	}
	return p
}

// Encode renders the payload in the slot's JSON shape.
// PRE: none
// POST: Returns JSON that ParsePayload maps back to an equal Payload
func (p Payload) Encode() (string, error) {
	ids := p.SelectedIDs
	if ids == nil {
		ids = []int{}
	}
	out := struct {
		SelectedIDs    []int `json:"selectedIds"`
		SelectedClubID *int  `json:"selectedClubId"`
		Year           *int  `json:"year"`
	}{ids, p.SelectedClubID, p.Year}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NormalizeIDs drops non-positive ids and duplicates, keeping first-seen order.
func NormalizeIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func parseIDs(raw json.RawMessage) []int {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return []int{}
	}
	ids := make([]int, 0, len(items))
	for _, item := range items {
		if id, ok := coerceInt(item); ok {
			ids = append(ids, id)
		}
	}
	return NormalizeIDs(ids)
}

// coerceInt accepts JSON numbers and numeric strings with an integral value.
func coerceInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return integral(f)
	}
	var f float64
	if json.Unmarshal(raw, &f) != nil {
		return 0, false
	}
	return integral(f)
}

// coerceStrictInt accepts JSON numbers only; year strings are not coerced.
func coerceStrictInt(raw json.RawMessage) (int, bool) {
	var f float64
	if len(raw) == 0 || json.Unmarshal(raw, &f) != nil {
		return 0, false
	}
	return integral(f)
}

// maxSafeInteger is the largest integer a browser number holds exactly.
const maxSafeInteger = 1<<53 - 1

func integral(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > maxSafeInteger || f < -maxSafeInteger {
		return 0, false
	}
	return int(f), true
}
