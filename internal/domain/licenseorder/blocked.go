package licenseorder

import (
	"sort"

	"licensedesk/internal/domain/licensing"
)

// BlockedEntry lists the distinct reasons one member is blocked, in report order.
type BlockedEntry struct {
	ReasonCodes []string
	Messages    []string
}

// HasReason reports whether code is among the entry's reason codes.
func (e BlockedEntry) HasReason(code string) bool {
	for _, c := range e.ReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}

// BlockedIndex maps member id to why that member is blocked for one license type.
type BlockedIndex map[int]BlockedEntry

// BuildBlockedIndex collects the ineligible members of a single license type.
// PRE: t is the currently selected ineligible type
// POST: Every member id appears once with deduplicated codes and messages
func BuildBlockedIndex(t licensing.IneligibleLicenseType) BlockedIndex {
	idx := make(BlockedIndex, len(t.IneligibleMembers))
	for _, im := range t.IneligibleMembers {
		if im.MemberID <= 0 {
			continue
		}
		entry := idx[im.MemberID]
		if im.ReasonCode != "" && !contains(entry.ReasonCodes, im.ReasonCode) {
			entry.ReasonCodes = append(entry.ReasonCodes, im.ReasonCode)
		}
		if im.Message != "" && !contains(entry.Messages, im.Message) {
			entry.Messages = append(entry.Messages, im.Message)
		}
		idx[im.MemberID] = entry
	}
	return idx
}

// IDs returns the blocked member ids in ascending order.
func (b BlockedIndex) IDs() []int {
	ids := make([]int, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// WithReason returns the ids blocked for the given reason code, ascending.
func (b BlockedIndex) WithReason(code string) []int {
	var ids []int
	for id, entry := range b {
		if entry.HasReason(code) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
