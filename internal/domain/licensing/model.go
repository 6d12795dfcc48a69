package licensing

import (
	"strconv"
)

// Reason codes reported by the eligibility service.
const (
	ReasonDuplicatePendingOrActive = "duplicate_pending_or_active"
	ReasonOutsideOrderWindow       = "outside_order_window"
	ReasonAgeRestriction           = "age_restriction"
	ReasonMissingPrerequisite      = "missing_prerequisite"
	ReasonMemberInactive           = "member_inactive"
)

// Price is the active price of a license type.
// Amount is kept as the decimal string the backend sends.
type Price struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// EligibleLicenseType can be ordered for every member in the query.
type EligibleLicenseType struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ActivePrice *Price `json:"active_price"`
}

// ReasonCount aggregates how many members share a blocking message.
type ReasonCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// IneligibleMember explains why one member is blocked for a license type.
type IneligibleMember struct {
	MemberID   int    `json:"member_id"`
	ReasonCode string `json:"reason_code"`
	Message    string `json:"message"`
}

// IneligibleLicenseType is blocked for at least one member in the query.
type IneligibleLicenseType struct {
	ID                int                `json:"id"`
	Name              string             `json:"name"`
	ReasonCounts      []ReasonCount      `json:"reason_counts"`
	IneligibleMembers []IneligibleMember `json:"ineligible_members"`
}

// EligibilityRequest is the query sent to the eligibility service.
type EligibilityRequest struct {
	Club      int   `json:"club"`
	MemberIDs []int `json:"member_ids"`
	Year      int   `json:"year"`
}

// EligibilityResult partitions license types into eligible and ineligible.
type EligibilityResult struct {
	Eligible   []EligibleLicenseType   `json:"eligible_license_types"`
	Ineligible []IneligibleLicenseType `json:"ineligible_license_types"`
}

// BatchOrderRequest is the single order-creation call for a resolved batch.
type BatchOrderRequest struct {
	Club        int    `json:"club"`
	LicenseType int    `json:"license_type"`
	MemberIDs   []int  `json:"member_ids"`
	Year        int    `json:"year"`
	Quantity    int    `json:"quantity"`
	TaxTotal    string `json:"tax_total"`
}

// BatchOrderResult is what the backend returns for a created batch.
type BatchOrderResult struct {
	ID         int64  `json:"id"`
	BatchID    string `json:"batch_id,omitempty"`
	OrderCount int    `json:"order_count,omitempty"`
}

// TypeKey renders a license type id the way selections store it.
func TypeKey(id int) string {
	return strconv.Itoa(id)
}

// FindEligible returns the eligible type whose key matches.
func FindEligible(types []EligibleLicenseType, key string) (EligibleLicenseType, bool) {
	for _, t := range types {
		if TypeKey(t.ID) == key {
			return t, true
		}
	}
	return EligibleLicenseType{}, false
}

// FindIneligible returns the ineligible type whose key matches.
func FindIneligible(types []IneligibleLicenseType, key string) (IneligibleLicenseType, bool) {
	for _, t := range types {
		if TypeKey(t.ID) == key {
			return t, true
		}
	}
	return IneligibleLicenseType{}, false
}

// DefaultTypeKey picks the first eligible type, else the first ineligible one.
// POST: Returns "" when both lists are empty
func DefaultTypeKey(eligible []EligibleLicenseType, ineligible []IneligibleLicenseType) string {
	if len(eligible) > 0 {
		return TypeKey(eligible[0].ID)
	}
	if len(ineligible) > 0 {
		return TypeKey(ineligible[0].ID)
	}
	return ""
}

// RepairTypeKey keeps current when it still names a listed type.
// POST: Returns current, or DefaultTypeKey when current is absent from both lists
func RepairTypeKey(current string, eligible []EligibleLicenseType, ineligible []IneligibleLicenseType) string {
	if current != "" {
		if _, ok := FindEligible(eligible, current); ok {
			return current
		}
		if _, ok := FindIneligible(ineligible, current); ok {
			return current
		}
	}
	return DefaultTypeKey(eligible, ineligible)
}
