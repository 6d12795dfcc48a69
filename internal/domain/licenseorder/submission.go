package licenseorder

import (
	"errors"

	"licensedesk/internal/domain/licensing"
)

// Submission precondition errors, checked in declaration order.
var (
	ErrNoMembersRemain     = errors.New("no members remain after filtering")
	ErrLicenseTypeRequired = errors.New("license type required")
	ErrLicenseTypeBlocked  = errors.New("selected license type is blocked")
	ErrYearRequired        = errors.New("year required")
)

// Batch order constants the backend expects for license batches.
const (
	BatchQuantity = 1
	BatchTaxTotal = "0.00"
)

// PrepareBatchOrder validates the reconciled state and builds the order call.
// PRE: none
// POST: Returns the first failing precondition, or a request for ValidSelectedIDs
// INVARIANT: Reconciler state is not mutated
func (r *Reconciler) PrepareBatchOrder() (licensing.BatchOrderRequest, error) {
	ids := r.ValidSelectedIDs()
	if len(ids) == 0 {
		return licensing.BatchOrderRequest{}, ErrNoMembersRemain
	}

	if r.typeKey == "" {
		return licensing.BatchOrderRequest{}, ErrLicenseTypeRequired
	}
	lt, ok := licensing.FindEligible(r.eligible, r.typeKey)
	if !ok {
		if _, blocked := licensing.FindIneligible(r.ineligible, r.typeKey); blocked {
			return licensing.BatchOrderRequest{}, ErrLicenseTypeBlocked
		}
		return licensing.BatchOrderRequest{}, ErrLicenseTypeRequired
	}

	year, ok := r.Year()
	if !ok {
		return licensing.BatchOrderRequest{}, ErrYearRequired
	}

	return licensing.BatchOrderRequest{
		Club:        r.clubID,
		LicenseType: lt.ID,
		MemberIDs:   ids,
		Year:        year,
		Quantity:    BatchQuantity,
		TaxTotal:    BatchTaxTotal,
	}, nil
}
