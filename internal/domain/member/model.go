package member

import (
	"errors"
	"strings"
)

// Domain errors
var (
	ErrInvalidID   = errors.New("member id must be positive")
	ErrInvalidClub = errors.New("member club must be positive")
	ErrEmptyName   = errors.New("member name cannot be empty")
)

// Member is the read-only roster entry the backend returns for a club.
type Member struct {
	ID        int    `json:"id"`
	Club      int    `json:"club"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Active    bool   `json:"is_active"`
}

// Validate checks if the Member has usable data.
// PRE: Member struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (m *Member) Validate() error {
	if m.ID <= 0 {
		return ErrInvalidID
	}
	if m.Club <= 0 {
		return ErrInvalidClub
	}
	if strings.TrimSpace(m.FirstName) == "" && strings.TrimSpace(m.LastName) == "" {
		return ErrEmptyName
	}
	return nil
}

// FullName returns "First Last", falling back to whichever part is set.
func (m *Member) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(m.FirstName) + " " + strings.TrimSpace(m.LastName))
}

// BelongsTo reports whether the member is on the given club's roster.
// INVARIANT: Member fields are not mutated
func (m *Member) BelongsTo(clubID int) bool {
	return clubID > 0 && m.Club == clubID
}

// IDsInClub returns the set of member ids whose club matches clubID.
func IDsInClub(roster []Member, clubID int) map[int]bool {
	ids := make(map[int]bool, len(roster))
	for _, m := range roster {
		if m.BelongsTo(clubID) {
			ids[m.ID] = true
		}
	}
	return ids
}

// Index maps member ids to roster entries for name lookups.
func Index(roster []Member) map[int]Member {
	idx := make(map[int]Member, len(roster))
	for _, m := range roster {
		idx[m.ID] = m
	}
	return idx
}
