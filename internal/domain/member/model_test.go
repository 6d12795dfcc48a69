package member_test

import (
	"testing"

	"licensedesk/internal/domain/member"
)

// TestMemberValidation tests validation of Member.
func TestMemberValidation(t *testing.T) {
	tests := []struct {
		name    string
		member  member.Member
		wantErr bool
	}{
		{"valid member", member.Member{ID: 1, Club: 10, FirstName: "Ana", LastName: "Silva"}, false},
		{"last name only", member.Member{ID: 1, Club: 10, LastName: "Silva"}, false},
		{"zero id", member.Member{ID: 0, Club: 10, FirstName: "Ana"}, true},
		{"zero club", member.Member{ID: 1, Club: 0, FirstName: "Ana"}, true},
		{"blank names", member.Member{ID: 1, Club: 10, FirstName: "  "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.member.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Member.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestIDsInClub verifies roster filtering by club.
func TestIDsInClub(t *testing.T) {
	roster := []member.Member{
		{ID: 1, Club: 10},
		{ID: 2, Club: 11},
		{ID: 3, Club: 10},
	}
	got := member.IDsInClub(roster, 10)
	if len(got) != 2 || !got[1] || !got[3] {
		t.Errorf("IDsInClub = %v, want {1,3}", got)
	}
	if len(member.IDsInClub(roster, 0)) != 0 {
		t.Error("IDsInClub(0) should be empty")
	}
}

func TestFullName(t *testing.T) {
	m := member.Member{FirstName: " Ana ", LastName: ""}
	if got := m.FullName(); got != "Ana" {
		t.Errorf("FullName() = %q, want %q", got, "Ana")
	}
}
