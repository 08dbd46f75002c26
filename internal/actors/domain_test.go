package actors

import (
	"encoding/json"
	"testing"
)

func TestParseRoleSet(t *testing.T) {
	cases := []struct {
		name       string
		rawRoles   string
		rawActive  string
		wantRoles  []Role
		wantActive Role
		wantErr    bool
	}{
		{
			name:       "json list with valid active",
			rawRoles:   `["applicant","executor"]`,
			rawActive:  "executor",
			wantRoles:  []Role{RoleApplicant, RoleExecutor},
			wantActive: RoleExecutor,
		},
		{
			name:       "active outside set corrected to first",
			rawRoles:   `["applicant","executor"]`,
			rawActive:  "admin",
			wantRoles:  []Role{RoleApplicant, RoleExecutor},
			wantActive: RoleApplicant,
		},
		{
			name:       "duplicates collapse",
			rawRoles:   `["executor","executor","manager"]`,
			rawActive:  "manager",
			wantRoles:  []Role{RoleExecutor, RoleManager},
			wantActive: RoleManager,
		},
		{
			name:       "legacy bare role name",
			rawRoles:   "manager",
			rawActive:  "manager",
			wantRoles:  []Role{RoleManager},
			wantActive: RoleManager,
		},
		{
			name:       "empty falls back to applicant",
			rawRoles:   "",
			rawActive:  "",
			wantRoles:  []Role{RoleApplicant},
			wantActive: RoleApplicant,
			wantErr:    true,
		},
		{
			name:       "garbage falls back to applicant",
			rawRoles:   `{"not":"a list"}`,
			rawActive:  "executor",
			wantRoles:  []Role{RoleApplicant},
			wantActive: RoleApplicant,
			wantErr:    true,
		},
		{
			name:       "unknown roles dropped",
			rawRoles:   `["applicant","superuser"]`,
			rawActive:  "applicant",
			wantRoles:  []Role{RoleApplicant},
			wantActive: RoleApplicant,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := ParseRoleSet(tc.rawRoles, tc.rawActive)
			if tc.wantErr && err == nil {
				t.Fatal("expected a fallback error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := rs.Roles()
			if len(got) != len(tc.wantRoles) {
				t.Fatalf("roles = %v, want %v", got, tc.wantRoles)
			}
			for i := range got {
				if got[i] != tc.wantRoles[i] {
					t.Fatalf("roles = %v, want %v", got, tc.wantRoles)
				}
			}
			if rs.Active() != tc.wantActive {
				t.Fatalf("active = %s, want %s", rs.Active(), tc.wantActive)
			}
		})
	}
}

func TestRoleSetWithActive(t *testing.T) {
	rs := NewRoleSet([]Role{RoleApplicant, RoleExecutor}, RoleApplicant)

	switched := rs.WithActive(RoleExecutor)
	if switched.Active() != RoleExecutor {
		t.Fatalf("active = %s, want executor", switched.Active())
	}

	// Switching to a role outside the set is a no-op.
	ignored := rs.WithActive(RoleAdmin)
	if ignored.Active() != RoleApplicant {
		t.Fatalf("active = %s, want applicant", ignored.Active())
	}
}

func TestRoleSetJSONRoundTrip(t *testing.T) {
	rs := NewRoleSet([]Role{RoleApplicant, RoleManager}, RoleManager)
	data, err := json.Marshal(rs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored RoleSet
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored.Active() != RoleManager || !restored.Has(RoleApplicant) {
		t.Fatalf("round trip lost data: %+v", restored)
	}
}

func TestFieldCapable(t *testing.T) {
	if RoleApplicant.FieldCapable() {
		t.Fatal("applicant must not be field capable")
	}
	for _, r := range []Role{RoleExecutor, RoleManager, RoleAdmin} {
		if !r.FieldCapable() {
			t.Fatalf("%s must be field capable", r)
		}
	}
}
