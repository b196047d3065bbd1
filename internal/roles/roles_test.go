package roles

import "testing"

func TestOfDefaultsToInvestor(t *testing.T) {
	cases := []map[string]string{
		nil,
		{},
		{"role": ""},
		{"role": "owner"},
		{"role": "superadmin"},
		{"full_name": "Ada"},
	}
	for _, metadata := range cases {
		if got := Of(metadata); got != Investor {
			t.Fatalf("Of(%v)=%q, want investor", metadata, got)
		}
	}
}

func TestOfKnownRoles(t *testing.T) {
	cases := map[string]Role{
		"investor":      Investor,
		"admin":         Admin,
		"super_admin":   SuperAdmin,
		" ADMIN ":       Admin,
		"Super_Admin":   SuperAdmin,
		"\tinvestor\n": Investor,
	}
	for raw, want := range cases {
		if got := Of(map[string]string{"role": raw}); got != want {
			t.Fatalf("Of(role=%q)=%q, want %q", raw, got, want)
		}
	}
}

func TestPredicates(t *testing.T) {
	if Investor.IsAdmin() {
		t.Fatal("investor must not be admin")
	}
	if !Admin.IsAdmin() || Admin.IsSuperAdmin() {
		t.Fatalf("admin predicates wrong: IsAdmin=%v IsSuperAdmin=%v", Admin.IsAdmin(), Admin.IsSuperAdmin())
	}
	if !SuperAdmin.IsAdmin() || !SuperAdmin.IsSuperAdmin() {
		t.Fatal("super_admin must satisfy both predicates")
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	if _, ok := Parse("root"); ok {
		t.Fatal("expected parse failure for unknown role")
	}
	if r, ok := Parse("admin"); !ok || r != Admin {
		t.Fatalf("Parse(admin)=%q,%v", r, ok)
	}
}
