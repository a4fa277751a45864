package auth

import "testing"

func TestLoginAndValidate(t *testing.T) {
	mgr := NewManager("test-secret", []User{{Username: "admin", Password: "pass", Role: "admin"}})

	token, err := mgr.Login("admin", "pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatal("expected signed token")
	}

	claims, err := mgr.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Username != "admin" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !mgr.IsAdmin(claims) {
		t.Fatal("expected admin claims")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	mgr := NewManager("test-secret", []User{{Username: "admin", Password: "pass", Role: "admin"}})

	if _, err := mgr.Login("admin", "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
	if _, err := mgr.Login("ghost", "pass"); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestValidateRejectsForeignToken(t *testing.T) {
	mgr := NewManager("test-secret", []User{{Username: "admin", Password: "pass", Role: "admin"}})
	other := NewManager("other-secret", []User{{Username: "admin", Password: "pass", Role: "admin"}})

	token, err := other.Login("admin", "pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := mgr.Validate(token); err == nil {
		t.Fatal("expected validation failure for token signed with another secret")
	}
}

func TestDisabledManager(t *testing.T) {
	mgr := NewManager("", nil)

	if mgr.Enabled() {
		t.Fatal("manager without secret should be disabled")
	}
	if _, err := mgr.Login("admin", "pass"); err == nil {
		t.Fatal("expected login to fail when disabled")
	}
}

func TestIsAdminRequiresAdminRole(t *testing.T) {
	mgr := NewManager("test-secret", []User{{Username: "viewer", Password: "pass", Role: "viewer"}})

	token, err := mgr.Login("viewer", "pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := mgr.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if mgr.IsAdmin(claims) {
		t.Fatal("viewer must not be admin")
	}
	if mgr.IsAdmin(nil) {
		t.Fatal("nil claims must not be admin")
	}
}
