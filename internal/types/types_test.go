package types

import "testing"

func TestValidApprovalPolicy(t *testing.T) {
	for _, p := range []string{"never", "on-request", "always"} {
		if !ValidApprovalPolicy(p) {
			t.Fatalf("policy %q should be valid", p)
		}
	}
	for _, p := range []string{"", "on-failure", "untrusted", "NEVER"} {
		if ValidApprovalPolicy(p) {
			t.Fatalf("policy %q should be rejected", p)
		}
	}
}

func TestValidModel(t *testing.T) {
	if !ValidModel(DefaultModel) {
		t.Fatal("default model must be in the available list")
	}
	if ValidModel("clippy-9000") {
		t.Fatal("unknown model should be rejected")
	}
}

func TestSessionArchived(t *testing.T) {
	s := &Session{State: SessionActive}
	if s.Archived() {
		t.Fatal("active session reported archived")
	}
	s.State = SessionArchived
	if !s.Archived() {
		t.Fatal("archived session not reported archived")
	}
}
