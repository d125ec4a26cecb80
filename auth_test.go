package main

import "testing"

func TestAuthRegisterLoginRoundTrip(t *testing.T) {
	db := openTestDB(t)
	auth := NewAuth(db)

	id, token, err := auth.Register("alice", "hunter2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id == 0 || token == "" {
		t.Fatalf("bad register result: id=%d token=%q", id, token)
	}

	gotID, username, err := auth.ValidateToken(token)
	if err != nil || gotID != id || username != "alice" {
		t.Errorf("validate: id=%d user=%q err=%v", gotID, username, err)
	}

	if _, _, err := auth.Register("alice", "hunter2"); err == nil {
		t.Error("duplicate username must fail")
	}
	if _, _, err := auth.Register("a", "hunter2"); err == nil {
		t.Error("too-short username must fail")
	}

	loginID, loginToken, err := auth.Login("alice", "hunter2", "1.2.3.4")
	if err != nil || loginID != id || loginToken == "" {
		t.Errorf("login: id=%d err=%v", loginID, err)
	}
	if _, _, err := auth.Login("alice", "wrong", "1.2.3.4"); err == nil {
		t.Error("wrong password must fail")
	}
	if _, _, err := auth.ValidateToken("not-a-token"); err == nil {
		t.Error("garbage token must fail")
	}
}

func TestAuthSecretPersistsAcrossRestart(t *testing.T) {
	db := openTestDB(t)
	auth1 := NewAuth(db)
	id, token, err := auth1.Register("alice", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	// A second Auth over the same DB must accept tokens from the first
	auth2 := NewAuth(db)
	gotID, _, err := auth2.ValidateToken(token)
	if err != nil || gotID != id {
		t.Errorf("token rejected after restart: id=%d err=%v", gotID, err)
	}
}

func TestAuthLoginRateLimit(t *testing.T) {
	db := openTestDB(t)
	auth := NewAuth(db)
	auth.Register("alice", "hunter2")

	for i := 0; i < maxLoginAttempts; i++ {
		auth.Login("alice", "wrong", "9.9.9.9")
	}
	if _, _, err := auth.Login("alice", "hunter2", "9.9.9.9"); err == nil {
		t.Error("expected rate limit after repeated failures")
	}
	if _, _, err := auth.Login("alice", "hunter2", "8.8.8.8"); err != nil {
		t.Errorf("other IPs must be unaffected: %v", err)
	}
}
