package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"masjid/internal/ledger/memory"
)

func newTestService(t *testing.T, admins ...string) *Service {
	t.Helper()
	return NewService(memory.New(), NewTokenManager("test-secret", time.Hour), Config{
		CountryCode: "+91",
		AdminPhones: admins,
	})
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  bool
	}{
		{"9876543210", "+919876543210", false},
		{"+1 (555) 123-4567", "+15551234567", false},
		{" +91 98765 43210 ", "+919876543210", false},
		{"", "", true},
		{"12345", "", true},
		{"98765abc10", "", true},
		{"9+876543210", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in, "+91")
		if tc.err {
			if !errors.Is(err, ErrInvalidPhone) {
				t.Errorf("%q: expected ErrInvalidPhone, got %q %v", tc.in, got, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("%q: got %q err=%v, want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestRegisterCreatesUnapprovedAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	acc, err := s.Register(ctx, "Abdul", "9876543210", "secret1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if acc.Approved || acc.UID == "" || acc.PhoneNumber != "+919876543210" || acc.CreatedAt.IsZero() {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if acc.PasswordHash == "secret1" || !CheckPassword(acc.PasswordHash, "secret1") {
		t.Fatal("password not hashed")
	}

	if _, err := s.Register(ctx, "Other", "+919876543210", "secret2"); !errors.Is(err, ErrPhoneInUse) {
		t.Fatalf("expected ErrPhoneInUse, got %v", err)
	}
	if _, err := s.Register(ctx, "", "9876500000", "secret2"); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := s.Register(ctx, "X", "9876500000", "123"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestLoginGatedOnApproval(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	acc, err := s.Register(ctx, "Abdul", "9876543210", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Login(ctx, "9876543210", "wrong!!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := s.Login(ctx, "9999999999", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown phone: expected ErrInvalidCredentials, got %v", err)
	}
	if _, token, err := s.Login(ctx, "9876543210", "secret1"); !errors.Is(err, ErrPendingApproval) || token != "" {
		t.Fatalf("expected ErrPendingApproval without token, got %q %v", token, err)
	}

	if err := s.SetApproved(ctx, acc.UID, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, token, err := s.Login(ctx, "+91 98765 43210", "secret1")
	if err != nil || token == "" {
		t.Fatalf("login: token=%q err=%v", token, err)
	}
	if got.LastLogin.IsZero() {
		t.Fatal("lastLogin not set")
	}
	stored, _ := s.Account(ctx, acc.UID)
	if stored.LastLogin.IsZero() || stored.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not persisted: %+v", stored)
	}

	sess, err := s.Resume(ctx, token)
	if err != nil || sess.UID != acc.UID || sess.Admin {
		t.Fatalf("resume: %+v err=%v", sess, err)
	}

	// Revoking approval invalidates existing sessions on the next resume.
	if err := s.SetApproved(ctx, acc.UID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Resume(ctx, token); !errors.Is(err, ErrPendingApproval) {
		t.Fatalf("expected ErrPendingApproval after revoke, got %v", err)
	}
}

func TestAdminsApprovedOnRegistration(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "9000000001")

	acc, err := s.Register(ctx, "Sadar", "+919000000001", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if !acc.Approved {
		t.Fatal("admin should be approved")
	}
	_, token, err := s.Login(ctx, "9000000001", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	sess, err := s.Resume(ctx, token)
	if err != nil || !sess.Admin {
		t.Fatalf("expected admin session, got %+v err=%v", sess, err)
	}
}

func TestListAccountsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, phone := range []string{"9000000001", "9000000002", "9000000003"} {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		if _, err := s.Register(ctx, "User", phone, "secret1"); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.ListAccounts(ctx)
	if err != nil || len(list) != 3 {
		t.Fatalf("list: %d %v", len(list), err)
	}
	if list[0].PhoneNumber != "+919000000003" || list[2].PhoneNumber != "+919000000001" {
		t.Fatalf("order: %s, %s, %s", list[0].PhoneNumber, list[1].PhoneNumber, list[2].PhoneNumber)
	}
}

func TestSetApprovedUnknownAccount(t *testing.T) {
	s := newTestService(t)
	if err := s.SetApproved(context.Background(), "missing", true); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestTokenManager(t *testing.T) {
	m := NewTokenManager("k1", time.Minute)
	token, exp, err := m.Issue("uid-1", "+919876543210", "Abdul")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) > time.Minute {
		t.Fatalf("expiry too far: %v", exp)
	}
	sess, err := m.Parse(token)
	if err != nil || sess.UID != "uid-1" || sess.Phone != "+919876543210" {
		t.Fatalf("parse: %+v err=%v", sess, err)
	}

	if _, err := NewTokenManager("k2", time.Minute).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong key: expected ErrInvalidToken, got %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: expected ErrInvalidToken, got %v", err)
	}
	if _, err := m.Parse("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionContext(t *testing.T) {
	if _, ok := SessionFrom(context.Background()); ok {
		t.Fatal("empty context should have no session")
	}
	ctx := WithSession(context.Background(), Session{UID: "u"})
	if s, ok := SessionFrom(ctx); !ok || s.UID != "u" {
		t.Fatalf("got %+v %v", s, ok)
	}
}
