// Package auth registers operators, verifies their credentials and gates
// access on the account's approved flag.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"masjid/internal/core"
	"masjid/internal/ledger"
	"masjid/internal/log"
)

var (
	ErrInvalidCredentials = errors.New("invalid phone number or password")
	ErrPendingApproval    = errors.New("account pending approval")
	ErrPhoneInUse         = errors.New("phone number already registered")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrEmptyName          = errors.New("name is required")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidToken       = errors.New("invalid or expired session")
)

// Config holds the identity settings.
type Config struct {
	CountryCode string
	AdminPhones []string
}

// Service implements register, login, session resume and approval against
// the accounts collection of the store.
type Service struct {
	store       ledger.Store
	tokens      *TokenManager
	countryCode string
	admins      map[string]bool
	now         func() time.Time
}

func NewService(store ledger.Store, tokens *TokenManager, cfg Config) *Service {
	s := &Service{
		store:       store,
		tokens:      tokens,
		countryCode: cfg.CountryCode,
		admins:      map[string]bool{},
		now:         time.Now,
	}
	if s.countryCode == "" {
		s.countryCode = "+91"
	}
	for _, p := range cfg.AdminPhones {
		if phone, err := NormalizePhone(p, s.countryCode); err == nil {
			s.admins[phone] = true
		}
	}
	return s
}

// NormalizePhone applies the service's default country code.
func (s *Service) NormalizePhone(raw string) (string, error) {
	return NormalizePhone(raw, s.countryCode)
}

// IsAdmin reports whether phone belongs to a configured administrator.
func (s *Service) IsAdmin(phone string) bool {
	return s.admins[phone]
}

// Register creates an unapproved account. Administrators listed in the
// configuration are approved immediately so that someone can approve others.
func (s *Service) Register(ctx context.Context, name, phone, password string) (core.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Account{}, ErrEmptyName
	}
	phone, err := s.NormalizePhone(phone)
	if err != nil {
		return core.Account{}, err
	}
	if len(password) < minPasswordLength {
		return core.Account{}, ErrWeakPassword
	}

	if _, err := s.FindByPhone(ctx, phone); err == nil {
		return core.Account{}, ErrPhoneInUse
	} else if !errors.Is(err, ErrAccountNotFound) {
		return core.Account{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return core.Account{}, fmt.Errorf("hash password: %w", err)
	}
	acc := core.Account{
		UID:          uuid.NewString(),
		Name:         name,
		PhoneNumber:  phone,
		Approved:     s.IsAdmin(phone),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Set(ctx, ledger.AccountPath(acc.UID), acc); err != nil {
		return core.Account{}, fmt.Errorf("register: %w: %w", ledger.ErrStore, err)
	}

	slog.InfoContext(ctx, "Account registered",
		log.FieldComponent, log.ComponentAuth,
		log.FieldOperation, log.OpRegister,
		log.FieldUID, acc.UID,
		"approved", acc.Approved)
	return acc, nil
}

// Login verifies the credentials. For an unapproved account it returns the
// account together with ErrPendingApproval and no token.
func (s *Service) Login(ctx context.Context, phone, password string) (core.Account, string, error) {
	phone, err := s.NormalizePhone(phone)
	if err != nil {
		return core.Account{}, "", ErrInvalidCredentials
	}
	acc, err := s.FindByPhone(ctx, phone)
	if errors.Is(err, ErrAccountNotFound) {
		return core.Account{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return core.Account{}, "", err
	}
	if !CheckPassword(acc.PasswordHash, password) {
		slog.WarnContext(ctx, "Login rejected",
			log.FieldComponent, log.ComponentAuth,
			log.FieldOperation, log.OpLogin,
			log.FieldUID, acc.UID)
		return core.Account{}, "", ErrInvalidCredentials
	}
	if !acc.Approved {
		return acc, "", ErrPendingApproval
	}

	now := s.now().UTC()
	if err := s.store.Update(ctx, map[string]any{
		ledger.JoinPath(ledger.AccountPath(acc.UID), "lastLogin"): now,
	}); err != nil {
		return core.Account{}, "", fmt.Errorf("login: %w: %w", ledger.ErrStore, err)
	}
	acc.LastLogin = now

	token, _, err := s.tokens.Issue(acc.UID, acc.PhoneNumber, acc.Name)
	if err != nil {
		return core.Account{}, "", fmt.Errorf("issue token: %w", err)
	}

	slog.InfoContext(ctx, "Login succeeded",
		log.FieldComponent, log.ComponentAuth,
		log.FieldOperation, log.OpLogin,
		log.FieldUID, acc.UID)
	return acc, token, nil
}

// Resume turns a session token back into a session. The account is re-read
// so that a revoked approval takes effect on the next request.
func (s *Service) Resume(ctx context.Context, token string) (Session, error) {
	sess, err := s.tokens.Parse(token)
	if err != nil {
		return Session{}, err
	}
	acc, err := s.Account(ctx, sess.UID)
	if errors.Is(err, ErrAccountNotFound) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	if !acc.Approved {
		return Session{}, ErrPendingApproval
	}
	sess.Name = acc.Name
	sess.Phone = acc.PhoneNumber
	sess.Admin = s.IsAdmin(acc.PhoneNumber)
	return sess, nil
}

// Account loads one account by uid.
func (s *Service) Account(ctx context.Context, uid string) (core.Account, error) {
	if !ledger.ValidSegment(uid) {
		return core.Account{}, ErrAccountNotFound
	}
	raw, ok, err := s.store.Get(ctx, ledger.AccountPath(uid))
	if err != nil {
		return core.Account{}, fmt.Errorf("load account: %w: %w", ledger.ErrStore, err)
	}
	if !ok {
		return core.Account{}, ErrAccountNotFound
	}
	var acc core.Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return core.Account{}, fmt.Errorf("decode account %s: %w", uid, err)
	}
	if acc.UID == "" {
		acc.UID = uid
	}
	return acc, nil
}

// FindByPhone returns the account registered with the normalized phone.
func (s *Service) FindByPhone(ctx context.Context, phone string) (core.Account, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return core.Account{}, err
	}
	for _, a := range accounts {
		if a.PhoneNumber == phone {
			return a, nil
		}
	}
	return core.Account{}, ErrAccountNotFound
}

// ListAccounts returns every account, newest first. Records that cannot be
// decoded are skipped.
func (s *Service) ListAccounts(ctx context.Context) ([]core.Account, error) {
	raw, ok, err := s.store.Get(ctx, ledger.RootAccounts)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w: %w", ledger.ErrStore, err)
	}
	if !ok {
		return nil, nil
	}
	var records map[string]json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, nil
	}
	out := make([]core.Account, 0, len(records))
	for uid, r := range records {
		var acc core.Account
		if err := json.Unmarshal(r, &acc); err != nil {
			continue
		}
		if acc.UID == "" {
			acc.UID = uid
		}
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].UID < out[j].UID
	})
	return out, nil
}

// SetApproved flips the approved flag and stamps updatedAt.
func (s *Service) SetApproved(ctx context.Context, uid string, approved bool) error {
	if _, err := s.Account(ctx, uid); err != nil {
		return err
	}
	base := ledger.AccountPath(uid)
	if err := s.store.Update(ctx, map[string]any{
		ledger.JoinPath(base, "approved"):  approved,
		ledger.JoinPath(base, "updatedAt"): s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("set approved: %w: %w", ledger.ErrStore, err)
	}

	slog.InfoContext(ctx, "Account approval changed",
		log.FieldComponent, log.ComponentAuth,
		log.FieldOperation, log.OpApprove,
		log.FieldUID, uid,
		"approved", approved)
	return nil
}
