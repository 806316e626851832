package http

import (
	"net/http"

	"masjid/internal/auth"
	"masjid/internal/core"
	"masjid/internal/log"
)

type adminPage struct {
	pageData
	Accounts []adminAccount
	Pending  int
}

type adminAccount struct {
	core.Account
	Admin bool
	Self  bool
}

func (s *Server) adminAccounts(r *http.Request) ([]adminAccount, int, error) {
	ctx, cancel := storeContext(r)
	defer cancel()
	accounts, err := s.auth.ListAccounts(ctx)
	if err != nil {
		return nil, 0, err
	}
	sess, _ := auth.SessionFrom(r.Context())
	out := make([]adminAccount, 0, len(accounts))
	pending := 0
	for _, a := range accounts {
		if !a.Approved {
			pending++
		}
		out = append(out, adminAccount{
			Account: a,
			Admin:   s.auth.IsAdmin(a.PhoneNumber),
			Self:    a.UID == sess.UID,
		})
	}
	return out, pending, nil
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	accounts, pending, err := s.adminAccounts(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "admin.html", adminPage{
		pageData: s.page(r, "Accounts"),
		Accounts: accounts,
		Pending:  pending,
	})
}

// handleSetApproval approves or revokes the account in the {uid} segment.
func (s *Server) handleSetApproval(approved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := r.PathValue("uid")
		sess, _ := auth.SessionFrom(r.Context())
		if !approved && uid == sess.UID {
			s.respondStatus(w, r, http.StatusUnprocessableEntity, "You cannot revoke your own access")
			return
		}

		ctx, cancel := storeContext(r)
		defer cancel()
		if err := s.auth.SetApproved(ctx, uid, approved); err != nil {
			s.respondError(w, r, err)
			return
		}
		s.logger.InfoContext(r.Context(), "Account approval changed by admin",
			log.FieldOperation, log.OpApprove,
			log.FieldUID, uid,
			"by", sess.UID,
			"approved", approved)

		msg := "Account revoked"
		if approved {
			msg = "Account approved"
		}
		switch {
		case isHTMX(r):
			accounts, pending, err := s.adminAccounts(r)
			if err != nil {
				s.respondError(w, r, err)
				return
			}
			resp := NewHTMXResponse().TriggerSuccessNotification(msg)
			s.renderFragment(w, r, resp, "accounts", adminPage{Accounts: accounts, Pending: pending})
		case wantsJSON(r):
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "uid": uid, "approved": approved})
		default:
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
		}
	}
}
