package httptransport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/auth/store"
	"gatehouse/internal/authz"
	"gatehouse/internal/transport/http/json"
	"gatehouse/internal/transport/http/shared"
	dErrors "gatehouse/pkg/domain-errors"
)

// AccountReader is the read-only store slice the account handlers need.
type AccountReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

type AccountHandler struct {
	accounts AccountReader
}

func NewAccountHandler(accounts AccountReader) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// MeResponse combines the account's public fields with the session's derived
// observability timestamps.
type MeResponse struct {
	Account        models.PublicAccount `json:"account"`
	SessionExpires time.Time            `json:"session_expires"`
	LastRefreshed  time.Time            `json:"last_refreshed"`
}

// handleMe returns the caller's own account. A rotated token, when the
// validation middleware refreshed one, rides along in X-Refreshed-Token.
func (h *AccountHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := authz.SessionFromContext(r.Context())
	if d := authz.RequireAuth(sess); !d.Allowed {
		shared.WriteError(w, r, d.Err())
		return
	}

	account, err := h.findAccount(r.Context(), sess.SubjectID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, MeResponse{
		Account:        account.Public(),
		SessionExpires: sess.SessionExpires,
		LastRefreshed:  sess.LastRefreshed,
	})
}

// handleGetAccount serves both the owner-or-admin and the admin routes; the
// route middleware has already decided access.
func (h *AccountHandler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "invalid account id"))
		return
	}

	account, err := h.findAccount(r.Context(), id)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, account.Public())
}

func (h *AccountHandler) findAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := h.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeServiceUnavailable, "account lookup failed")
	}
	return account, nil
}
