package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/auth/store"
	ratelimitmodels "gatehouse/internal/ratelimit/models"
	"gatehouse/internal/transport/http/json"
	"gatehouse/internal/transport/http/shared"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/validation"
)

// AuthService is the credential verification slice the handlers need.
type AuthService interface {
	Authenticate(ctx context.Context, email, password string) (*models.Account, error)
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

// SessionIssuer signs tokens for authenticated accounts.
type SessionIssuer interface {
	Issue(ctx context.Context, account *models.Account) (string, error)
}

// OffenderChecker flags accounts with recent failure streaks.
type OffenderChecker interface {
	IsRepeatOffender(ctx context.Context, account *models.Account) bool
}

// OffenderLimiter is the sub-window limiter layered on flagged accounts.
type OffenderLimiter interface {
	CheckOffender(ctx context.Context, accountID string) (*ratelimitmodels.Result, error)
}

// AuthHandler is the thin HTTP layer over the auth services. It delegates to
// domain services without embedding business logic so transport concerns
// remain isolated.
type AuthHandler struct {
	auth     AuthService
	sessions SessionIssuer
	guard    OffenderChecker
	limiter  OffenderLimiter
	logger   *slog.Logger
}

func NewAuthHandler(auth AuthService, sessions SessionIssuer, guard OffenderChecker, limiter OffenderLimiter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		guard:    guard,
		limiter:  limiter,
		logger:   logger,
	}
}

// handleLogin authenticates an email/password pair and issues a session
// token. Accounts with a recent failure streak pass through an extra
// one-per-five-minutes limiter before credentials are even checked; this
// deliberately stacks on the login tier already applied by the router.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if denied := h.checkOffenderLimit(r.Context(), req.Email); denied != nil {
		writeRateLimitHeaders(w, denied)
		writeRateLimited(w, denied)
		return
	}

	account, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}

	token, err := h.sessions.Issue(r.Context(), account)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusOK, models.LoginResponse{
		Token:   token,
		Account: account.Public(),
	})
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := validation.Validate(&req); err != nil {
		shared.WriteError(w, r, err)
		return
	}

	account, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}

	json.WriteJSON(w, http.StatusCreated, models.RegisterResponse{
		Account: account.Public(),
	})
}

// handlePasswordReset accepts a reset request and always acknowledges it,
// whether or not the email exists. Actual reset delivery is owned by an
// external notifier; this endpoint only records the intent.
func (h *AuthHandler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetRequest
	if err := json.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := validation.Validate(&req); err != nil {
		shared.WriteError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "password_reset_requested",
		"event", "password_reset_requested",
		"request_id", requestcontext.RequestID(r.Context()),
		"log_type", "audit",
	)

	json.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
	})
}

// checkOffenderLimit resolves the target account and, when it carries a
// recent failure streak, applies the sub-window limiter. Unknown emails and
// limiter failures let the request through; the credential check decides
// their fate.
func (h *AuthHandler) checkOffenderLimit(ctx context.Context, email string) *ratelimitmodels.Result {
	if email == "" {
		return nil
	}
	account, err := h.auth.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.WarnContext(ctx, "offender lookup failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil
	}
	if !h.guard.IsRepeatOffender(ctx, account) {
		return nil
	}

	result, err := h.limiter.CheckOffender(ctx, account.ID.String())
	if err != nil {
		h.logger.ErrorContext(ctx, "offender limit check failed, failing open",
			"error", err,
			"account_id", account.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil
	}
	if result.Allowed {
		return nil
	}
	return result
}
