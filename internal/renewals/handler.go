package renewals

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ss-insurance/insurance-manager/internal/platform/httpx"
	"github.com/ss-insurance/insurance-manager/internal/policies"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// CheckLockTTL bounds one renewal run; the lock expires on its own if the
// holder dies.
const CheckLockTTL = 10 * time.Minute

// CheckLockKey is the lock shared by the scheduled job and the HTTP trigger.
var CheckLockKey = shared.JobLockKey("renewals:check")

// Locker hands out exclusive, expiring locks.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Checker is the part of Service the HTTP trigger needs.
type Checker interface {
	Check(ctx context.Context, now time.Time) (Result, error)
	Preview(ctx context.Context, now time.Time) ([]policies.Policy, error)
}

// Handler exposes the service-token protected trigger and preview.
type Handler struct {
	checker  Checker
	verifier *TokenVerifier
	logger   *slog.Logger
	clock    func() time.Time
	// Locker is optional; when set, a trigger that overlaps a running check
	// is refused.
	Locker Locker
}

// NewHandler constructs a Handler.
func NewHandler(checker Checker, verifier *TokenVerifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{checker: checker, verifier: verifier, logger: logger, clock: time.Now}
}

// MountRoutes registers routes under /internal/renewals.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(httpx.CORS(http.MethodGet, http.MethodPost))
	r.With(h.requireServiceToken).Post("/check", h.check)
	r.With(h.requireServiceToken).Get("/preview", h.preview)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	if h.Locker != nil {
		release, err := h.Locker.Acquire(r.Context(), CheckLockKey, CheckLockTTL)
		if errors.Is(err, shared.ErrLockHeld) {
			httpx.Error(w, http.StatusConflict, "Renewal check already running")
			return
		}
		if err != nil {
			h.logger.Error("acquire renewal lock", slog.Any("error", err))
			httpx.Error(w, http.StatusServiceUnavailable, "Renewal check unavailable")
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(r.Context())); err != nil {
				h.logger.Warn("release renewal lock", slog.Any("error", err))
			}
		}()
	}
	result, err := h.checker.Check(r.Context(), h.clock())
	if err != nil {
		h.logger.Error("renewal check", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Message{Message: result.Message()})
}

type previewClient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type previewPolicy struct {
	ID       string        `json:"id"`
	PlanName string        `json:"plan_name"`
	PolicyNo string        `json:"policy_no"`
	DueDate  string        `json:"due_date"`
	Client   previewClient `json:"clients"`
}

type previewResponse struct {
	Success  bool            `json:"success"`
	Count    int             `json:"count"`
	Policies []previewPolicy `json:"policies"`
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	due, err := h.checker.Preview(r.Context(), h.clock())
	if err != nil {
		h.logger.Error("renewal preview", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "Failed to check renewals")
		return
	}
	out := make([]previewPolicy, 0, len(due))
	for _, p := range due {
		out = append(out, previewPolicy{
			ID:       p.ID,
			PlanName: p.PlanName,
			PolicyNo: p.PolicyNo,
			DueDate:  p.DueDateString(),
			Client:   previewClient{Name: p.ClientName, Phone: p.ClientPhone, Email: p.ClientEmail},
		})
	}
	httpx.JSON(w, http.StatusOK, previewResponse{Success: true, Count: len(out), Policies: out})
}

func (h *Handler) requireServiceToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.verifier.Verify(httpx.BearerToken(r)); err != nil {
			h.logger.Warn("renewal trigger rejected", slog.String("remote", r.RemoteAddr))
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
