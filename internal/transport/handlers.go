package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/motorent/rentord/internal/eventbus"
	"github.com/motorent/rentord/internal/handlers"
	"github.com/motorent/rentord/internal/orchestration"
	"github.com/motorent/rentord/model"
)

// API bundles the dependencies of the HTTP handlers.
type API struct {
	Contracts     *orchestration.ContractOrchestrator
	Invoices      *orchestration.InvoiceOrchestrator
	Bus           *eventbus.EnhancedBus
	Analytics     *handlers.AnalyticsHandler
	Notifications *handlers.NotificationHandler

	// Idempotency is optional; a nil store disables request deduplication.
	Idempotency    orchestration.IdempotencyStore
	IdempotencyTTL time.Duration

	Logger *zap.Logger
}

// runIdempotent executes fn under the Idempotency-Key header, replaying a
// cached result when the same key and body arrive again.
func (a *API) runIdempotent(w http.ResponseWriter, r *http.Request, operation string, input any, fn func() model.OrchestrationResult) {
	key := r.Header.Get("Idempotency-Key")
	if a.Idempotency == nil || key == "" {
		WriteResult(w, fn())
		return
	}

	storeKey := orchestration.FormatIdempotencyKey(operation, key)
	hash := orchestration.HashInput(input)

	cached, found, err := a.Idempotency.Check(r.Context(), storeKey, hash)
	if err != nil {
		WriteError(w, err)
		return
	}
	if found {
		w.Header().Set("X-Idempotent-Replay", "true")
		WriteResult(w, *cached)
		return
	}

	result := fn()
	if err := a.Idempotency.Store(r.Context(), storeKey, hash, result, a.IdempotencyTTL); err != nil && a.Logger != nil {
		// The orchestration already ran; losing the cache entry only costs
		// replay protection for this key.
		a.Logger.Warn("idempotency store failed", zap.String("key", storeKey), zap.Error(err))
	}
	WriteResult(w, result)
}

// HandleActivateContract handles POST /api/contracts/{id}/activate.
func (a *API) HandleActivateContract() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.ActivateContractRequest
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		req.ContractID = chi.URLParam(r, "id")

		a.runIdempotent(w, r, "activate_contract", req, func() model.OrchestrationResult {
			return a.Contracts.Activate(r.Context(), req)
		})
	}
}

// HandleCompleteContract handles POST /api/contracts/{id}/complete.
func (a *API) HandleCompleteContract() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.CompleteContractRequest
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		req.ContractID = chi.URLParam(r, "id")
		if req.ActualEndDate.IsZero() {
			req.ActualEndDate = time.Now().UTC()
		}

		a.runIdempotent(w, r, "complete_contract", req, func() model.OrchestrationResult {
			return a.Contracts.Complete(r.Context(), req)
		})
	}
}

// HandleCancelContract handles POST /api/contracts/{id}/cancel.
func (a *API) HandleCancelContract() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.CancelContractRequest
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		req.ContractID = chi.URLParam(r, "id")
		if req.Reason == "" {
			WriteError(w, model.NewBadRequestError("cancellation reason is required"))
			return
		}

		a.runIdempotent(w, r, "cancel_contract", req, func() model.OrchestrationResult {
			return a.Contracts.Cancel(r.Context(), req)
		})
	}
}

// HandleProcessPayment handles POST /api/invoices/payments.
func (a *API) HandleProcessPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.ProcessPaymentRequest
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		if req.InvoiceID == "" {
			WriteError(w, model.NewBadRequestError("invoice_id is required"))
			return
		}

		a.runIdempotent(w, r, "process_payment", req, func() model.OrchestrationResult {
			return a.Invoices.ProcessPayment(r.Context(), req)
		})
	}
}

// HandleInvoiceWithCharges handles POST /api/invoices/with-charges.
func (a *API) HandleInvoiceWithCharges() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.InvoiceWithChargesRequest
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		if req.ContractID == "" {
			WriteError(w, model.NewBadRequestError("contract_id is required"))
			return
		}

		a.runIdempotent(w, r, "invoice_with_charges", req, func() model.OrchestrationResult {
			return a.Invoices.CreateWithAdditionalCharges(r.Context(), req)
		})
	}
}

// HandleEventHistory handles GET /api/events/history.
func (a *API) HandleEventHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		limit := 0
		if raw := query.Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				WriteError(w, model.NewBadRequestError("limit must be a non-negative integer"))
				return
			}
			limit = parsed
		}

		filter := &eventbus.HistoryFilter{
			Type:     query.Get("type"),
			Source:   query.Get("source"),
			Category: query.Get("category"),
		}

		events := a.Bus.History(filter, limit)
		WriteJSON(w, http.StatusOK, map[string]any{
			"events": events,
			"count":  len(events),
		})
	}
}

// HandleKPIs handles GET /api/analytics/kpis.
func (a *API) HandleKPIs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"kpis":    a.Analytics.KPIs(),
			"samples": a.Analytics.SampleCount(),
		})
	}
}

// HandlePendingNotifications handles GET /api/notifications/pending.
func (a *API) HandlePendingNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending := a.Notifications.Pending(r.URL.Query().Get("audience"))
		WriteJSON(w, http.StatusOK, map[string]any{
			"notifications": pending,
			"count":         len(pending),
		})
	}
}
