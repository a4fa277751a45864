// Package httpapi exposes the staking engine's REST surface.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	app "github.com/refit-labs/staking-engine/internal/app"
	"github.com/refit-labs/staking-engine/internal/app/auth"
	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/domain/withdrawal"
	"github.com/refit-labs/staking-engine/internal/app/metrics"
	svcerrors "github.com/refit-labs/staking-engine/internal/errors"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	auth  *auth.Manager
	audit *AuditLog
}

// NewHandler returns a mux exposing the staking REST API.
func NewHandler(application *app.Application, authMgr *auth.Manager, auditBuf *AuditLog) http.Handler {
	h := &handler{app: application, auth: authMgr, audit: auditBuf}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", h.healthz)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/auth/login", h.login)

	mux.HandleFunc("/stakes", h.stakes)
	mux.HandleFunc("/pool/stats", h.poolStats)
	mux.HandleFunc("/pool/deposits", h.poolDeposits)
	mux.HandleFunc("/withdraw", h.withdraw)
	mux.HandleFunc("/withdrawals", h.withdrawals)

	mux.HandleFunc("/admin/pool/deposits", h.adminDeposits)
	mux.HandleFunc("/admin/withdrawals", h.adminWithdrawals)
	mux.HandleFunc("/admin/withdrawals/", h.adminSettle)
	mux.HandleFunc("/admin/audit", h.adminAudit)

	mux.HandleFunc("/cron/accrue-yield", h.cronAccrueYield)
	mux.HandleFunc("/cron/snapshot-treasury", h.cronSnapshotTreasury)

	return mux
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.auth.Login(payload.Username, payload.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *handler) stakes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			WalletAddress string          `json:"wallet_address"`
			Amount        decimal.Decimal `json:"amount"`
			TxSignature   string          `json:"tx_signature"`
			Tier          string          `json:"tier"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		dep, stk, err := h.app.Pool.RecordDeposit(r.Context(), payload.WalletAddress, payload.TxSignature, payload.Amount, stake.Tier(payload.Tier))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		metrics.RecordDeposit()
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"deposit": dep,
			"stake":   stk,
		})

	case http.MethodGet:
		wallet := r.URL.Query().Get("wallet")
		views, summary, err := h.app.Stakes.ListStakesForWallet(r.Context(), wallet)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"stakes":  views,
			"summary": summary,
		})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) poolStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	summary, err := h.app.Pool.GetPoolSummary(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) poolDeposits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	deposits, err := h.app.Pool.GetWalletDeposits(r.Context(), r.URL.Query().Get("wallet"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deposits)
}

func (h *handler) withdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		StakeID       string          `json:"stake_id"`
		WalletAddress string          `json:"wallet_address"`
		Amount        decimal.Decimal `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.app.Withdrawals.RequestWithdrawal(r.Context(), payload.StakeID, payload.WalletAddress, payload.Amount)
	if err != nil {
		metrics.RecordWithdrawalRequest("rejected")
		writeServiceError(w, err)
		return
	}
	metrics.RecordWithdrawalRequest("accepted")
	writeJSON(w, http.StatusCreated, result)
}

func (h *handler) withdrawals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requests, err := h.app.Withdrawals.ListForWallet(r.Context(), r.URL.Query().Get("wallet"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *handler) adminDeposits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	deposits, err := h.app.Pool.ListActiveDeposits(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	summary, err := h.app.Pool.GetPoolSummary(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deposits": deposits,
		"stats":    summary,
	})
}

func (h *handler) adminWithdrawals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := withdrawal.Status(r.URL.Query().Get("status"))
	requests, err := h.app.Withdrawals.ListByStatus(r.Context(), status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *handler) adminSettle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin/withdrawals"), "/")
	if requestID == "" || strings.Contains(requestID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload struct {
		Action      string `json:"action"`
		TxSignature string `json:"tx_signature"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	settled, err := h.app.Withdrawals.Settle(r.Context(), requestID, payload.Action, payload.TxSignature)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settled)
}

func (h *handler) adminAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, svcerrors.Validation("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	actions, err := h.app.Actions.ListAdminActions(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	data := map[string]interface{}{"actions": actions}
	if h.audit != nil {
		data["requests"] = h.audit.listLimit(limit)
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) cronAccrueYield(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	credited, err := h.app.Accrual.Run(r.Context())
	metrics.RecordAccrualRun(credited, time.Since(start), err)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"credited": credited})
}

func (h *handler) cronSnapshotTreasury(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap, err := h.app.Treasury.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// response is the common envelope; every endpoint reports success explicitly.
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Success: false, Error: err.Error()})
}

// writeServiceError maps a service error onto its HTTP status. Only the
// caller-facing message goes on the wire; wrapped causes stay in the logs.
func writeServiceError(w http.ResponseWriter, err error) {
	if se := svcerrors.GetServiceError(err); se != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(se.HTTPStatus)
		_ = json.NewEncoder(w).Encode(response{Success: false, Error: se.Message})
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}
