package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ledgerline/installment-service/internal/service"
)

// CreatePlan handles plan creation with schedule generation.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var input service.PlanInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	plan, err := h.svc.CreatePlan(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, plan)
}

// GetPlan returns a plan with its schedule.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid plan id", http.StatusBadRequest)
		return
	}

	plan, err := h.svc.GetPlan(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// RecalculatePlan rederives the outstanding balance from the schedule and
// repairs the cached figure when it drifted.
func (h *Handler) RecalculatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid plan id", http.StatusBadRequest)
		return
	}

	plan, repaired, err := h.svc.RecalculatePlan(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"plan": plan, "repaired": repaired})
}

// CreatePayment records a payment against a plan.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	planID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid plan id", http.StatusBadRequest)
		return
	}

	var input service.PaymentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	input.PlanID = planID
	if input.RecordedBy == 0 {
		input.RecordedBy = callerID(r)
	}
	if input.ReceivedBy == 0 {
		input.ReceivedBy = input.RecordedBy
	}

	payment, duplicate, err := h.svc.CreatePayment(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	if duplicate {
		respondJSON(w, http.StatusOK, map[string]any{"payment": payment, "duplicate": true})
		return
	}
	respondJSON(w, http.StatusCreated, payment)
}

// GetPayment returns a payment record.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.svc.GetPayment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

// UpdatePayment replaces a payment's effect with new terms.
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var input service.PaymentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payment, err := h.svc.UpdatePayment(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

// DeletePayment reverses a payment and removes its record.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePayment(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateTransfer moves cash between staff balances.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var input service.TransferInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.FromUser == 0 {
		input.FromUser = callerID(r)
	}

	transfer, err := h.svc.CreateTransfer(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transfer)
}

// DeleteTransfer reverses a transfer and removes its record.
func (h *Handler) DeleteTransfer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTransfer(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateExpense records cash spent out of a staff balance.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var input service.ExpenseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.UserID == 0 {
		input.UserID = callerID(r)
	}

	expense, err := h.svc.CreateExpense(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, expense)
}

// DeleteExpense refunds an expense and removes its record.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteExpense(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
