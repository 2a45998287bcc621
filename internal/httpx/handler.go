package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jcmexdev/phonecall-sagas/internal/orchestrator"
	"github.com/jcmexdev/phonecall-sagas/internal/phonecall"
	"github.com/jcmexdev/phonecall-sagas/internal/statemachine"
)

// Handler translates HTTP requests into saga operations. It holds no saga
// state of its own; every request resolves its instance through the
// orchestrator.
type Handler struct {
	svc *orchestrator.Service
}

func NewHandler(svc *orchestrator.Service) *Handler {
	return &Handler{svc: svc}
}

// StartPhoneCall creates a saga and dials the receiver.
func (h *Handler) StartPhoneCall(w http.ResponseWriter, r *http.Request) {
	var req StartPhoneCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.CallerNumber == "" || req.ReceiverNumber == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "caller_number and receiver_number are required")
		return
	}

	slog.InfoContext(r.Context(), "starting phone call", "caller", req.CallerNumber)

	saga, err := h.svc.StartCall(r.Context(), phonecall.StartCallParams{
		CallerName:     req.CallerName,
		CallerNumber:   req.CallerNumber,
		ReceiverName:   req.ReceiverName,
		ReceiverNumber: req.ReceiverNumber,
	})
	if err != nil {
		writeSagaError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SagaResponse{
		ID:    saga.ID().String(),
		State: string(saga.State()),
	})
}

// GetPhoneCall returns the persisted transaction and model for a saga.
func (h *Handler) GetPhoneCall(w http.ResponseWriter, r *http.Request) {
	id, ok := sagaID(w, r)
	if !ok {
		return
	}

	tx, model, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeSagaError(w, err)
		return
	}

	resp := PhoneCallResponse{
		ID:             tx.ID.String(),
		State:          string(tx.State),
		CallerName:     model.CallerName,
		CallerNumber:   model.CallerNumber,
		ReceiverName:   model.ReceiverName,
		ReceiverNumber: model.ReceiverNumber,
		CallDurationMS: model.CallDuration.Milliseconds(),
		IsMissedCall:   model.IsMissedCall,
		Muted:          model.Muted,
		Volume:         model.Volume,
	}
	if !model.CallStartedAt.IsZero() {
		resp.CallStartedAt = model.CallStartedAt.Format(httpTimeLayout)
	}
	writeJSON(w, http.StatusOK, resp)
}

// FireTrigger is the generic trigger surface: any trigger of the closed set,
// with its optional parameter, fired on an existing saga.
func (h *Handler) FireTrigger(w http.ResponseWriter, r *http.Request) {
	id, ok := sagaID(w, r)
	if !ok {
		return
	}

	var req FireTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	trigger, err := phonecall.ParseTrigger(req.Trigger)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_trigger", err.Error())
		return
	}
	args, err := triggerArgs(trigger, req.Parameter)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	state, err := h.svc.FireTrigger(r.Context(), id, trigger, args...)
	if err != nil {
		writeSagaError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SagaResponse{ID: id.String(), State: string(state)})
}

// TerminatePhoneCall hurls the phone against the wall.
func (h *Handler) TerminatePhoneCall(w http.ResponseWriter, r *http.Request) {
	id, ok := sagaID(w, r)
	if !ok {
		return
	}

	state, err := h.svc.Terminate(r.Context(), id)
	if err != nil {
		writeSagaError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SagaResponse{ID: id.String(), State: string(state)})
}

const httpTimeLayout = "2006-01-02T15:04:05.999999999Z07:00"

func sagaID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return uuid.UUID{}, false
	}
	return id, true
}

// triggerArgs validates and converts the transport-level parameter into the
// typed argument the trigger was declared with. JSON numbers arrive as
// float64; setVolume requires an integral value.
func triggerArgs(trigger phonecall.Trigger, param any) ([]any, error) {
	switch trigger {
	case phonecall.TriggerDial:
		s, ok := param.(string)
		if !ok || s == "" {
			return nil, errors.New("dial requires a string parameter (receiver number)")
		}
		return []any{s}, nil
	case phonecall.TriggerSetVolume:
		f, ok := param.(float64)
		if !ok || f != math.Trunc(f) {
			return nil, errors.New("setVolume requires an integer parameter")
		}
		return []any{int(f)}, nil
	default:
		if param != nil {
			return nil, errors.New("trigger takes no parameter")
		}
		return nil, nil
	}
}

// writeSagaError maps saga errors onto transport responses: rejected
// triggers are conflicts, unknown identifiers are not-found, everything else
// (storage faults included) is a server error.
func writeSagaError(w http.ResponseWriter, err error) {
	var unpermitted *statemachine.UnpermittedTriggerError
	var config *statemachine.ConfigurationError
	switch {
	case errors.Is(err, phonecall.ErrNotFound):
		writeError(w, http.StatusNotFound, "saga_not_found", err.Error())
	case errors.As(err, &unpermitted):
		writeError(w, http.StatusConflict, "trigger_not_permitted", err.Error())
	case errors.As(err, &config):
		writeError(w, http.StatusInternalServerError, "configuration_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
