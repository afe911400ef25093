package api

import (
	"log/slog"
	"net/http"

	"github.com/acdb/stockroom/internal/command"
	"github.com/acdb/stockroom/internal/notify"
)

// CommandsHandler bridges chat commands onto the dispatcher.
type CommandsHandler struct {
	Dispatcher *command.Dispatcher
	Notifier   notify.Sender
}

type commandRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
	// ReceiveID, when set, also delivers the reply through the notifier.
	ReceiveID string `json:"receive_id" validate:"max=200"`
}

type commandResponse struct {
	Reply     string `json:"reply"`
	OK        bool   `json:"ok"`
	Delivered bool   `json:"delivered,omitempty"`
}

// Run handles POST /api/commands. A failed command is still a 200: the reply
// carries the message shown to the member.
func (h *CommandsHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := GetClaims(r.Context()).UserID()
	reply, err := h.Dispatcher.Dispatch(r.Context(), userID, req.Text)
	resp := commandResponse{Reply: reply, OK: err == nil}
	if err != nil && statusFor(err) >= http.StatusInternalServerError {
		slog.Error("command failed", "request_id", RequestID(r.Context()), "user_id", userID, "error", err)
	}

	if req.ReceiveID != "" && h.Notifier != nil {
		if err := h.Notifier.Send(r.Context(), req.ReceiveID, reply); err != nil {
			slog.Warn("delivering reply", "receive_id", req.ReceiveID, "error", err)
		} else {
			resp.Delivered = true
		}
	}

	jsonResponse(w, http.StatusOK, resp)
}
