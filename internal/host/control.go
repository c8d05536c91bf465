package host

import (
	"encoding/json"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/console-bridge/pkg/commsutil"
	"github.com/morezero/console-bridge/pkg/session"
)

const controlLogPrefix = "host:control"

// controlRequest asks the host to open or close a panel session.
type controlRequest struct {
	Action    string            `json:"action"`
	PanelType string            `json:"panelType,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Mode      string            `json:"mode,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

// controlResponse tells the UI which subjects its session lives on.
type controlResponse struct {
	OK              bool   `json:"ok"`
	SessionID       string `json:"sessionId,omitempty"`
	Created         bool   `json:"created,omitempty"`
	RequestSubject  string `json:"requestSubject,omitempty"`
	ResponseSubject string `json:"responseSubject,omitempty"`
	Error           string `json:"error,omitempty"`
}

// handleControl serves panel open/close requests on the control subject.
func (h *Host) handleControl(msg *comms.Msg) {
	respond := func(resp *controlResponse) {
		data, err := json.Marshal(resp)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - failed to encode control response: %v", controlLogPrefix, err))
			return
		}
		msg.Respond(data)
	}

	var req controlRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Warn(fmt.Sprintf("%s - malformed control request: %v", controlLogPrefix, err))
		respond(&controlResponse{Error: "malformed control request"})
		return
	}

	switch req.Action {
	case "open":
		s, created, err := h.manager.Open(session.Type(req.PanelType), req.Mode, req.Params)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - open %s failed: %v", controlLogPrefix, req.PanelType, err))
			respond(&controlResponse{Error: err.Error()})
			return
		}
		respond(&controlResponse{
			OK:              true,
			SessionID:       s.ID(),
			Created:         created,
			RequestSubject:  commsutil.BuildRequestSubject(s.ID()),
			ResponseSubject: commsutil.BuildResponseSubject(s.ID()),
		})

	case "close":
		s, ok := h.manager.GetByID(req.SessionID)
		if !ok {
			respond(&controlResponse{Error: fmt.Sprintf("no session %s", req.SessionID)})
			return
		}
		s.Dispose()
		respond(&controlResponse{OK: true, SessionID: req.SessionID})

	default:
		respond(&controlResponse{Error: fmt.Sprintf("unknown action %q", req.Action)})
	}
}
