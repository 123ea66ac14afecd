package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sprite-ai/smartcommit/internal/agent"
	"github.com/sprite-ai/smartcommit/internal/engine"
	"github.com/sprite-ai/smartcommit/internal/log"
	"github.com/sprite-ai/smartcommit/internal/safety"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 64,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool; the API is not meant to be exposed
	},
}

// WebSocket message types from client.
const (
	wsMsgGenerate = "generate"
	wsMsgCheck    = "check"
)

// WebSocket message types to client.
const (
	wsMsgDecision = "decision"
	wsMsgResult   = "result"
	wsMsgReport   = "report"
	wsMsgError    = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsDecision wraps one agent step as it happens.
type wsDecision struct {
	Action   string         `json:"action"`
	Decision agent.Decision `json:"decision"`
}

// handleWebSocket streams the agent loop. Each "generate" request is
// answered by one "decision" message per agent step and a final "result".
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	id := clientID(r)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("websocket read: %v", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			sendWSError(conn, "invalid message format")
			continue
		}

		switch msg.Type {
		case wsMsgGenerate:
			s.handleWSGenerate(r, conn, id, msg.Data)
		case wsMsgCheck:
			s.handleWSCheck(r, conn, id, msg.Data)
		default:
			sendWSError(conn, "unknown message type: "+msg.Type)
		}
	}
}

func (s *Server) handleWSGenerate(r *http.Request, conn *websocket.Conn, id string, data json.RawMessage) {
	var req generateRequest
	if err := decodeWS(data, &req); err != nil {
		sendWSError(conn, "invalid generate data: "+err.Error())
		return
	}

	observe := func(d agent.Decision) {
		sendWSMessage(conn, wsMsgDecision, wsDecision{Action: d.Meta().Action, Decision: d})
	}
	res, err := s.engine.Generate(r.Context(), id, req.Diff, req.Reference, observe)
	if err != nil {
		var rej *safety.Rejection
		if errors.As(err, &rej) {
			rejections.WithLabelValues(rej.Check).Inc()
		}
		sendWSError(conn, err.Error())
		return
	}
	refinements.Observe(float64(res.Iterations))
	messageSeverity.WithLabelValues(res.Assessment.Severity.String()).Inc()

	sendWSMessage(conn, wsMsgResult, generateResponse{
		RequestID: uuid.NewString(),
		Result:    res,
		Stats:     engine.Stats(req.Diff),
	})
}

func (s *Server) handleWSCheck(r *http.Request, conn *websocket.Conn, id string, data json.RawMessage) {
	var req checkRequest
	if err := decodeWS(data, &req); err != nil {
		sendWSError(conn, "invalid check data: "+err.Error())
		return
	}
	if _, err := s.engine.Admit(r.Context(), id, req.Diff); err != nil {
		sendWSError(conn, err.Error())
		return
	}
	rep := s.engine.Check(r.Context(), id, req.Message, req.Reference, req.Diff)
	messageSeverity.WithLabelValues(rep.Assessment.Severity.String()).Inc()
	sendWSMessage(conn, wsMsgReport, checkResponse{RequestID: uuid.NewString(), Report: rep})
}

func decodeWS(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	return validate.Struct(v)
}

func sendWSMessage(conn *websocket.Conn, msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Warnf("ws marshal: %v", err)
		return
	}
	msg := wsMessage{Type: msgType, Data: raw}
	if err := conn.WriteJSON(msg); err != nil {
		log.Warnf("ws write: %v", err)
	}
}

func sendWSError(conn *websocket.Conn, errMsg string) {
	sendWSMessage(conn, wsMsgError, map[string]string{"message": errMsg})
}
