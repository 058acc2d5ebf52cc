package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server
	TypeSelectDataset = "select_dataset"
	TypeSetName       = "set_name"
	TypeStart         = "start"
	TypeRender        = "render"
	TypeSubmitAnswer  = "submit_answer"
	TypeNext          = "next"
	TypePlayAgain     = "play_again"
	TypeFinish        = "finish"
	TypePing          = "ping"

	// Server -> Client
	TypeView  = "view"
	TypeError = "error"
	TypePong  = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client Messages (incoming)

type SelectDatasetPayload struct {
	Dataset string `json:"dataset"`
}

type SetNamePayload struct {
	Name string `json:"name"`
}

type StartPayload struct {
	Count  int `json:"count,omitempty"`
	Preset int `json:"preset,omitempty"` // one of the advertised preset counts
}

type SubmitAnswerPayload struct {
	Choice string `json:"choice"` // "1".."4" or the choice text
}

type FinishPayload struct {
	Name string `json:"name,omitempty"`
}

// Server Messages (outgoing)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType, requestID string, payload any) (Message, error) {
	msg := Message{Type: msgType, RequestID: requestID}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = data
	return msg, nil
}
