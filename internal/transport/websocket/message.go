package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
)

const (
	requestInit    = "init"
	requestPlay    = "play"
	requestRematch = "rematch"
)

// Request is a message received from a client. The first message of a connection carries
// join, watch or neither; later ones carry a type.
type Request struct {
	Type   string `json:"type,omitempty"`
	Join   string `json:"join,omitempty"`
	Watch  string `json:"watch,omitempty"`
	Name   string `json:"name,omitempty"`
	Column *int   `json:"column,omitempty"`
}

func decodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: malformed message: %w", apperror.ErrProtocolViolation, err)
	}

	return &req, nil
}
