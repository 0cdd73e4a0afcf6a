package coop

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eventpass/eventpass-api/internal/domain"
)

type MessageType string

const (
	TypeJoin        MessageType = "JOIN"
	TypeStateUpdate MessageType = "STATE_UPDATE"
	TypePieceFound  MessageType = "PIECE_FOUND"
	TypeGameWin     MessageType = "GAME_WIN"
	TypeBindBadge   MessageType = "BIND_BADGE"
	TypeError       MessageType = "ERROR"
)

// Message is one of the payload types below. The set is closed.
type Message interface {
	messageType() MessageType
}

type Join struct {
	Player Player `json:"player"`
}

type StateUpdate struct {
	State State `json:"state"`
}

type PieceFound struct {
	PieceID   string `json:"pieceId"`
	PlayerID  string `json:"userId"`
	Signature string `json:"signature,omitempty"`
	EventID   string `json:"eventId,omitempty"`
	BadgeID   string `json:"badgeId,omitempty"`
}

type GameWin struct {
	State State `json:"state"`
}

type BindBadge struct {
	BadgeID string `json:"badgeId"`
}

// ErrorMessage reports a rejected request back to the peer that sent it.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Join) messageType() MessageType         { return TypeJoin }
func (StateUpdate) messageType() MessageType  { return TypeStateUpdate }
func (PieceFound) messageType() MessageType   { return TypePieceFound }
func (GameWin) messageType() MessageType      { return TypeGameWin }
func (BindBadge) messageType() MessageType    { return TypeBindBadge }
func (ErrorMessage) messageType() MessageType { return TypeError }

type wireMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encodeMessage(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", m.messageType(), err)
	}
	return json.Marshal(wireMessage{Type: m.messageType(), Payload: payload})
}

// decodeMessage parses a frame body. Unknown types and payloads missing
// their required fields are reported as domain.ErrSocket.
func decodeMessage(body []byte) (Message, error) {
	var env wireMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSocket, err)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: %s without payload", domain.ErrSocket, env.Type)
	}

	var (
		msg Message
		err error
	)
	switch env.Type {
	case TypeJoin:
		var m Join
		if err = json.Unmarshal(env.Payload, &m); err == nil && m.Player.ID == "" {
			err = errors.New("player id required")
		}
		msg = m
	case TypeStateUpdate:
		var m StateUpdate
		err = json.Unmarshal(env.Payload, &m)
		msg = m
	case TypePieceFound:
		var m PieceFound
		if err = json.Unmarshal(env.Payload, &m); err == nil && (m.PieceID == "" || m.PlayerID == "") {
			err = errors.New("piece and player ids required")
		}
		msg = m
	case TypeGameWin:
		var m GameWin
		err = json.Unmarshal(env.Payload, &m)
		msg = m
	case TypeBindBadge:
		var m BindBadge
		if err = json.Unmarshal(env.Payload, &m); err == nil && m.BadgeID == "" {
			err = errors.New("badge id required")
		}
		msg = m
	case TypeError:
		var m ErrorMessage
		err = json.Unmarshal(env.Payload, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", domain.ErrSocket, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSocket, env.Type, err)
	}
	return msg, nil
}

const (
	codeEventMismatch   = "EVENT_MISMATCH"
	codeMissionMismatch = "MISSION_MISMATCH"
	codeInvalidState    = "INVALID_STATE"
	codeForgedPiece     = "FORGED_PIECE"
	codeUnknownPiece    = "UNKNOWN_PIECE"
	codeBadMessage      = "BAD_MESSAGE"
)

func errorMessageFor(err error) ErrorMessage {
	code := codeBadMessage
	switch {
	case errors.Is(err, domain.ErrEventMismatch):
		code = codeEventMismatch
	case errors.Is(err, domain.ErrMissionMismatch):
		code = codeMissionMismatch
	case errors.Is(err, ErrGameOver):
		code = codeInvalidState
	case errors.Is(err, ErrForgedPiece):
		code = codeForgedPiece
	case errors.Is(err, ErrUnknownPiece):
		code = codeUnknownPiece
	}
	return ErrorMessage{Code: code, Message: err.Error()}
}

// Err maps the message back to the error the host rejected the request with.
func (m ErrorMessage) Err() error {
	switch m.Code {
	case codeEventMismatch:
		return domain.ErrEventMismatch
	case codeMissionMismatch:
		return domain.ErrMissionMismatch
	case codeInvalidState:
		return ErrGameOver
	case codeForgedPiece:
		return ErrForgedPiece
	case codeUnknownPiece:
		return ErrUnknownPiece
	default:
		return fmt.Errorf("%w: %s", domain.ErrSocket, m.Message)
	}
}
