package agent

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse means the model text could not be parsed as JSON.
	ErrMalformedResponse = errors.New("model response is not valid JSON")
	// ErrSchemaMismatch means the JSON parsed but does not match the
	// shape the prompt demanded.
	ErrSchemaMismatch = errors.New("model response does not match the expected schema")
)

const (
	fieldStatus     = "status"
	fieldBotMessage = "bot_message"
	fieldSpecialty  = "especialidade_medica"
	fieldGuidance   = "orientacao_ao_medico"
)

// TriageResult is the single-shot output shape.
type TriageResult struct {
	Specialty    string
	GuidanceNote string
}

// ChatTurn is the conversational output shape. Specialty and GuidanceNote
// are set only when Status is "final".
type ChatTurn struct {
	Status       string
	BotMessage   string
	Specialty    string
	GuidanceNote string
}

// ParseTriageResult normalizes raw model text and validates it against the
// single-shot contract: a JSON object carrying exactly the two required
// string fields, both non-empty.
func ParseTriageResult(raw string) (*TriageResult, error) {
	fields, err := decode(raw)
	if err != nil {
		return nil, err
	}
	specialty, err := requireString(fields, fieldSpecialty)
	if err != nil {
		return nil, err
	}
	guidance, err := requireString(fields, fieldGuidance)
	if err != nil {
		return nil, err
	}
	return &TriageResult{Specialty: specialty, GuidanceNote: guidance}, nil
}

// ParseChatTurn normalizes raw model text and validates it against the
// conversational contract: status must be "ongoing" or "final",
// bot_message is always required, and the triage fields are required
// exactly when status is "final". Extra fields on an ongoing turn are
// ignored; the model tends to emit nulls there.
func ParseChatTurn(raw string) (*ChatTurn, error) {
	fields, err := decode(raw)
	if err != nil {
		return nil, err
	}
	status, err := requireString(fields, fieldStatus)
	if err != nil {
		return nil, err
	}
	bot, err := requireString(fields, fieldBotMessage)
	if err != nil {
		return nil, err
	}
	turn := &ChatTurn{Status: status, BotMessage: bot}
	switch status {
	case "ongoing":
	case "final":
		if turn.Specialty, err = requireString(fields, fieldSpecialty); err != nil {
			return nil, err
		}
		if turn.GuidanceNote, err = requireString(fields, fieldGuidance); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: status %q is neither \"ongoing\" nor \"final\"", ErrSchemaMismatch, status)
	}
	return turn, nil
}

func decode(raw string) (map[string]any, error) {
	candidate := StripFences(raw)
	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v (resposta: %q)", ErrMalformedResponse, err, candidate)
	}
	return fields, nil
}

func requireString(fields map[string]any, key string) (string, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing field %q", ErrSchemaMismatch, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q is not a string", ErrSchemaMismatch, key)
	}
	if s == "" {
		return "", fmt.Errorf("%w: field %q is empty", ErrSchemaMismatch, key)
	}
	return s, nil
}
