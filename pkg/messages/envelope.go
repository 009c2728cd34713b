package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const envelopeSchema = "envelope"

// Envelope is a control message, encoded as the JSON array [event, payload, status].
type Envelope struct {
	Event   string
	Payload json.RawMessage
	Status  int
}

func (e *Envelope) Kind() Kind {
	return KindForEvent(e.Event)
}

func (e *Envelope) MarshalJSON() ([]byte, error) {
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return json.Marshal([]interface{}{e.Event, payload, e.Status})
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return decodeErrorf(envelopeSchema, "%v", err)
	}
	if len(parts) != 3 {
		return decodeErrorf(envelopeSchema, "expected 3 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &e.Event); err != nil {
		return decodeErrorf(envelopeSchema, "event: %v", err)
	}
	if err := json.Unmarshal(parts[2], &e.Status); err != nil {
		return decodeErrorf(envelopeSchema, "status: %v", err)
	}
	e.Payload = parts[1]
	return nil
}

// EncodeEnvelope marshals payload and wraps it in an envelope.
func EncodeEnvelope(event string, payload interface{}, status int) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", event, err)
	}
	return json.Marshal(&Envelope{Event: event, Payload: raw, Status: status})
}

func DecodeEnvelope(b []byte) (*Envelope, error) {
	e := &Envelope{}
	if err := json.Unmarshal(b, e); err != nil {
		if IsDecodeError(err) {
			return nil, err
		}
		return nil, decodeErrorf(envelopeSchema, "%v", err)
	}
	if e.Event == "" {
		return nil, decodeErrorf(envelopeSchema, "missing event name")
	}
	return e, nil
}

// DecodePayload unmarshals an envelope's payload into T.
func DecodePayload[T any](e *Envelope) (T, error) {
	var v T
	if len(e.Payload) == 0 || bytes.Equal(e.Payload, []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return v, decodeErrorf(e.Event, "%v", err)
	}
	return v, nil
}
