package model

import "encoding/json"

// Record is one message as it travels between pipeline stages: a kind tag
// plus an opaque JSON payload. It mirrors the single-field map
// {<EventKind>: <JSON string>} that the broker stores on the wire; MessageID
// is assigned by the broker and is empty for records not yet appended.
type Record struct {
	Kind      EventKind
	Payload   json.RawMessage
	MessageID string
}

// NewRecord builds a Record by marshaling v as the payload.
func NewRecord(kind EventKind, v any) (Record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Record{}, err
	}
	return Record{Kind: kind, Payload: raw}, nil
}

// Decode unmarshals the record payload into v.
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Payload, v)
}
