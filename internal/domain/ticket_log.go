package domain

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// LogAction names the kind of change a log entry records.
type LogAction string

const (
	LogActionUpdate LogAction = "update"
)

// ChangeField names a field tracked in a log entry's changes list.
type ChangeField string

const (
	ChangeFieldStatus   ChangeField = "status"
	ChangeFieldPriority ChangeField = "priority"
	ChangeFieldAssignee ChangeField = "assignee"
)

// LogPayloadVersion is written into every new payload.
const LogPayloadVersion = 1

// LogEntry is an immutable audit record of one ticket update.
type LogEntry struct {
	ID        string
	TicketID  string
	ActorID   string
	Action    LogAction
	Message   string
	OldStatus TicketStatus
	NewStatus TicketStatus
	CreatedAt time.Time
}

// Change records a tracked field whose value differed across an update.
// Status and priority values are integer codes; assignee values are a user
// id or nil.
type Change struct {
	Field ChangeField `json:"field"`
	From  any         `json:"from"`
	To    any         `json:"to"`
}

// LogPayload is the structured body stored in a log entry's message column.
type LogPayload struct {
	Version        int             `json:"version"`
	Note           string          `json:"note"`
	OldPriority    *TicketPriority `json:"old_priority"`
	NewPriority    *TicketPriority `json:"new_priority"`
	OldAssignee    *string         `json:"old_assignee"`
	NewAssignee    *string         `json:"new_assignee"`
	OldName        *string         `json:"old_name"`
	NewName        *string         `json:"new_name"`
	OldDescription *string         `json:"old_description"`
	NewDescription *string         `json:"new_description"`
	Changes        []Change        `json:"changes"`

	present map[string]bool
}

// Encode serializes the payload for storage.
func (p LogPayload) Encode() (string, error) {
	if p.Version == 0 {
		p.Version = LogPayloadVersion
	}
	if p.Changes == nil {
		p.Changes = []Change{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Has reports whether the stored payload carried the given key, even if its
// value was null. Payloads built in memory report every key as present.
func (p LogPayload) Has(key string) bool {
	if p.present == nil {
		return true
	}
	return p.present[key]
}

// DecodeLogPayload parses a stored payload. Missing fields keep their zero
// value and unknown fields are ignored; the error is non-nil only when raw is
// not a JSON object.
func DecodeLogPayload(raw string) (LogPayload, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return LogPayload{}, err
	}
	if keys == nil {
		return LogPayload{}, errors.New("payload is null")
	}

	var payload LogPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// A field with an unexpected type: keep what the lenient pass can read.
		payload = lenientPayload(keys)
	}
	payload.present = make(map[string]bool, len(keys))
	for key := range keys {
		payload.present[key] = true
	}
	changes := payload.Changes[:0]
	for _, change := range payload.Changes {
		if change.Field == "" {
			continue
		}
		changes = append(changes, normalizeChange(change))
	}
	payload.Changes = changes
	return payload, nil
}

func lenientPayload(keys map[string]json.RawMessage) LogPayload {
	var payload LogPayload
	decodeField(keys, "version", &payload.Version)
	decodeField(keys, "note", &payload.Note)
	decodeField(keys, "old_priority", &payload.OldPriority)
	decodeField(keys, "new_priority", &payload.NewPriority)
	decodeField(keys, "old_assignee", &payload.OldAssignee)
	decodeField(keys, "new_assignee", &payload.NewAssignee)
	decodeField(keys, "old_name", &payload.OldName)
	decodeField(keys, "new_name", &payload.NewName)
	decodeField(keys, "old_description", &payload.OldDescription)
	decodeField(keys, "new_description", &payload.NewDescription)

	if raw, ok := keys["changes"]; ok {
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) == nil {
			for _, item := range items {
				var change Change
				if json.Unmarshal(item, &change) == nil {
					payload.Changes = append(payload.Changes, change)
				}
			}
		}
	}
	return payload
}

// decodeField leaves dst untouched unless the key decodes cleanly.
func decodeField[T any](keys map[string]json.RawMessage, key string, dst *T) {
	raw, ok := keys[key]
	if !ok {
		return
	}
	var value T
	if json.Unmarshal(raw, &value) == nil {
		*dst = value
	}
}

func normalizeChange(c Change) Change {
	switch c.Field {
	case ChangeFieldStatus, ChangeFieldPriority:
		c.From = normalizeCode(c.From)
		c.To = normalizeCode(c.To)
	case ChangeFieldAssignee:
		c.From = normalizeAssigneeValue(c.From)
		c.To = normalizeAssigneeValue(c.To)
	}
	return c
}

func normalizeCode(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) {
		return int(f)
	}
	return v
}

func normalizeAssigneeValue(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	return v
}
