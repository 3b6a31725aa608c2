// Package seed holds externally supplied plant data that replaces the
// simulated rollups kind by kind.
package seed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"plantcore/pkg/domain"
)

// Kind names one overridable rollup.
type Kind string

// Overridable kinds.
const (
	KindLines    Kind = "lines"
	KindStations Kind = "stations"
	KindEvents   Kind = "events"
	KindOrders   Kind = "orders"
)

// Kinds lists every overridable kind in payload order.
func Kinds() []Kind {
	return []Kind{KindLines, KindStations, KindEvents, KindOrders}
}

// identityKeys are the fields an element must carry to be accepted; any one
// of them is enough.
var identityKeys = map[Kind][]string{
	KindLines:    {"line_id", "id"},
	KindStations: {"station_id", "id"},
	KindEvents:   {"type", "event_type"},
	KindOrders:   {"order_id", "id"},
}

// ShapeError reports a payload element that is not a usable record. Index is
// -1 when the problem is with the kind's value itself.
type ShapeError struct {
	Kind   Kind
	Index  int
	Reason string
}

func (e *ShapeError) Error() string {
	switch {
	case e.Kind == "":
		return "seed payload: " + e.Reason
	case e.Index < 0:
		return fmt.Sprintf("seed payload %s: %s", e.Kind, e.Reason)
	default:
		return fmt.Sprintf("seed payload %s[%d]: %s", e.Kind, e.Index, e.Reason)
	}
}

// Payload is a decoded upload. A nil entry means the key was absent; a
// non-nil pointer to an empty slice clears that kind.
type Payload map[Kind]*[]json.RawMessage

// Kinds returns the kinds present in the payload in canonical order.
func (p Payload) Kinds() []Kind {
	var out []Kind
	for _, k := range Kinds() {
		if _, ok := p[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// DecodePayload validates raw and extracts the recognized kinds. Unknown
// top-level keys (including last_sync) are ignored. A payload with no
// recognized keys returns domain.ErrInvalidPayload.
func DecodePayload(raw []byte) (Payload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return nil, &ShapeError{Index: -1, Reason: "body must be a JSON object"}
	}
	out := make(Payload)
	for _, kind := range Kinds() {
		value, ok := top[string(kind)]
		if !ok {
			continue
		}
		items, err := decodeKind(kind, value)
		if err != nil {
			return nil, err
		}
		out[kind] = &items
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no recognized keys", domain.ErrInvalidPayload)
	}
	return out, nil
}

func decodeKind(kind Kind, value json.RawMessage) ([]json.RawMessage, error) {
	if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return []json.RawMessage{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(value, &items); err != nil {
		return nil, &ShapeError{Kind: kind, Index: -1, Reason: "must be an array"}
	}
	for i, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			return nil, &ShapeError{Kind: kind, Index: i, Reason: "element must be an object"}
		}
		if !hasIdentity(kind, fields) {
			return nil, &ShapeError{Kind: kind, Index: i, Reason: fmt.Sprintf("element needs one of %v", identityKeys[kind])}
		}
		items[i] = compact(item)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}

func hasIdentity(kind Kind, fields map[string]json.RawMessage) bool {
	for _, key := range identityKeys[kind] {
		if v, ok := fields[key]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return true
		}
	}
	return false
}

func compact(item json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, item); err != nil {
		return item
	}
	return buf.Bytes()
}
