package protocol

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/emersion/go-message/mail"
)

// Record is one queued message as the server sent it. The viewer treats it
// as opaque; the helpers below only read it.
type Record map[string]any

// OpaqueField holds a record that is not a JSON object. The server may send
// any value as a message's data; it is kept as-is under this key and
// encoded back to the bare value.
const OpaqueField = "$value"

// Fields shown on their own in the detail view
var summaryFields = []string{"from", "to", "subject", "text", "html"}

// Summary is the display-oriented view of a record
type Summary struct {
	From    []string
	To      []string
	Subject string
	HasText bool
	HasHTML bool
}

// UnmarshalJSON accepts any JSON value. Objects become the record's
// fields, null becomes an empty record and anything else is kept under
// OpaqueField.
func (r *Record) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case map[string]any:
		*r = Record(val)
	case nil:
		*r = Record{}
	default:
		*r = Record{OpaqueField: val}
	}
	return nil
}

// MarshalJSON writes opaque records back as their bare value
func (r Record) MarshalJSON() ([]byte, error) {
	if v, ok := r.Opaque(); ok {
		return json.Marshal(v)
	}
	return json.Marshal(map[string]any(r))
}

// Opaque returns the value of a record that was not a JSON object
func (r Record) Opaque() (any, bool) {
	if len(r) != 1 {
		return nil, false
	}
	v, ok := r[OpaqueField]
	return v, ok
}

// Strings returns a field as a list of strings. The mock server sends form
// values as arrays; a plain string is accepted too. Other values are
// rendered as JSON.
func (r Record) Strings(key string) []string {
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
				continue
			}
			b, err := json.Marshal(item)
			if err != nil {
				continue
			}
			out = append(out, string(b))
		}
		return out
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return []string{string(b)}
	}
}

// Text joins a field with ", "
func (r Record) Text(key string) string {
	return strings.Join(r.Strings(key), ", ")
}

// Summary extracts sender, recipients and subject. Addresses are
// normalized with the RFC 5322 parser; values that fail to parse are kept
// as they are.
func (r Record) Summary() Summary {
	return Summary{
		From:    addresses(r.Strings("from")),
		To:      addresses(r.Strings("to")),
		Subject: r.Text("subject"),
		HasText: len(r.Strings("text")) > 0,
		HasHTML: len(r.Strings("html")) > 0,
	}
}

// Extra returns the record without the fields covered by Summary, as
// indented JSON.
func (r Record) Extra() string {
	rest := make(map[string]any, len(r))
	for k, v := range r {
		rest[k] = v
	}
	for _, k := range summaryFields {
		delete(rest, k)
	}
	b, err := json.MarshalIndent(rest, "", " ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Keys returns the record's field names, sorted
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func addresses(values []string) []string {
	var out []string
	for _, v := range values {
		list, err := mail.ParseAddressList(v)
		if err != nil || len(list) == 0 {
			out = append(out, strings.TrimSpace(v))
			continue
		}
		for _, addr := range list {
			if addr.Name != "" {
				out = append(out, addr.Name+" <"+addr.Address+">")
			} else {
				out = append(out, addr.Address)
			}
		}
	}
	return out
}
