package summary

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Cache and output keys
const (
	KeySummary            = "summary"
	KeyPhysicalStatus     = "physical_status"
	KeyPsychologicalNeeds = "psychological_needs"
	KeyAdvice             = "advice"
)

// RequiredKeys lists the keys a cache file must carry to be served
var RequiredKeys = []string{KeySummary, KeyPhysicalStatus, KeyPsychologicalNeeds, KeyAdvice}

// Kind discriminates the JSON shapes a summary field may arrive in
type Kind int

const (
	KindAbsent Kind = iota
	KindString
	KindList
	KindOther
)

// Value is one summary field as decoded from model output or a cache file.
// The zero Value is absent.
type Value struct {
	kind  Kind
	str   string
	items []string
}

// StringValue returns a string-typed value
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// ListValue returns a list-typed value
func ListValue(items ...string) Value {
	return Value{kind: KindList, items: items}
}

// Kind reports the decoded shape
func (v Value) Kind() Kind {
	return v.kind
}

// UnmarshalJSON classifies the raw JSON. null decodes to absent; numbers,
// booleans and objects keep their JSON text.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = Value{}

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]string, 0, len(raw))
		for _, r := range raw {
			items = append(items, itemText(r))
		}
		*v = ListValue(items...)
	default:
		*v = Value{kind: KindOther, str: string(data)}
	}
	return nil
}

func itemText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ""
	}
	return string(raw)
}

// Text converts the value to its canonical string form. Lists become a
// newline-separated bullet list of their non-empty items.
func (v Value) Text() string {
	switch v.kind {
	case KindString, KindOther:
		return strings.TrimSpace(v.str)
	case KindList:
		items := make([]string, 0, len(v.items))
		for _, item := range v.items {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			return ""
		}
		return "- " + strings.Join(items, "\n- ")
	default:
		return ""
	}
}

// Fields is the normalized, string-only summary as cached on disk
type Fields struct {
	Summary            string `json:"summary"`
	PhysicalStatus     string `json:"physical_status"`
	PsychologicalNeeds string `json:"psychological_needs"`
	Advice             string `json:"advice"`
}

// Normalize maps decoded values onto Fields. hadList reports whether any of
// the four keys held a list.
func Normalize(values map[string]Value) (fields Fields, hadList bool) {
	for _, key := range RequiredKeys {
		if values[key].Kind() == KindList {
			hadList = true
		}
	}

	return Fields{
		Summary:            values[KeySummary].Text(),
		PhysicalStatus:     values[KeyPhysicalStatus].Text(),
		PsychologicalNeeds: values[KeyPsychologicalNeeds].Text(),
		Advice:             values[KeyAdvice].Text(),
	}, hadList
}
