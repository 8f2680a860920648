package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ResponseEntry is one respondent's answer, keyed by display name.
type ResponseEntry struct {
	Name   string
	Answer string
}

// Responses is a name -> answer mapping that keeps arrival order on the wire.
type Responses []ResponseEntry

// MarshalJSON renders responses as a JSON object whose keys keep arrival order.
func (r Responses) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, res := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(res.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(res.Answer)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object back, keeping key order.
func (r *Responses) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("responses: expected object, got %v", tok)
	}

	out := Responses{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("responses: unexpected key %v", keyTok)
		}
		var answer string
		if err := dec.Decode(&answer); err != nil {
			return fmt.Errorf("responses: value for %q: %w", key, err)
		}
		out = append(out, ResponseEntry{Name: key, Answer: answer})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}
