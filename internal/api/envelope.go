package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// EnvelopeKind tags which branch of response normalization produced an Envelope.
type EnvelopeKind int

const (
	// EnvelopeEmpty is a 204 or an empty body: {data: null}.
	EnvelopeEmpty EnvelopeKind = iota
	// EnvelopeWrapped is a JSON object that already carried a data or message key.
	EnvelopeWrapped
	// EnvelopeBare is any other JSON payload, wrapped as {data: payload}.
	EnvelopeBare
	// EnvelopeText is a non-JSON body, wrapped as {data: {message: text}}.
	EnvelopeText
)

func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeEmpty:
		return "empty"
	case EnvelopeWrapped:
		return "wrapped"
	case EnvelopeBare:
		return "bare"
	case EnvelopeText:
		return "text"
	}
	return fmt.Sprintf("EnvelopeKind(%d)", int(k))
}

// nullJSON is the canonical encoding of an absent payload.
var nullJSON = json.RawMessage("null")

// Envelope is the normalized {message?, data} response shape.
type Envelope struct {
	Kind    EnvelopeKind
	Message string
	Data    json.RawMessage
	// Raw is the full parsed payload before normalization.
	// It is null for EnvelopeEmpty and EnvelopeText.
	Raw json.RawMessage
}

// HasData reports whether the envelope carries a non-null payload.
func (e *Envelope) HasData() bool {
	return e != nil && !isNull(e.Data)
}

// MarshalJSON renders the envelope in its wire shape.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	out := struct {
		Message string          `json:"message,omitempty"`
		Data    json.RawMessage `json:"data"`
	}{Message: e.Message, Data: e.Data}
	if len(out.Data) == 0 {
		out.Data = nullJSON
	}
	return json.Marshal(out)
}

// Decode unmarshals the envelope's data into out. A null payload leaves out untouched.
func Decode(env *Envelope, out any) error {
	if out == nil || !env.HasData() {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// decodeEnvelope normalizes a successful response body.
func decodeEnvelope(status int, contentType string, body []byte) (*Envelope, error) {
	if status == http.StatusNoContent {
		return emptyEnvelope(), nil
	}

	if len(body) == 0 {
		return emptyEnvelope(), nil
	}

	if !isJSONContentType(contentType) {
		return textEnvelope(string(body))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return emptyEnvelope(), nil
	}

	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("failed to decode response: invalid JSON body")
	}

	raw := json.RawMessage(trimmed)
	if trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		data, hasData := fields["data"]
		msg, hasMessage := fields["message"]
		if hasData || hasMessage {
			env := &Envelope{Kind: EnvelopeWrapped, Data: data, Raw: raw}
			if !hasData {
				env.Data = nullJSON
			}
			if hasMessage {
				env.Message = stringField(msg)
			}
			return env, nil
		}
	}

	return &Envelope{Kind: EnvelopeBare, Data: raw, Raw: raw}, nil
}

func emptyEnvelope() *Envelope {
	return &Envelope{Kind: EnvelopeEmpty, Data: nullJSON, Raw: nullJSON}
}

func textEnvelope(text string) (*Envelope, error) {
	data, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode text response: %w", err) //coverage:ignore
	}
	return &Envelope{Kind: EnvelopeText, Data: data, Raw: nullJSON}, nil
}

// stringField returns the JSON string value of raw, or "" if it is not a string.
func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, nullJSON)
}
