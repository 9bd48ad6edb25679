package webhooks

import (
	"bytes"
	"encoding/json"
	"strings"

	"relaydesk/internal/platform/models"
)

const dataPlaceholder = "{{data}}"

// Render builds a request body. A template of exactly {{data}} (or an empty
// one) yields the JSON payload; otherwise every {{data}} is replaced
// literally. The result is not checked for JSON validity.
func Render(template string, payload interface{}) ([]byte, error) {
	data, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	if template == "" || template == models.DefaultTemplate {
		return data, nil
	}
	return []byte(strings.ReplaceAll(template, dataPlaceholder, string(data))), nil
}

func encodePayload(payload interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
