package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// MaxCallbackTokenBytes is the Bot API limit for callback data.
const MaxCallbackTokenBytes = 64

var (
	ErrInvalidButtonURL     = errors.New("button url must start with http://, https:// or tg://")
	ErrCallbackTokenTooLong = errors.New("callback token exceeds 64 bytes")
	ErrEmptyButtonText      = errors.New("button text is empty")
)

// ButtonKind distinguishes URL buttons from callback buttons
type ButtonKind string

const (
	ButtonKindURL      ButtonKind = "url"
	ButtonKindCallback ButtonKind = "callback"
)

// ButtonSpec is a single inline button attached to a post
type ButtonSpec struct {
	Kind          ButtonKind `json:"kind"`
	Text          string     `json:"text"`
	URL           string     `json:"url,omitempty"`
	CallbackToken string     `json:"callback_token,omitempty"`
}

var urlPrefixes = []string{"http://", "https://", "tg://"}

// NewURLButton validates and builds a URL button.
func NewURLButton(text, url string) (ButtonSpec, error) {
	if strings.TrimSpace(text) == "" {
		return ButtonSpec{}, ErrEmptyButtonText
	}
	ok := false
	for _, p := range urlPrefixes {
		if strings.HasPrefix(url, p) {
			ok = true
			break
		}
	}
	if !ok {
		return ButtonSpec{}, ErrInvalidButtonURL
	}
	return ButtonSpec{Kind: ButtonKindURL, Text: text, URL: url}, nil
}

// NewCallbackButton validates and builds a callback button.
func NewCallbackButton(text, token string) (ButtonSpec, error) {
	if strings.TrimSpace(text) == "" {
		return ButtonSpec{}, ErrEmptyButtonText
	}
	if len(token) > MaxCallbackTokenBytes {
		return ButtonSpec{}, ErrCallbackTokenTooLong
	}
	return ButtonSpec{Kind: ButtonKindCallback, Text: text, CallbackToken: token}, nil
}

// ButtonSpecs is an ordered button layout stored as a JSON array
type ButtonSpecs []ButtonSpec

func (b ButtonSpecs) Value() (driver.Value, error) {
	return json.Marshal(b)
}

func (b *ButtonSpecs) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	}
	return nil
}

// Rows lays buttons out in rows of at most two.
func (b ButtonSpecs) Rows() [][]ButtonSpec {
	var rows [][]ButtonSpec
	for i := 0; i < len(b); i += 2 {
		end := i + 2
		if end > len(b) {
			end = len(b)
		}
		rows = append(rows, b[i:end])
	}
	return rows
}
