package models

import (
	"errors"
	"strings"
	"testing"
)

func TestNewURLButton(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		url     string
		wantErr error
	}{
		{"https ok", "Go", "https://example.com", nil},
		{"http ok", "Go", "http://example.com", nil},
		{"tg ok", "Join", "tg://resolve?domain=chan", nil},
		{"ftp rejected", "Go", "ftp://bad", ErrInvalidButtonURL},
		{"bare domain rejected", "Go", "example.com", ErrInvalidButtonURL},
		{"empty text", "  ", "https://example.com", ErrEmptyButtonText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewURLButton(tt.text, tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewURLButton() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewCallbackButton(t *testing.T) {
	if _, err := NewCallbackButton("Tap", "short_token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	long := strings.Repeat("x", MaxCallbackTokenBytes+1)
	if _, err := NewCallbackButton("Tap", long); !errors.Is(err, ErrCallbackTokenTooLong) {
		t.Errorf("error = %v, want ErrCallbackTokenTooLong", err)
	}

	// Exactly 64 bytes is allowed
	if _, err := NewCallbackButton("Tap", strings.Repeat("x", MaxCallbackTokenBytes)); err != nil {
		t.Errorf("64-byte token rejected: %v", err)
	}
}

func TestButtonRows(t *testing.T) {
	mk := func(n int) ButtonSpecs {
		var b ButtonSpecs
		for i := 0; i < n; i++ {
			b = append(b, ButtonSpec{Kind: ButtonKindURL, Text: "b", URL: "https://x"})
		}
		return b
	}

	tests := []struct {
		count    int
		wantRows []int
	}{
		{0, nil},
		{1, []int{1}},
		{2, []int{2}},
		{3, []int{2, 1}},
		{5, []int{2, 2, 1}},
	}

	for _, tt := range tests {
		rows := mk(tt.count).Rows()
		if len(rows) != len(tt.wantRows) {
			t.Errorf("count=%d: got %d rows, want %d", tt.count, len(rows), len(tt.wantRows))
			continue
		}
		for i, want := range tt.wantRows {
			if len(rows[i]) != want {
				t.Errorf("count=%d row %d: got %d buttons, want %d", tt.count, i, len(rows[i]), want)
			}
		}
	}
}
