package email

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleSend(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid message", `{"to":"alice@example.com","subject":"Order Confirmation: #1","body":"hi"}`, http.StatusOK},
		{"malformed json", `{`, http.StatusBadRequest},
		{"bad recipient", `{"to":"nobody","subject":"x"}`, http.StatusBadRequest},
		{"missing subject", `{"to":"alice@example.com","subject":" "}`, http.StatusBadRequest},
		{"header injection", `{"to":"alice@example.com","subject":"hi\r\nBcc: eve@example.com"}`, http.StatusBadRequest},
		{"oversized body", `{"to":"alice@example.com","subject":"x","body":"` + strings.Repeat("a", maxRequestBytes) + `"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.HandleSend(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				var resp sendResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.ID == "" || resp.Status != "sent" {
					t.Errorf("unexpected response %+v, err %v", resp, err)
				}
			}
		})
	}
}
