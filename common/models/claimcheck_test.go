package models

import (
	"encoding/json"
	"testing"
)

func TestParseClaimCheck(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		isCheck bool
		wantErr bool
	}{
		{
			name:    "pointer_object",
			raw:     `{"__nexum_claim_check__": true, "path": ".nexum/blobs/ab/abcd", "sha256": "abcd", "size": 12}`,
			isCheck: true,
		},
		{
			name: "plain_object",
			raw:  `{"val": 1}`,
		},
		{
			name: "marker_false",
			raw:  `{"__nexum_claim_check__": false, "path": "x"}`,
		},
		{
			name: "string_value",
			raw:  `"just a string"`,
		},
		{
			name: "array_value",
			raw:  `[1, 2, 3]`,
		},
		{
			name: "number_value",
			raw:  `42`,
		},
		{
			name: "marker_key_in_nested_string_but_valid_object",
			raw:  `{"note": "__nexum_claim_check__"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc, err := ParseClaimCheck(json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.isCheck && cc == nil {
				t.Errorf("expected claim check, got nil")
			}
			if !tt.isCheck && cc != nil {
				t.Errorf("expected nil, got %+v", cc)
			}
		})
	}
}

func TestNewClaimCheck_RoundTrip(t *testing.T) {
	cc := NewClaimCheck(".nexum/blobs/ab/abcd", "abcd", 1024)

	raw, err := json.Marshal(cc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := ParseClaimCheck(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed == nil {
		t.Fatalf("expected claim check")
	}
	if parsed.Path != cc.Path || parsed.SHA256 != cc.SHA256 || parsed.Size != cc.Size {
		t.Errorf("round trip mismatch: %+v vs %+v", parsed, cc)
	}
}
