package models

import (
	"bytes"
	"encoding/json"
)

// claimCheckMarker is the well-known sentinel key on the wire. The engine
// recognises it both when writing oversized outputs and when resolving dep
// inputs for downstream nodes.
const claimCheckMarker = "__nexum_claim_check__"

// ClaimCheck is the pointer object that replaces an output larger than the
// inline threshold. The payload lives in the content-addressed blob sidecar.
type ClaimCheck struct {
	Marker bool   `json:"__nexum_claim_check__"`
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// NewClaimCheck builds the pointer for a stored blob
func NewClaimCheck(path, sha256 string, size int64) *ClaimCheck {
	return &ClaimCheck{
		Marker: true,
		Path:   path,
		SHA256: sha256,
		Size:   size,
	}
}

// ParseClaimCheck decodes raw as a claim-check pointer. Returns (nil, nil)
// when raw is any other JSON value.
func ParseClaimCheck(raw json.RawMessage) (*ClaimCheck, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}
	if !bytes.Contains(trimmed, []byte(claimCheckMarker)) {
		return nil, nil
	}

	var cc ClaimCheck
	if err := json.Unmarshal(trimmed, &cc); err != nil {
		return nil, err
	}
	if !cc.Marker {
		return nil, nil
	}
	return &cc, nil
}
