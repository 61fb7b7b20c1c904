package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ServiceAccount is the subset of a Google service account key file used to
// identify the Firebase project.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
}

// ParseServiceAccount decodes a base64-encoded service account JSON document.
func ParseServiceAccount(encoded string) (*ServiceAccount, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, errors.New("empty service account")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode service account: %w", err)
	}

	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	if sa.ProjectID == "" {
		return nil, errors.New("service account has no project_id")
	}
	return &sa, nil
}
