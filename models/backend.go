package models

import (
	"sort"
	"strings"
	"time"
)

// BackendType identifies a debrid (or usenet) service implementation.
type BackendType string

const (
	BackendRealDebrid BackendType = "realdebrid"
	BackendAllDebrid  BackendType = "alldebrid"
	BackendPremiumize BackendType = "premiumize"
	BackendTorBox     BackendType = "torbox"
	BackendDebridLink BackendType = "debridlink"
	BackendOffcloud   BackendType = "offcloud"
	BackendEasyNews   BackendType = "easynews"
)

var backendDisplayNames = map[BackendType]string{
	BackendRealDebrid: "Real-Debrid",
	BackendAllDebrid:  "AllDebrid",
	BackendPremiumize: "Premiumize",
	BackendTorBox:     "TorBox",
	BackendDebridLink: "Debrid-Link",
	BackendOffcloud:   "Offcloud",
	BackendEasyNews:   "EasyNews",
}

// AllBackendTypes returns every known backend type sorted by name.
func AllBackendTypes() []BackendType {
	types := make([]BackendType, 0, len(backendDisplayNames))
	for t := range backendDisplayNames {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ParseBackendType accepts the canonical name or the display name in any case,
// ignoring dashes and spaces ("Real-Debrid", "real debrid", "realdebrid").
func ParseBackendType(value string) (BackendType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "", " ", "", "_", "").Replace(normalized)
	if normalized == "" {
		return "", false
	}
	t := BackendType(normalized)
	if _, ok := backendDisplayNames[t]; ok {
		return t, true
	}
	return "", false
}

// DisplayName returns the human readable service name.
func (t BackendType) DisplayName() string {
	if name, ok := backendDisplayNames[t]; ok {
		return name
	}
	return string(t)
}

// BackendConfig is the persisted configuration of one backend account.
// CredentialRef is an opaque key into the secret store, never the secret itself.
type BackendConfig struct {
	ID            string      `json:"id"`
	Type          BackendType `json:"type"`
	CredentialRef string      `json:"credentialRef"`
	Active        bool        `json:"active"`
	Priority      int         `json:"priority"` // lower = preferred
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// AccountInfo summarizes a backend account.
type AccountInfo struct {
	Username      string     `json:"username"`
	Email         string     `json:"email,omitempty"`
	PremiumExpiry *time.Time `json:"premiumExpiry,omitempty"`
	IsPremium     bool       `json:"isPremium"`
}
