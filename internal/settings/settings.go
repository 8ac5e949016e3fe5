package settings

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BlobKey is the storage key the settings blob lives under, kept compatible
// with the key the web client used for its local copy.
const BlobKey = "tavus-settings"

// Settings is the user-editable configuration consumed by the call
// controller. JSON field names match the client blob format.
type Settings struct {
	Name                 string `json:"name"`
	Language             string `json:"language"`
	InterruptSensitivity string `json:"interruptSensitivity"`
	Persona              string `json:"persona"`
	Replica              string `json:"replica"`
	MenPersonaID         string `json:"menPersonaId"`
	WomenPersonaID       string `json:"womenPersonaId"`
	MenReplicaID         string `json:"menReplicaId"`
	WomenReplicaID       string `json:"womenReplicaId"`
	APIKey               string `json:"apiKey"`
}

// Defaults supplies environment-configured fallbacks applied when a stored
// blob leaves a field empty.
type Defaults struct {
	APIKey         string
	MenPersonaID   string
	WomenPersonaID string
	MenReplicaID   string
	WomenReplicaID string
}

// New returns settings seeded entirely from defaults.
func New(d Defaults) Settings {
	return Settings{
		Language:             "en",
		InterruptSensitivity: "medium",
		APIKey:               d.APIKey,
		MenPersonaID:         d.MenPersonaID,
		WomenPersonaID:       d.WomenPersonaID,
		MenReplicaID:         d.MenReplicaID,
		WomenReplicaID:       d.WomenReplicaID,
	}
}

// Normalize trims fields and fills empty vendor identifiers from defaults.
func (s Settings) Normalize(d Defaults) Settings {
	s.Name = strings.TrimSpace(s.Name)
	s.APIKey = strings.TrimSpace(s.APIKey)
	if s.Language == "" {
		s.Language = "en"
	}
	if s.InterruptSensitivity == "" {
		s.InterruptSensitivity = "medium"
	}
	if s.APIKey == "" {
		s.APIKey = d.APIKey
	}
	if strings.TrimSpace(s.MenPersonaID) == "" {
		s.MenPersonaID = d.MenPersonaID
	}
	if strings.TrimSpace(s.WomenPersonaID) == "" {
		s.WomenPersonaID = d.WomenPersonaID
	}
	if strings.TrimSpace(s.MenReplicaID) == "" {
		s.MenReplicaID = d.MenReplicaID
	}
	if strings.TrimSpace(s.WomenReplicaID) == "" {
		s.WomenReplicaID = d.WomenReplicaID
	}
	return s
}

// Decode parses a stored blob, tolerating unknown fields, and normalizes it.
func Decode(blob []byte, d Defaults) (Settings, error) {
	if len(blob) == 0 {
		return New(d), nil
	}
	var s Settings
	if err := json.Unmarshal(blob, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings blob: %w", err)
	}
	return s.Normalize(d), nil
}

// Encode serializes settings for storage.
func (s Settings) Encode() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings blob: %w", err)
	}
	return b, nil
}
