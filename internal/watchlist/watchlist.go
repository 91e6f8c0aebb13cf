package watchlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"
)

// Account describes one monitored streamer.
type Account struct {
	Username  string   `json:"username"`
	Enabled   bool     `json:"enabled"`
	SessionID string   `json:"session_id,omitempty"`
	TargetIDC string   `json:"tt_target_idc,omitempty"`
	Tags      []string `json:"tags"`
	Notes     string   `json:"notes"`
}

// Settings holds the global monitoring knobs from the watchlist file.
type Settings struct {
	CheckIntervalSeconds    int    `json:"check_interval_seconds"`
	MaxConcurrentRecordings int    `json:"max_concurrent_recordings"`
	OutputDirectory         string `json:"output_directory"`
	SessionID               string `json:"session_id,omitempty"`
	TargetIDC               string `json:"tt_target_idc,omitempty"`
	SignServer              string `json:"whitelist_sign_server,omitempty"`
}

// Snapshot is the immutable result of one watchlist load. The orchestrator
// keeps the previous snapshot around to diff against the next one; nothing
// mutates a snapshot after Load returns it.
type Snapshot struct {
	Accounts map[string]Account
	Settings Settings
	ModTime  time.Time
}

type document struct {
	Streamers map[string]Account `json:"streamers"`
	Settings  Settings           `json:"settings"`
}

// Credentials is the session credential and routing hint resolved for one
// account, falling back to the global settings.
type Credentials struct {
	SessionID string
	TargetIDC string
}

// Load reads and validates the watchlist file. When the file is absent a
// documented template is written in its place and returned, so a fresh
// install starts with editable examples rather than an error.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return writeTemplate(path)
		}
		return nil, fmt.Errorf("read watchlist: %w", err)
	}

	return parse(path, data)
}

func parse(path string, data []byte) (*Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Path: path, Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	snap := &Snapshot{
		Accounts: make(map[string]Account, len(doc.Streamers)),
		Settings: doc.Settings,
	}

	for rawKey, account := range doc.Streamers {
		key := NormalizeKey(rawKey)
		if key == "" {
			return nil, &ValidationError{Path: path, Reason: fmt.Sprintf("empty account key %q", rawKey)}
		}
		if _, dup := snap.Accounts[key]; dup {
			return nil, &ValidationError{Path: path, Reason: fmt.Sprintf("duplicate account key %q", key)}
		}
		if strings.TrimSpace(account.Username) == "" {
			account.Username = "@" + key
		}
		snap.Accounts[key] = account
	}

	if snap.Settings.CheckIntervalSeconds <= 0 {
		return nil, &ValidationError{Path: path, Reason: "settings.check_interval_seconds must be positive"}
	}
	if snap.Settings.MaxConcurrentRecordings < 1 {
		return nil, &ValidationError{Path: path, Reason: "settings.max_concurrent_recordings must be at least 1"}
	}
	if strings.TrimSpace(snap.Settings.OutputDirectory) == "" {
		return nil, &ValidationError{Path: path, Reason: "settings.output_directory must be set"}
	}

	if info, err := os.Stat(path); err == nil {
		snap.ModTime = info.ModTime()
	}

	return snap, nil
}

// NormalizeKey canonicalizes an account key: lowercased, trimmed, no "@".
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "@"))
}

// ModTime reports the watchlist file's modification time without parsing it.
func ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// SortedKeys returns all account keys in stable ascending order. Admission
// ties are broken in this order, so it must be deterministic across loads.
func (s *Snapshot) SortedKeys() []string {
	keys := make([]string, 0, len(s.Accounts))
	for key := range s.Accounts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// EnabledKeys returns the keys of enabled accounts in sorted order.
func (s *Snapshot) EnabledKeys() []string {
	keys := make([]string, 0, len(s.Accounts))
	for key, account := range s.Accounts {
		if account.Enabled {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// CredentialsFor resolves the session credential and routing hint for an
// account, preferring per-account values over the global settings.
func (s *Snapshot) CredentialsFor(key string) Credentials {
	account := s.Accounts[key]
	creds := Credentials{
		SessionID: account.SessionID,
		TargetIDC: account.TargetIDC,
	}
	if creds.SessionID == "" {
		creds.SessionID = s.Settings.SessionID
	}
	if creds.TargetIDC == "" {
		creds.TargetIDC = s.Settings.TargetIDC
	}
	return creds
}

func writeTemplate(path string) (*Snapshot, error) {
	doc := templateDocument()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode watchlist template: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write watchlist template: %w", err)
	}
	return parse(path, data)
}

func templateDocument() document {
	return document{
		Streamers: map[string]Account{
			"example_user1": {
				Username: "@example_user1",
				Enabled:  true,
				Tags:     []string{"research", "category1"},
				Notes:    "Example streamer for research",
			},
			"example_user2": {
				Username: "@example_user2",
				Enabled:  true,
				Tags:     []string{"research", "category2"},
				Notes:    "Another example streamer",
			},
		},
		Settings: Settings{
			CheckIntervalSeconds:    30,
			MaxConcurrentRecordings: 3,
			OutputDirectory:         "recordings",
			TargetIDC:               "us-eastred",
			SignServer:              "tiktok.eulerstream.com",
		},
	}
}
