// Package schedule holds the externally-owned table of broadcasters the
// daemon watches: the StreamConfig/Streams data model from the
// specification, plus the load/save and CLI-facing mutation helpers ported
// from the original Streams type.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// QualityOverride is a per-broadcaster override of one named quality
// profile, e.g. ("normal", 480). Order is significant: QualityOverrides is
// treated as insertion-ordered, never resorted.
type QualityOverride struct {
	Profile string `json:"profile"`
	Quality uint16 `json:"quality"`
}

// StreamConfig is one broadcaster's entry in the schedule.
type StreamConfig struct {
	Login            string            `json:"name" validate:"required,lowercase"`
	BroadcasterID    uint32            `json:"id"`
	QualityOverrides []QualityOverride `json:"quality_overides"`
	CloseOn          []string          `json:"streams_to_close_on"`
	OpenOn           []string          `json:"streams_to_open_on"`
}

// Streams is the ordered sequence of StreamConfig the Scheduler Loader
// seeds the pipeline from.
type Streams struct {
	entries []StreamConfig
}

// New returns an empty schedule.
func New() Streams {
	return Streams{}
}

// Entries returns the schedule's StreamConfig values in insertion order.
func (s Streams) Entries() []StreamConfig {
	return s.entries
}

// Len reports how many broadcasters are scheduled.
func (s Streams) Len() int {
	return len(s.entries)
}

// MarshalJSON serializes as a bare JSON array, matching the on-disk
// schedule.json shape (no wrapper object).
func (s Streams) MarshalJSON() ([]byte, error) {
	if s.entries == nil {
		return json.Marshal([]StreamConfig{})
	}
	return json.Marshal(s.entries)
}

// UnmarshalJSON parses a bare JSON array of StreamConfig.
func (s *Streams) UnmarshalJSON(data []byte) error {
	var entries []StreamConfig
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	s.entries = entries
	return nil
}

var validate = validator.New()

// Validate checks the invariants from the data model: login uniqueness
// across the set, and no duplicate quality-override profile names within
// a single entry. It is run once, at load time, so a malformed schedule
// fails fast rather than silently dropping broadcasters.
func (s Streams) Validate() error {
	seenLogins := make(map[string]bool, len(s.entries))
	for _, entry := range s.entries {
		if err := validate.Struct(entry); err != nil {
			return fmt.Errorf("stream config %q: %w", entry.Login, err)
		}
		if seenLogins[entry.Login] {
			return fmt.Errorf("duplicate login in schedule: %s", entry.Login)
		}
		seenLogins[entry.Login] = true

		seenProfiles := make(map[string]bool, len(entry.QualityOverrides))
		for _, override := range entry.QualityOverrides {
			if seenProfiles[override.Profile] {
				return fmt.Errorf("stream config %q: duplicate quality override profile %q", entry.Login, override.Profile)
			}
			seenProfiles[override.Profile] = true
		}
	}
	return nil
}

// Read loads schedule.json from dir. A missing file yields an empty
// schedule (matching Streams::read_streams); a malformed file is logged
// and also yields an empty schedule, since the caller validates the
// result before trusting it.
func Read(dir string) Streams {
	data, err := os.ReadFile(filepath.Join(dir, "schedule.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening file: %v\n", err)
		return New()
	}
	var streams Streams
	if err := json.Unmarshal(data, &streams); err != nil {
		fmt.Fprintf(os.Stderr, "Error deserializing data: %v\n", err)
		return New()
	}
	return streams
}

// Write serializes the schedule to schedule.json under dir, creating the
// directory if needed.
func (s Streams) Write(dir string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "schedule.json"), data, 0o644)
}

// Add appends a new broadcaster entry. It is the CLI's `stream add`
// collaborator; id resolution against the provider is the caller's
// responsibility (passed in already resolved), matching the spec's
// boundary that the core never resolves broadcaster ids itself.
func (s *Streams) Add(entry StreamConfig) {
	s.entries = append(s.entries, entry)
}

// Edit merges quality overrides into an existing entry by login, adding a
// profile override if absent or replacing it if already present.
func (s *Streams) Edit(login string, overrides []QualityOverride) error {
	for i := range s.entries {
		if s.entries[i].Login != login {
			continue
		}
		for _, override := range overrides {
			found := false
			for j := range s.entries[i].QualityOverrides {
				if s.entries[i].QualityOverrides[j].Profile == override.Profile {
					s.entries[i].QualityOverrides[j] = override
					found = true
					break
				}
			}
			if !found {
				s.entries[i].QualityOverrides = append(s.entries[i].QualityOverrides, override)
			}
		}
		return nil
	}
	return errors.New("stream not found: " + login)
}

// Remove deletes the entry for login, if present, and returns it.
func (s *Streams) Remove(login string) (StreamConfig, bool) {
	for i, entry := range s.entries {
		if entry.Login == login {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return entry, true
		}
	}
	return StreamConfig{}, false
}
