package model

import "fmt"

// RecordMode controls whether a cassette recorder replays, records, or both.
type RecordMode string

const (
	// RecordModeNone replays only; unmatched requests fail.
	RecordModeNone RecordMode = "none"
	// RecordModeOnce records when the cassette does not exist yet, otherwise replays only.
	RecordModeOnce RecordMode = "once"
	// RecordModeNewEpisodes replays matched requests and records the rest.
	RecordModeNewEpisodes RecordMode = "new_episodes"
	// RecordModeAll always hits the network and records every interaction.
	RecordModeAll RecordMode = "all"
)

// ParseRecordMode converts a configuration string into a RecordMode.
func ParseRecordMode(s string) (RecordMode, error) {
	switch m := RecordMode(s); m {
	case RecordModeNone, RecordModeOnce, RecordModeNewEpisodes, RecordModeAll:
		return m, nil
	default:
		return "", fmt.Errorf("invalid record mode %q: expected none, once, new_episodes or all", s)
	}
}
