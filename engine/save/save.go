// Package save is the persistence boundary: it encodes the player state
// and RNG position into a snapshot and keeps snapshots in named slots.
package save

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/types"
)

// FormatVersion is written into every snapshot.
const FormatVersion = 1

// zstdMagic prefixes every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Snapshot is the serializable save format.
type Snapshot struct {
	Version      int               `json:"version"`
	Story        string            `json:"story"`
	StoryVersion string            `json:"story_version,omitempty"`
	SavedAt      time.Time         `json:"saved_at"`
	RNGSeed      int64             `json:"rng_seed"`
	RNGPosition  int64             `json:"rng_position"`
	State        types.PlayerState `json:"state"`
}

// Capture builds a snapshot of s.
func Capture(s *types.PlayerState, defs *state.Defs, seed, position int64, now time.Time) Snapshot {
	snap := Snapshot{
		Version:     FormatVersion,
		SavedAt:     now,
		RNGSeed:     seed,
		RNGPosition: position,
		State:       *s,
	}
	if defs != nil {
		snap.Story = defs.Story.Title
		snap.StoryVersion = defs.Story.Version
	}
	return snap
}

// Encode serializes a snapshot to JSON, zstd-compressed when compress is set.
func Encode(snap Snapshot, compress bool) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	if !compress {
		return data, nil
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot, detecting compression from the frame magic.
func Decode(data []byte) (*Snapshot, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		data, err = io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("decompress snapshot: %w", err)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	normalize(&snap.State)
	return &snap, nil
}

// normalize restores the invariants JSON drops: no nil maps and numeric
// flags as float64 (already the JSON number type).
func normalize(s *types.PlayerState) {
	if s.Level == 0 {
		s.Level = state.DefaultLevel
	}
	if s.Flags == nil {
		s.Flags = map[string]any{}
	}
	if s.Stats == nil {
		s.Stats = map[string]int{}
	}
	if s.Inventory == nil {
		s.Inventory = []types.Item{}
	}
	if s.Perks.Ranks == nil {
		s.Perks.Ranks = map[string]int{}
	}
	if s.Perks.Slots == 0 {
		s.Perks.Slots = state.DefaultArtifactSlots
	}
	if s.Reputation.Factions == nil {
		s.Reputation.Factions = map[string]types.FactionReputation{}
	}
	if s.Effects.Active == nil {
		s.Effects.Active = []types.Effect{}
	}
	if s.Dialogue.Memory == nil {
		s.Dialogue.Memory = map[string]types.NPCMemory{}
	}
	for id, m := range s.Dialogue.Memory {
		if m.Flags == nil {
			m.Flags = map[string]any{}
			s.Dialogue.Memory[id] = m
		}
	}
}
