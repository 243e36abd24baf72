// Package config persists the user-facing upscaler settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/richinsley/gofsr/log"
	"github.com/richinsley/gofsr/quality"
	"github.com/spf13/afero"
)

var logger = log.New("config")

// DefaultFile is the settings file name used when none is given.
const DefaultFile = "gofsr.json"

const (
	MinStrength = 1
	MaxStrength = 10
)

// Snapshot is the configuration read once at the start of every frame.
type Snapshot struct {
	Enabled                 bool            `json:"enabled"`
	AutoEnable              bool            `json:"autoEnable"`
	Quality                 quality.Mode    `json:"quality"`
	Variant                 quality.Variant `json:"variant"`
	Sharpness               float32         `json:"sharpness"`
	FrameGeneration         bool            `json:"frameGeneration"`
	FrameGenerationStrength int             `json:"frameGenerationStrength"`
}

// Defaults returns the settings written on first run.
func Defaults() Snapshot {
	return Snapshot{
		Enabled:                 true,
		Quality:                 quality.Balanced,
		Variant:                 quality.Basic,
		Sharpness:               0.7,
		FrameGenerationStrength: 5,
	}
}

// Clamped returns s with every numeric field in range.
func (s Snapshot) Clamped() Snapshot {
	s.Sharpness = max(0, min(1, s.Sharpness))
	s.FrameGenerationStrength = max(MinStrength, min(MaxStrength, s.FrameGenerationStrength))
	return s
}

// Store keeps a Snapshot in a JSON file. Mutators save immediately. It is safe
// for concurrent use.
type Store struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	snap Snapshot
}

// Open loads path from fsys, creating it with defaults when it does not exist,
// then applies GOFSR_* environment overrides.
func Open(fsys afero.Fs, path string) (*Store, error) {
	if path == "" {
		path = DefaultFile
	}
	s := &Store{fs: fsys, path: path, snap: Defaults()}

	data, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := s.save(); err != nil {
			return nil, err
		}
		logger.Infof("created default configuration %s", path)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		snap := Defaults()
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		s.snap = snap.Clamped()
		logger.Infof("loaded configuration %s", path)
	}

	snap, err := applyEnv(s.snap)
	if err != nil {
		return nil, err
	}
	s.snap = snap.Clamped()
	return s, nil
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// Current returns a copy of the settings.
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Store) SetEnabled(enabled bool) error {
	return s.update(func(snap *Snapshot) { snap.Enabled = enabled })
}

func (s *Store) SetAutoEnable(enabled bool) error {
	return s.update(func(snap *Snapshot) { snap.AutoEnable = enabled })
}

func (s *Store) SetQuality(mode quality.Mode) error {
	return s.update(func(snap *Snapshot) { snap.Quality = mode })
}

func (s *Store) SetUpscaleVariant(variant quality.Variant) error {
	return s.update(func(snap *Snapshot) { snap.Variant = variant })
}

func (s *Store) SetSharpness(sharpness float32) error {
	return s.update(func(snap *Snapshot) { snap.Sharpness = sharpness })
}

func (s *Store) SetFrameGeneration(enabled bool, strength int) error {
	return s.update(func(snap *Snapshot) {
		snap.FrameGeneration = enabled
		snap.FrameGenerationStrength = strength
	})
}

// NotifyDisabledDueToError turns the feature off and persists it, so a restart
// does not re-enter the failing pipeline.
func (s *Store) NotifyDisabledDueToError() {
	if err := s.SetEnabled(false); err != nil {
		logger.Warningf("could not persist disabled state: %v", err)
	}
}

func (s *Store) update(fn func(*Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	s.snap = s.snap.Clamped()
	return s.save()
}

// save expects s.mu held, or s not yet shared.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

func applyEnv(snap Snapshot) (Snapshot, error) {
	if value := strings.TrimSpace(os.Getenv("GOFSR_ENABLED")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse GOFSR_ENABLED: %w", err)
		}
		snap.Enabled = enabled
	}

	if value := strings.TrimSpace(os.Getenv("GOFSR_QUALITY")); value != "" {
		mode, err := quality.ParseMode(value)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse GOFSR_QUALITY: %w", err)
		}
		snap.Quality = mode
	}

	if value := strings.TrimSpace(os.Getenv("GOFSR_VARIANT")); value != "" {
		variant, err := quality.ParseVariant(value)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse GOFSR_VARIANT: %w", err)
		}
		snap.Variant = variant
	}

	if value := strings.TrimSpace(os.Getenv("GOFSR_SHARPNESS")); value != "" {
		sharpness, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse GOFSR_SHARPNESS: %w", err)
		}
		snap.Sharpness = float32(sharpness)
	}

	if value := strings.TrimSpace(os.Getenv("GOFSR_FRAME_GENERATION")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse GOFSR_FRAME_GENERATION: %w", err)
		}
		snap.FrameGeneration = enabled
	}

	if value := strings.TrimSpace(os.Getenv("GOFSR_FRAME_GENERATION_STRENGTH")); value != "" {
		strength, err := strconv.Atoi(value)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse GOFSR_FRAME_GENERATION_STRENGTH: %w", err)
		}
		snap.FrameGenerationStrength = strength
	}

	return snap, nil
}
