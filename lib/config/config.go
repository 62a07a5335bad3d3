// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for podium components.
//
// Configuration is loaded from a single YAML file specified by:
//   - the PODIUM_CONFIG environment variable, or
//   - the --config flag passed to the command
//
// There are no fallbacks or automatic discovery, so every deployment
// reads exactly the file it was pointed at.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar is the environment variable naming the config file.
const EnvVar = "PODIUM_CONFIG"

// Config is the master configuration for a podium synchronizer daemon.
type Config struct {
	// Room identifies the live session room this synchronizer joins.
	Room RoomConfig `yaml:"room"`

	// Signaling configures how SDP offers and answers are exchanged.
	Signaling SignalingConfig `yaml:"signaling"`

	// Store configures the durable session record store.
	Store StoreConfig `yaml:"store"`

	// Capture configures the screenshot relay pipeline.
	Capture CaptureConfig `yaml:"capture"`

	// Session configures lesson timing.
	Session SessionConfig `yaml:"session"`
}

// RoomConfig identifies this participant within the room.
type RoomConfig struct {
	// ID is the room identifier shared by both participants.
	ID string `yaml:"id"`

	// Participant is this side's name in signaling (e.g. "student" or
	// "avatar"). The lexicographically smaller participant is the
	// canonical offerer when both sides dial simultaneously.
	Participant string `yaml:"participant"`

	// Peer is the remote participant's name.
	Peer string `yaml:"peer"`
}

// SignalingConfig holds the ICE servers used for connection
// establishment. An empty server list yields host-only candidates,
// which is sufficient for same-machine and LAN testing.
type SignalingConfig struct {
	// URL is the base URL of the signaling service's offer/answer
	// endpoints.
	URL string `yaml:"url"`

	// ICEServers lists STUN/TURN URIs in the order pion should try
	// them.
	ICEServers []ICEServerConfig `yaml:"ice_servers"`
}

// ICEServerConfig is one STUN or TURN server entry.
type ICEServerConfig struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

// StoreConfig configures the sqlite-backed session record store.
type StoreConfig struct {
	// Path is the sqlite database file. ":memory:" is accepted for
	// tests.
	Path string `yaml:"path"`

	// CleanupURL, when set, receives the fire-and-forget teardown
	// beacon ({roomId, reason}) on shutdown.
	CleanupURL string `yaml:"cleanup_url,omitempty"`
}

// CaptureConfig configures the screenshot pipeline.
type CaptureConfig struct {
	// MaxWidth bounds relayed screenshots, in pixels. Zero means the
	// default of 960.
	MaxWidth int `yaml:"max_width,omitempty"`

	// Quality is the JPEG quality (1-100). Zero means the default of
	// 85.
	Quality int `yaml:"quality,omitempty"`

	// SettleDelay is how long to wait after an index change before
	// rasterizing, so rendering can complete. Zero means the default
	// of 400ms.
	SettleDelay time.Duration `yaml:"settle_delay,omitempty"`
}

// SessionConfig configures lesson timing.
type SessionConfig struct {
	// TargetDurationMinutes is the planned lesson length. Zero means
	// no target.
	TargetDurationMinutes int `yaml:"target_duration_minutes,omitempty"`

	// WrapUpBufferMinutes is how long before the target the session
	// enters its wrap-up phase. Ignored when TargetDurationMinutes is
	// zero.
	WrapUpBufferMinutes int `yaml:"wrap_up_buffer_minutes,omitempty"`
}

// Load reads and validates the config file at path. When path is
// empty, the PODIUM_CONFIG environment variable is consulted.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return nil, fmt.Errorf("config: no path given and %s is not set", EnvVar)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Room.ID == "" {
		return fmt.Errorf("room.id is required")
	}
	if c.Room.Participant == "" {
		return fmt.Errorf("room.participant is required")
	}
	if c.Room.Peer == "" {
		return fmt.Errorf("room.peer is required")
	}
	if c.Room.Participant == c.Room.Peer {
		return fmt.Errorf("room.participant and room.peer must differ")
	}
	if c.Signaling.URL == "" {
		return fmt.Errorf("signaling.url is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Capture.Quality < 0 || c.Capture.Quality > 100 {
		return fmt.Errorf("capture.quality %d out of range [0, 100]", c.Capture.Quality)
	}
	if c.Capture.MaxWidth < 0 {
		return fmt.Errorf("capture.max_width must not be negative")
	}
	if c.Session.WrapUpBufferMinutes > 0 &&
		c.Session.TargetDurationMinutes > 0 &&
		c.Session.WrapUpBufferMinutes >= c.Session.TargetDurationMinutes {
		return fmt.Errorf("session.wrap_up_buffer_minutes must be smaller than session.target_duration_minutes")
	}
	return nil
}
