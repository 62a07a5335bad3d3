// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/pion/webrtc/v4"

	"github.com/podium-foundation/podium/lib/config"
)

// ICEConfig holds ICE server configuration for the PeerConnection. An
// empty config yields host-only candidates, which is sufficient for
// same-machine and same-LAN sessions.
type ICEConfig struct {
	// Servers lists STUN and TURN servers in the order pion tries
	// them.
	Servers []webrtc.ICEServer
}

// ICEConfigFromSignaling converts the signaling section of the daemon
// config into pion ICE server entries.
func ICEConfigFromSignaling(cfg config.SignalingConfig) ICEConfig {
	var servers []webrtc.ICEServer
	for _, entry := range cfg.ICEServers {
		if len(entry.URLs) == 0 {
			continue
		}
		server := webrtc.ICEServer{URLs: entry.URLs}
		if entry.Username != "" {
			server.Username = entry.Username
			server.Credential = entry.Credential
		}
		servers = append(servers, server)
	}
	return ICEConfig{Servers: servers}
}
