package models

import "time"

// StatusEnabled is returned from GET /status/enabled.
type StatusEnabled struct {
	Enabled bool `json:"enabled"`
}

// InterfaceStatus describes the live WireGuard interface.
type InterfaceStatus struct {
	Name          string `json:"interface"`
	Device        string `json:"device"`
	ListenPort    int    `json:"port"`
	NumberOfPeers int    `json:"numPeers"`
	PublicKey     string `json:"publicKey"`
}

// ClientStatus is the live handshake and transfer state of one peer.
type ClientStatus struct {
	PublicKey        string    `json:"publicKey"`
	HasPresharedKey  bool      `json:"hasPresharedKey"`
	ProtocolVersion  int       `json:"protocolVersion"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Connected        bool      `json:"connected"`
	AllowedIPs       []string  `json:"allowedIPs,omitempty"`
	Endpoint         string    `json:"endpoint"`
	LastHandshake    time.Time `json:"lastHandshake"`
	ReceivedBytes    int64     `json:"receivedBytes"`
	TransmittedBytes int64     `json:"transmittedBytes"`
}

// Status bundles everything the status view shows.
type Status struct {
	Enabled   bool             `json:"enabled"`
	Interface *InterfaceStatus `json:"interface,omitempty"`
	Clients   []ClientStatus   `json:"clients,omitempty"`
}
