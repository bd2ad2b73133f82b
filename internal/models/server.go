package models

import "time"

// DefaultVersion is reported until the backend answers /server/version.
const DefaultVersion = "_ci_build_not_run_properly_"

// Server is the WireGuard server interface configuration.
type Server struct {
	Address             []string  `json:"address,omitempty"`
	ListenPort          int       `json:"listenPort"`
	Mtu                 int       `json:"mtu"`
	PrivateKey          string    `json:"privateKey,omitempty"`
	PublicKey           string    `json:"publicKey"`
	Endpoint            string    `json:"endpoint"`
	PersistentKeepalive int       `json:"persistentKeepalive"`
	DNS                 []string  `json:"dns,omitempty"`
	AllowedIPs          []string  `json:"allowedips,omitempty"`
	PreUp               string    `json:"preUp"`
	PostUp              string    `json:"postUp"`
	PreDown             string    `json:"preDown"`
	PostDown            string    `json:"postDown"`
	UpdatedBy           string    `json:"updatedBy"`
	Created             time.Time `json:"created"`
	Updated             time.Time `json:"updated"`
}

// Version is returned from GET /server/version.
type Version struct {
	Version string `json:"version"`
}
