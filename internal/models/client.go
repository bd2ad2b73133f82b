package models

import (
	"fmt"
	"net"
	"regexp"
	"time"
)

var emailPattern = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

// Client is a WireGuard peer managed by the backend.
type Client struct {
	ID                              string    `json:"id"`
	Name                            string    `json:"name"`
	Email                           string    `json:"email"`
	Enable                          bool      `json:"enable"`
	Site2Site                       bool      `json:"site2site"`
	IgnorePersistentKeepalive       bool      `json:"ignorePersistentKeepalive"`
	KeepaliveDisabled               bool      `json:"keepaliveDisabled"`
	KeepaliveInterval               int       `json:"keepaliveInterval"`
	UseRemoteDNS                    bool      `json:"useRemoteDNS"`
	Site2SiteEndpointOptionsEnabled bool      `json:"site2siteEndpointOptionsEnabled"`
	Site2SiteEndpoint               string    `json:"site2SiteEndpoint"`
	Site2SiteEndpointPort           int       `json:"site2SiteEndpointPort"`
	Site2SiteEndpointListenPort     int       `json:"site2SiteEndpointListenPort"`
	LANIPs                          []string  `json:"lanIPs,omitempty"`
	Table                           string    `json:"table"`
	PresharedKey                    string    `json:"presharedKey"`
	AllowedIPs                      []string  `json:"allowedIPs,omitempty"`
	Address                         []string  `json:"address,omitempty"`
	Tags                            []string  `json:"tags,omitempty"`
	PrivateKey                      string    `json:"privateKey"`
	PublicKey                       string    `json:"publicKey"`
	CreatedBy                       string    `json:"createdBy"`
	UpdatedBy                       string    `json:"updatedBy"`
	Created                         time.Time `json:"created"`
	Updated                         time.Time `json:"updated"`
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func validCIDR(s string) bool {
	_, _, err := net.ParseCIDR(s)
	return err == nil
}

// Validate applies the same rules the backend enforces on create and
// update, so obviously bad records are rejected before a round trip.
// An empty result means the client is valid.
func (c Client) Validate() []error {
	var errs []error

	if c.Name == "" {
		errs = append(errs, fmt.Errorf("name is required"))
	}
	if len(c.Name) < 2 || len(c.Name) > 40 {
		errs = append(errs, fmt.Errorf("name field must be between 2-40 chars"))
	}
	if c.Email != "" && !emailPattern.MatchString(c.Email) {
		errs = append(errs, fmt.Errorf("email %s is invalid", c.Email))
	}

	if c.Site2Site && len(c.LANIPs) == 0 {
		errs = append(errs, fmt.Errorf("LANIPs are required when Site2Site is enabled"))
	}

	if c.Site2SiteEndpoint == "" {
		if c.Site2SiteEndpointPort != 0 {
			errs = append(errs, fmt.Errorf("Site2SiteEndpointPort must be unset when Site2SiteEndpoint is empty"))
		}
		if c.Site2SiteEndpointListenPort != 0 {
			errs = append(errs, fmt.Errorf("Site2SiteEndpointListenPort must be unset when Site2SiteEndpoint is empty"))
		}
	} else {
		if !validPort(c.Site2SiteEndpointListenPort) {
			errs = append(errs, fmt.Errorf("Site2SiteEndpointListenPort %d is invalid", c.Site2SiteEndpointListenPort))
		}
		if c.Site2SiteEndpointPort != 0 && !validPort(c.Site2SiteEndpointPort) {
			errs = append(errs, fmt.Errorf("Site2SiteEndpointPort %d is invalid", c.Site2SiteEndpointPort))
		}
	}

	if c.IgnorePersistentKeepalive && !c.KeepaliveDisabled && c.KeepaliveInterval <= 0 {
		errs = append(errs, fmt.Errorf("KeepaliveInterval must be set to a positive integer when IgnorePersistentKeepalive is true and KeepaliveDisabled is false"))
	}

	for _, ip := range c.LANIPs {
		if !validCIDR(ip) {
			errs = append(errs, fmt.Errorf("lanIP %s is invalid", ip))
		}
	}

	if len(c.AllowedIPs) == 0 {
		errs = append(errs, fmt.Errorf("allowedIPs field is required"))
	}
	for _, ip := range c.AllowedIPs {
		if !validCIDR(ip) {
			errs = append(errs, fmt.Errorf("allowedIP %s is invalid", ip))
		}
	}

	if len(c.Address) == 0 {
		errs = append(errs, fmt.Errorf("address field is required"))
	}
	for _, addr := range c.Address {
		if !validCIDR(addr) {
			errs = append(errs, fmt.Errorf("address %s is invalid", addr))
		}
	}

	return errs
}
