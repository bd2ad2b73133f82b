package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validClient() Client {
	return Client{
		Name:       "laptop",
		Email:      "alice@example.com",
		AllowedIPs: []string{"0.0.0.0/0"},
		Address:    []string{"10.6.0.2/32"},
	}
}

func TestClientValidate_Valid(t *testing.T) {
	assert.Empty(t, validClient().Validate())
}

func TestClientValidate_NameLength(t *testing.T) {
	c := validClient()
	c.Name = "x"
	errs := c.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "between 2-40")
}

func TestClientValidate_EmptyNameReportsBoth(t *testing.T) {
	c := validClient()
	c.Name = ""
	assert.Len(t, c.Validate(), 2)
}

func TestClientValidate_BadEmail(t *testing.T) {
	c := validClient()
	c.Email = "not-an-email"
	errs := c.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "email not-an-email is invalid")
}

func TestClientValidate_MissingAddressAndAllowedIPs(t *testing.T) {
	c := validClient()
	c.Address = nil
	c.AllowedIPs = nil
	errs := c.Validate()
	assert.Len(t, errs, 2)
}

func TestClientValidate_InvalidCIDRs(t *testing.T) {
	c := validClient()
	c.AllowedIPs = []string{"10.0.0.0/8", "nope"}
	c.Address = []string{"10.6.0.2"}
	errs := c.Validate()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "allowedIP nope is invalid")
	assert.Contains(t, errs[1].Error(), "address 10.6.0.2 is invalid")
}

func TestClientValidate_Site2SiteNeedsLANIPs(t *testing.T) {
	c := validClient()
	c.Site2Site = true
	errs := c.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "LANIPs are required")

	c.LANIPs = []string{"192.168.1.0/24"}
	assert.Empty(t, c.Validate())
}

func TestClientValidate_EndpointPorts(t *testing.T) {
	c := validClient()
	c.Site2SiteEndpointPort = 51820
	assert.Len(t, c.Validate(), 1, "port without endpoint")

	c = validClient()
	c.Site2SiteEndpoint = "peer.example.com"
	assert.Len(t, c.Validate(), 1, "endpoint needs a listen port")

	c.Site2SiteEndpointListenPort = 51820
	c.Site2SiteEndpointPort = 70000
	assert.Len(t, c.Validate(), 1, "out of range port")

	c.Site2SiteEndpointPort = 51821
	assert.Empty(t, c.Validate())
}

func TestClientValidate_KeepaliveInterval(t *testing.T) {
	c := validClient()
	c.IgnorePersistentKeepalive = true
	assert.Len(t, c.Validate(), 1)

	c.KeepaliveDisabled = true
	assert.Empty(t, c.Validate())
}

func TestAuthURL_Disabled(t *testing.T) {
	assert.True(t, AuthURL{CodeURL: "_magic_string_fake_auth_no_redirect_"}.Disabled())
	assert.False(t, AuthURL{CodeURL: "https://idp.example.com/authorize"}.Disabled())
	assert.False(t, AuthURL{}.Disabled())
}

func TestUser_PasswordOmittedWhenEmpty(t *testing.T) {
	data, err := json.Marshal(User{Sub: "u1", Name: "alice"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
	assert.Contains(t, string(data), `"isAdmin":false`)
}

func TestUnknownUser(t *testing.T) {
	u := UnknownUser()
	assert.Equal(t, "Unknown User", u.Name)
	assert.Empty(t, u.Sub)
	assert.False(t, u.IsAdmin)
}
