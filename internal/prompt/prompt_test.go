package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequired(t *testing.T) {
	check := required("username")
	assert.EqualError(t, check(""), "username is required")
	assert.EqualError(t, check("   "), "username is required")
	assert.NoError(t, check("alice"))
}
