package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoveryURL(t *testing.T) {
	d := Discovery{IP: "203.0.113.7", Port: 8443}
	assert.Equal(t, "https://203.0.113.7:8443", d.URL())
}
