package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"192.168.1.47", "192.168.1.0"},
		{"10.0.0.0", "10.0.0.0"},
		{"172.16.50.255", "172.16.50.0"},
		{"::ffff:192.168.1.47", "192.168.1.0"},
		{"2001:db8:85a3::8a2e:370:7334", "2001:db8:85a3::"},
		{"::1", "::"},
		{"fe80::1%eth0", "fe80::"},
		{"", "unknown"},
		{"unknown", "unknown"},
		{"not-an-ip", "invalid"},
		{"999.1.1.1", "invalid"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, AnonymizeIP(tc.input))
		})
	}
}
