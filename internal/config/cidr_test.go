package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCIDRSubnet(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		prefix  string
		newbits int
		netnum  int
		want    string
		wantErr bool
	}{
		{"first /24 of /16", "10.0.0.0/16", 8, 0, "10.0.0.0/24", false},
		{"second /24 of /16", "10.0.0.0/16", 8, 1, "10.0.1.0/24", false},
		{"last /24 of /16", "10.0.0.0/16", 8, 255, "10.0.255.0/24", false},
		{"unmasked input", "10.0.5.7/16", 8, 2, "10.0.2.0/24", false},
		{"/20 split", "172.16.0.0/12", 8, 3, "172.16.48.0/20", false},
		{"netnum too large", "10.0.0.0/16", 8, 256, "", true},
		{"too many bits", "10.0.0.0/16", 17, 0, "", true},
		{"ipv6", "2001:db8::/32", 8, 0, "", true},
		{"garbage", "not-a-cidr", 8, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CIDRSubnet(tt.prefix, tt.newbits, tt.netnum)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCIDRHost(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		prefix  string
		hostnum int
		want    string
		wantErr bool
	}{
		{"first host", "10.0.1.0/24", 1, "10.0.1.1", false},
		{"network address", "10.0.1.0/24", 0, "10.0.1.0", false},
		{"negative counts from end", "10.0.1.0/24", -2, "10.0.1.254", false},
		{"out of range", "10.0.1.0/24", 256, "", true},
		{"negative out of range", "10.0.1.0/24", -257, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CIDRHost(tt.prefix, tt.hostnum)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCIDRContains(t *testing.T) {
	t.Parallel()
	tests := []struct {
		outer, inner string
		want         bool
	}{
		{"10.0.0.0/16", "10.0.1.0/24", true},
		{"10.0.0.0/16", "10.0.0.0/16", true},
		{"10.0.0.0/16", "10.1.0.0/24", false},
		{"10.0.1.0/24", "10.0.0.0/16", false},
	}

	for _, tt := range tests {
		got, err := CIDRContains(tt.outer, tt.inner)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s in %s", tt.inner, tt.outer)
	}

	_, err := CIDRContains("10.0.0.0/16", "bogus")
	assert.Error(t, err)
}
