package simple

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicyAllow(t *testing.T) {
	t.Parallel()

	p := New([]string{"yelp.com", "*.tripadvisor.com", ".facebook.com", "  ", "*."})
	cases := map[string]bool{
		"bistro.fr":           true,
		"yelp.com":            false,
		"fr.yelp.com":         true,
		"tripadvisor.com":     false,
		"www.tripadvisor.com": false,
		"m.facebook.com":      false,
		"notfacebook.com":     true,
		"  YELP.com ":         false,
	}
	for host, want := range cases {
		require.Equal(t, want, p.Allow(host), host)
	}
}

func TestNilPolicyAllowsAll(t *testing.T) {
	t.Parallel()

	var p *Policy
	require.True(t, p.Allow("yelp.com"))
	require.True(t, New(nil).Allow("yelp.com"))
}
