package origin

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		origin         string
		url            string
		originPatterns []string
		success        bool
	}{
		{
			name:    "no_origin",
			success: true,
			url:     "https://example.com/ws/terminal",
		},
		{
			name:    "invalid_host",
			origin:  "invalid",
			url:     "https://example.com/ws/terminal",
			success: false,
		},
		{
			name:    "unauthorized",
			origin:  "https://example.com",
			url:     "https://example1.com/ws/terminal",
			success: false,
		},
		{
			name:    "same_host",
			origin:  "https://example.com",
			url:     "https://example.com/ws/terminal",
			success: true,
		},
		{
			name:    "same_host_case_insensitive",
			origin:  "https://examplE.com",
			url:     "https://example.com/ws/terminal",
			success: true,
		},
		{
			name:   "pattern_match",
			origin: "https://two.Example.com",
			url:    "https://example.com/ws/terminal",
			originPatterns: []string{
				"*.example.com",
				"foo.com",
			},
			success: true,
		},
		{
			name:   "pattern_cyrillic_e_in_origin",
			origin: "https://two.еxample.com",
			url:    "https://example.com/ws/terminal",
			originPatterns: []string{
				"*.example.com",
				"foo.com",
			},
			success: false,
		},
		{
			name:   "pattern_unauthorized",
			origin: "https://two.example.com",
			url:    "https://example.com/ws/terminal",
			originPatterns: []string{
				"foo.com",
				"bar.com",
			},
			success: false,
		},
		{
			name:   "full_origin_pattern",
			origin: "https://app.trycloudflare.com",
			url:    "https://example.com/ws/terminal",
			originPatterns: []string{
				"https://*.trycloudflare.com",
			},
			success: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest("GET", tc.url, nil)
			r.Header.Set("Origin", tc.origin)

			a, err := NewChecker(tc.originPatterns)
			require.NoError(t, err)
			err = a.Check(r)
			if tc.success {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestNewCheckerMalformedPattern(t *testing.T) {
	_, err := NewChecker([]string{"[invalid"})
	require.Error(t, err)
}
