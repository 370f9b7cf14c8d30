package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Site
		wantErr bool
	}{
		{
			name: "www prefix stripped from domain",
			url:  "https://www.example.com/products/shoes?id=1",
			want: Site{Origin: "https://www.example.com/", Domain: "example.com"},
		},
		{
			name: "plain http",
			url:  "http://shop.example.org",
			want: Site{Origin: "http://shop.example.org/", Domain: "shop.example.org"},
		},
		{
			name: "port kept",
			url:  "http://localhost:8080/a",
			want: Site{Origin: "http://localhost:8080/", Domain: "localhost:8080"},
		},
		{name: "relative", url: "/just/a/path", wantErr: true},
		{name: "garbage", url: "://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SiteFromURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSiteFromTargets_UsesFirst(t *testing.T) {
	site, err := SiteFromTargets([]PageTarget{
		{Label: "Home", URL: "https://www.first.com/"},
		{Label: "Other", URL: "https://second.com/"},
	})
	require.NoError(t, err)
	assert.Equal(t, "first.com", site.Domain)

	_, err = SiteFromTargets(nil)
	assert.Error(t, err)
}

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, "productdetailpage", SanitizeLabel(" Product Detail\tPage "))
	assert.Equal(t, "home", SanitizeLabel("Home"))
	assert.Equal(t, "", SanitizeLabel("   "))
}
