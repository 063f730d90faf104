package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFTPURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "standard ftp url",
			url:      "ftp://ftp.geonames.org/export/dump/cities15000.zip",
			wantHost: "ftp.geonames.org:21",
			wantPath: "/export/dump/cities15000.zip",
		},
		{
			name:     "explicit port preserved",
			url:      "ftp://mirror.example.com:2121/data/archive.zip",
			wantHost: "mirror.example.com:2121",
			wantPath: "/data/archive.zip",
		},
		{
			name:    "http scheme rejected",
			url:     "http://example.com/file.zip",
			wantErr: true,
		},
		{
			name:    "missing path rejected",
			url:     "ftp://example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := parseFTPURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}
