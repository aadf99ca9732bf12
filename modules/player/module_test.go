package player

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resolver(_ context.Context, pId string) (*Page, error) {
	switch pId {
	case "news":
		return &Page{
			Name:         "News <live>",
			Announcement: "Back at 8pm",
			Source:       "/hlsproxy/news/index.m3u8",
			Poster:       "/api/players/1/cover",
		}, nil
	case "broken":
		return nil, errors.New("db is gone")
	default:
		return nil, ErrPlayerNotFound
	}
}

func TestServeHTTP(t *testing.T) {
	m := New("/player", &Config{HlsJsURL: "/static/hls.js"}, resolver)

	tests := []struct {
		name     string
		target   string
		want     int
		contains []string
	}{
		{
			name:   "rendered",
			target: "/player/news",
			want:   http.StatusOK,
			contains: []string{
				"<title>News &lt;live&gt;</title>",
				`<div class="announcement">Back at 8pm</div>`,
				"var source = ",
				"index.m3u8",
				`poster="/api/players/1/cover"`,
				`<script src="/static/hls.js"></script>`,
			},
		},
		{name: "trailing slash", target: "/player/news/", want: http.StatusOK},
		{name: "unknown", target: "/player/missing", want: http.StatusNotFound},
		{name: "invalid pId", target: "/player/a.b", want: http.StatusBadRequest},
		{name: "resolver failure", target: "/player/broken", want: http.StatusInternalServerError},
		{name: "outside of prefix", target: "/other/news", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.want, rec.Code)
			for _, s := range tt.contains {
				assert.Contains(t, rec.Body.String(), s)
			}
		})
	}
}
