package hlscapture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPlaylist(t *testing.T) {
	server := manifestServer(t, map[string]string{
		"/live/index.m3u8": "#EXTM3U\n" +
			"#EXTINF:6,\n" +
			"seg0.ts\n" +
			"#EXTINF:6,\n" +
			"/root/seg1.ts?part=1\n",
		"/live/master.m3u8": "#EXTM3U\n" +
			"#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=1280x720\n" +
			"hi/index.m3u8?v=1\n" +
			"#EXT-X-STREAM-INF:BANDWIDTH=640000,RESOLUTION=640x360\n" +
			"lo/index.m3u8?v=1\n",
		"/live/hi/index.m3u8": "#EXTM3U\n" +
			"#EXT-X-KEY:METHOD=AES-128,URI=\"key.bin\"\n" +
			"#EXTINF:6,\n" +
			"seg0.ts?token=old\n" +
			"#EXTINF:6,\n" +
			"http://other.example/seg1.ts\n",
	})

	tests := []struct {
		name      string
		sourceURL string
		want      []string
		wantErr   error
	}{
		{
			name:      "media playlist",
			sourceURL: server.URL + "/live/index.m3u8?token=abc",
			want: []string{
				"\n" + server.URL + "/live/seg0.ts?token=abc\n",
				"\n" + server.URL + "/root/seg1.ts?part=1&token=abc\n",
			},
		},
		{
			name:      "master descends into first variant",
			sourceURL: server.URL + "/live/master.m3u8?token=abc",
			want: []string{
				`URI="` + server.URL + `/live/hi/key.bin?token=abc"`,
				"\n" + server.URL + "/live/hi/seg0.ts?token=abc\n",
				"\nhttp://other.example/seg1.ts?token=abc\n",
			},
		},
		{
			name:      "missing manifest",
			sourceURL: server.URL + "/live/missing.m3u8?token=abc",
			wantErr:   ErrManifestFetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewFFmpegExtractor("ffmpeg", "ffprobe", server.Client(), time.Second)

			playlistPath, err := e.localPlaylist(context.Background(), tt.sourceURL)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.NoError(t, e.Dispose())
				return
			}
			require.NoError(t, err)

			data, err := os.ReadFile(playlistPath)
			require.NoError(t, err)

			playlist := string(data)
			for _, line := range tt.want {
				assert.Contains(t, playlist, line)
			}
			assert.NotContains(t, playlist, "token=old")
			assert.NotContains(t, playlist, "v=1")
			assert.False(t, strings.Contains(playlist, "lo/index.m3u8"))

			workDir := filepath.Dir(playlistPath)
			require.NoError(t, e.Dispose())

			_, err = os.Stat(workDir)
			assert.True(t, os.IsNotExist(err), "workspace %s was not removed", workDir)

			// disposing again is fine
			assert.NoError(t, e.Dispose())
		})
	}
}

func TestLocalPlaylistAfterDispose(t *testing.T) {
	server := manifestServer(t, map[string]string{
		"/live/index.m3u8": "#EXTM3U\n#EXTINF:6,\nseg0.ts\n",
	})

	e := NewFFmpegExtractor("ffmpeg", "ffprobe", server.Client(), time.Second)
	require.NoError(t, e.Dispose())

	_, err := e.localPlaylist(context.Background(), server.URL+"/live/index.m3u8")
	assert.ErrorIs(t, err, ErrDecode)

	err = e.Load(context.Background(), server.URL+"/live/index.m3u8")
	assert.ErrorIs(t, err, ErrDecode)
}
