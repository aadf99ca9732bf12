package hlscapture

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func manifestServer(t *testing.T, playlists map[string]string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := playlists[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestResolveFirstSegment(t *testing.T) {
	server := manifestServer(t, map[string]string{
		"/path/stream.m3u8":   "#EXTM3U\n#EXT-X-VERSION:3\nseg0.ts\nseg1.ts",
		"/path/absolute.m3u8": "#EXTM3U\n#EXTINF:6,\nhttp://origin.example/live/seg9.ts?token=old&seq=9\n",
		"/path/rooted.m3u8":   "#EXTM3U\n#EXTINF:6,\n/other/seg0.ts\n",
		"/path/nested.m3u8":   "#EXTM3U\n\n   \n#EXTINF:6,\n  ../up/seg0.ts  \n",
		"/path/comments.m3u8": "#EXTM3U\n#EXT-X-VERSION:3\n\n#EXT-X-ENDLIST\n",
		"/master.m3u8": "#EXTM3U\n" +
			"#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=1280x720\n" +
			"hd/index.m3u8\n" +
			"#EXT-X-STREAM-INF:BANDWIDTH=640000,RESOLUTION=640x360\n" +
			"sd/index.m3u8\n",
		"/hd/index.m3u8": "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6,\nchunk0.ts\n",
	})

	tests := []struct {
		name     string
		manifest string
		want     string
		wantErr  error
	}{
		{
			name:     "relative segment with token",
			manifest: server.URL + "/path/stream.m3u8?token=abc",
			want:     server.URL + "/path/seg0.ts?token=abc",
		},
		{
			name:     "absolute segment, manifest parameters win",
			manifest: server.URL + "/path/absolute.m3u8?token=abc",
			want:     "http://origin.example/live/seg9.ts?seq=9&token=abc",
		},
		{
			name:     "absolute segment without manifest parameters",
			manifest: server.URL + "/path/absolute.m3u8",
			want:     "http://origin.example/live/seg9.ts?token=old&seq=9",
		},
		{
			name:     "root relative segment",
			manifest: server.URL + "/path/rooted.m3u8",
			want:     server.URL + "/other/seg0.ts",
		},
		{
			name:     "blank lines and parent directory",
			manifest: server.URL + "/path/nested.m3u8?a=1",
			want:     server.URL + "/up/seg0.ts?a=1",
		},
		{
			name:     "master playlist follows first variant",
			manifest: server.URL + "/master.m3u8?token=abc",
			want:     server.URL + "/hd/chunk0.ts?token=abc",
		},
		{
			name:     "only comments",
			manifest: server.URL + "/path/comments.m3u8",
			wantErr:  ErrNoSegmentFound,
		},
		{
			name:     "missing manifest",
			manifest: server.URL + "/path/missing.m3u8",
			wantErr:  ErrManifestFetch,
		},
	}

	capturer := New(&Config{HTTPClient: server.Client()})
	defer capturer.Shutdown()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := capturer.ResolveFirstSegment(context.Background(), tt.manifest)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveFirstSegment() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveFirstSegment() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveFirstSegment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveFirstSegmentQuerySuperset(t *testing.T) {
	server := manifestServer(t, map[string]string{
		"/live/index.m3u8": "#EXTM3U\n#EXTINF:6,\nseg0.ts?token=segment&part=1\n",
	})

	capturer := New(&Config{HTTPClient: server.Client()})
	defer capturer.Shutdown()

	manifestURL := server.URL + "/live/index.m3u8?token=manifest&expires=123&sig=xyz"
	got, err := capturer.ResolveFirstSegment(context.Background(), manifestURL)
	if err != nil {
		t.Fatalf("ResolveFirstSegment() error = %v", err)
	}

	segment, err := url.Parse(got)
	if err != nil {
		t.Fatalf("ResolveFirstSegment() returned invalid URL %q", got)
	}
	if !segment.IsAbs() {
		t.Errorf("ResolveFirstSegment() = %v, want absolute URL", got)
	}

	manifest, _ := url.Parse(manifestURL)
	for key := range manifest.Query() {
		if segment.Query().Get(key) != manifest.Query().Get(key) {
			t.Errorf("segment %s = %q, want %q", key, segment.Query().Get(key), manifest.Query().Get(key))
		}
	}
	if segment.Query().Get("part") != "1" {
		t.Errorf("segment lost its own parameter: %v", got)
	}
}
