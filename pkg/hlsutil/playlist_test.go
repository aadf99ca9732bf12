package hlsutil

import (
	"regexp"
	"strings"
	"testing"
)

func trimLines(s string) string {
	return strings.TrimSpace(regexp.MustCompile(`(?m)^\s+`).ReplaceAllString(s, ""))
}

func TestPlaylistURLWalk(t *testing.T) {
	type args struct {
		input   string
		replace func(string) string
	}
	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "master: absolute URL",
			args: args{
				input: `#EXTM3U
					#EXT-X-VERSION:3
					#EXT-X-STREAM-INF:BANDWIDTH=1000000,RESOLUTION=1280x720
					http://example.com/720p.m3u8
					#EXT-X-STREAM-INF:BANDWIDTH=250000,RESOLUTION=640x360
					http://example.com/360p.m3u8?streamer=456
				`,
				replace: func(s string) string { return "!!" + s + "!!" },
			},
			want: `#EXTM3U
				#EXT-X-VERSION:3
				#EXT-X-STREAM-INF:BANDWIDTH=1000000,RESOLUTION=1280x720
				!!http://example.com/720p.m3u8!!
				#EXT-X-STREAM-INF:BANDWIDTH=250000,RESOLUTION=640x360
				!!http://example.com/360p.m3u8?streamer=456!!
			`,
		},
		{
			name: "media: key URI attributes",
			args: args{
				input: `#EXTM3U
					#EXT-X-KEY:METHOD=AES-128,URI="/check",IV=0x00000000000000000000000000000000
					#EXTINF:2,
					/01.ts
					#EXT-X-KEY:METHOD=AES-128,URI="/check
					#EXTINF:2,
					/02.ts
				`,
				replace: func(s string) string { return "foo" + s },
			},
			want: `#EXTM3U
				#EXT-X-KEY:METHOD=AES-128,URI="foo/check",IV=0x00000000000000000000000000000000
				#EXTINF:2,
				foo/01.ts
				#EXT-X-KEY:METHOD=AES-128,URI="/check
				#EXTINF:2,
				foo/02.ts
			`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trimLines(PlaylistURLWalk(tt.args.input, tt.args.replace))
			want := trimLines(tt.want)

			if got != want {
				t.Errorf("PlaylistURLWalk() = \n---------- have ----------\n%s\n---------- want ----------\n%s", got, want)
			}
		})
	}
}

func TestFirstReference(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOk bool
	}{
		{
			name:   "first of many",
			input:  "#EXTM3U\n#EXT-X-VERSION:3\nseg0.ts\nseg1.ts",
			want:   "seg0.ts",
			wantOk: true,
		},
		{
			name:   "surrounding whitespace and CRLF",
			input:  "#EXTM3U\r\n\r\n   \r\n  seg0.ts  \r\n",
			want:   "seg0.ts",
			wantOk: true,
		},
		{
			name:   "only comments",
			input:  "#EXTM3U\n#EXT-X-VERSION:3\n\n#EXT-X-ENDLIST\n",
			wantOk: false,
		},
		{
			name:   "empty",
			input:  "",
			wantOk: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstReference(tt.input)
			if ok != tt.wantOk || got != tt.want {
				t.Errorf("FirstReference() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestCredentialRewriter(t *testing.T) {
	type args struct {
		playlistURL string
		sourceURL   string
		ref         string
	}
	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "relative segment",
			args: args{"https://cdn.example/live/index.m3u8?token=abc", "https://cdn.example/live/index.m3u8?token=abc", "seg0.ts"},
			want: "https://cdn.example/live/seg0.ts?token=abc",
		},
		{
			name: "root relative segment",
			args: args{"https://cdn.example/live/index.m3u8?token=abc", "https://cdn.example/live/index.m3u8?token=abc", "/root/seg1.ts"},
			want: "https://cdn.example/root/seg1.ts?token=abc",
		},
		{
			name: "parent directory",
			args: args{"https://cdn.example/live/index.m3u8?token=abc", "https://cdn.example/live/index.m3u8?token=abc", "../up/720p.m3u8"},
			want: "https://cdn.example/up/720p.m3u8?token=abc",
		},
		{
			name: "source wins over reference",
			args: args{"https://cdn.example/live/index.m3u8?token=abc", "https://cdn.example/live/index.m3u8?token=abc", "https://other.example/seg2.ts?token=old&x=1"},
			want: "https://other.example/seg2.ts?token=abc&x=1",
		},
		{
			name: "variant query is not spread",
			args: args{"https://cdn.example/live/hi/index.m3u8?token=abc&v=1", "https://cdn.example/live/master.m3u8?token=abc", "seg0.ts"},
			want: "https://cdn.example/live/hi/seg0.ts?token=abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replace, err := CredentialRewriter(tt.args.playlistURL, tt.args.sourceURL)
			if err != nil {
				t.Fatal(err)
			}

			if got := replace(tt.args.ref); got != tt.want {
				t.Errorf("replace(%q) = %v, want %v", tt.args.ref, got, tt.want)
			}
		})
	}
}
