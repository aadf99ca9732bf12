package hlsutil

import (
	"bufio"
	"net/url"
	"regexp"
	"strings"
)

var uriAttrRegex = regexp.MustCompile(`URI="([^"]*)"`)

// PlaylistURLWalk calls replace for every URI found in playlist: plain URI
// lines and URI="..." attributes of tags. Everything else is kept as is.
func PlaylistURLWalk(playlist string, replace func(string) string) string {
	lines := strings.Split(playlist, "\n")

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			lines[i] = uriAttrRegex.ReplaceAllStringFunc(line, func(attr string) string {
				match := uriAttrRegex.FindStringSubmatch(attr)
				return `URI="` + replace(match[1]) + `"`
			})
			continue
		}

		lines[i] = strings.Replace(line, trimmed, replace(trimmed), 1)
	}

	return strings.Join(lines, "\n")
}

// FirstReference returns the first line that is neither blank nor a comment.
func FirstReference(playlist string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(playlist))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			return line, true
		}
	}

	return "", false
}

// IsMasterPlaylist reports whether playlist lists variant streams.
func IsMasterPlaylist(playlist string) bool {
	return strings.Contains(playlist, "#EXT-X-STREAM-INF")
}

// CredentialRewriter returns a replace function for PlaylistURLWalk which
// makes every reference absolute against playlistURL and carries over query
// parameters of sourceURL, so that tokens authorize every sub-request. Query
// of playlistURL itself, e.g. a variant picked from master, is not spread.
func CredentialRewriter(playlistURL, sourceURL string) (func(string) string, error) {
	base, err := url.Parse(playlistURL)
	if err != nil {
		return nil, err
	}

	source, err := url.Parse(sourceURL)
	if err != nil {
		return nil, err
	}

	params := source.Query()

	return func(ref string) string {
		u, err := base.Parse(ref)
		if err != nil {
			return ref
		}

		if len(params) > 0 {
			mergeValues(u, params)
		}

		return u.String()
	}, nil
}
