package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLogWriter(t *testing.T) {
	var out bytes.Buffer
	w := LogWriter(zerolog.New(&out))

	n, err := w.Write([]byte("first line\n\n  second line  \n"))
	assert.NoError(t, err)
	assert.Equal(t, 28, n)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if assert.Len(t, lines, 2) {
		assert.Contains(t, lines[0], `"message":"first line"`)
		assert.Contains(t, lines[1], `"message":"second line"`)
		assert.Contains(t, lines[1], `"output":"stderr"`)
	}
}
