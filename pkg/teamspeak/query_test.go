package teamspeak

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeRoundTrip(t *testing.T) {
	tests := []string{
		"plain",
		"with space",
		`back\slash`,
		"pipe|and/slash",
		"tab\tand\nnewline",
	}
	for _, input := range tests {
		assert.Equal(t, input, unescape(escape(input)))
	}
}

func TestEscapeKnownSequences(t *testing.T) {
	assert.Equal(t, `Server\sAdmin`, escape("Server Admin"))
	assert.Equal(t, "Server Admin", unescape(`Server\sAdmin`))
}

func TestParseRow(t *testing.T) {
	row := parseRow(`sgid=6 name=Server\sAdmin type=1`)
	assert.Equal(t, "6", row["sgid"])
	assert.Equal(t, "Server Admin", row["name"])
	assert.Equal(t, "1", row["type"])
}

func TestParseRowFlagWithoutValue(t *testing.T) {
	row := parseRow("virtualserver_status=online flag")
	assert.Equal(t, "online", row["virtualserver_status"])
	assert.Contains(t, row, "flag")
}

func TestQueryErrorMessage(t *testing.T) {
	err := &queryError{ID: 520, Message: "invalid loginname or password"}
	assert.Contains(t, err.Error(), "520")
	assert.Contains(t, err.Error(), "invalid loginname or password")
}
