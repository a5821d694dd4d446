package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown_NonTerminalIsRaw(t *testing.T) {
	var buf bytes.Buffer

	out, err := Markdown(&buf, "# Rome\n\n- Day 1")
	require.NoError(t, err)
	assert.Equal(t, "# Rome\n\n- Day 1", out)
}

func TestStyled(t *testing.T) {
	out, err := Styled("# Rome\n\nColosseum at dawn.", 40)
	require.NoError(t, err)
	assert.Contains(t, out, "Rome")
	assert.Contains(t, out, "Colosseum")
}
