package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStripsRoleTagAndFence(t *testing.T) {
	in := "assistant: ```markdown\nThe rain fell on the manor.\n```"
	out := Sanitize(in)
	assert.NotContains(t, out, "assistant:")
	assert.NotContains(t, out, "```")
}

func TestSanitizeCleansMojibake(t *testing.T) {
	in := "Itâ€™s a cold night at the manorÂ house."
	out := Sanitize(in)
	assert.Equal(t, "It’s a cold night at the manor house.", out)
}

func TestSanitizeIsIdempotent(t *testing.T) {
	in := "assistant: Itâ€™s a cold night.\n```\n"
	once := Sanitize(in)
	twice := Sanitize(once)
	assert.Equal(t, once, twice)
}

func TestResidueCountZeroForCleanText(t *testing.T) {
	assert.Equal(t, 0, ResidueCount("A perfectly ordinary sentence."))
}

func TestResidueCountDetectsReplacementCharacter(t *testing.T) {
	assert.Greater(t, ResidueCount("broken � text"), 0)
}
