package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePromptText(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidatePromptText("Write a function to reverse a string"))
	assert.Error(t, ValidatePromptText(""))
	assert.Error(t, ValidatePromptText("   \t\n  "))
	assert.Error(t, ValidatePromptText(strings.Repeat("a", MaxPromptLen+1)))
	assert.NoError(t, ValidatePromptText(strings.Repeat("a", MaxPromptLen)))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "hello world", NormalizeText("  hello world  \n"))
}
