package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatForCLI_NilErrorReturnsEmptyString(t *testing.T) {
	assert.Equal(t, "", FormatForCLI(nil))
}

func TestFormatForCLI_IndexErrorIncludesMessageSuggestionAndCode(t *testing.T) {
	err := Uninitialised()

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: ")
	assert.Contains(t, out, err.Message)
	assert.Contains(t, out, "Hint: "+err.Suggestion)
	assert.Contains(t, out, "Code: "+ErrCodeUninitialised)
}

func TestFormatForCLI_PlainErrorIsWrappedAsInternal(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))

	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "Code: "+ErrCodeInternal)
}
