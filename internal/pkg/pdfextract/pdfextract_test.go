package pdfextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7\n...")))
	assert.False(t, IsPDF([]byte("<html>")))
	assert.False(t, IsPDF(nil))
}

func TestExtractTextEmptyInput(t *testing.T) {
	text, err := ExtractText(nil)
	assert.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractTextRejectsGarbage(t *testing.T) {
	_, err := ExtractText([]byte("%PDF-1.4 not really a pdf"))
	assert.Error(t, err)
}
