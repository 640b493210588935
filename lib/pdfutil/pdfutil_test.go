package pdfutil

import (
	"testing"
	"waterbills-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

func TestExtractLines(t *testing.T) {
	data := testutil.BuildPDF([]string{
		"CASA SIMPSON",
		"Periodo: 01.06.2024 al 30.06.2024",
		"Total: $482.50",
	})
	require.True(t, IsPDF(data))

	lines, err := ExtractLines(data)
	require.NoError(t, err)
	require.Equal(t, []string{
		"CASA SIMPSON",
		"Periodo: 01.06.2024 al 30.06.2024",
		"Total: $482.50",
	}, lines)
}

func TestExtractLinesRejectsHTML(t *testing.T) {
	data := []byte("<html><body>Session expired</body></html>")
	require.False(t, IsPDF(data))

	_, err := ExtractLines(data)
	require.Error(t, err)
}
