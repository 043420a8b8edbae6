package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loanDataset() Dataset {
	return Dataset{
		Headers: []string{"Student", "Book", "Status"},
		Rows: []map[string]string{
			{"Student": "Ana Souza", "Book": "Dom Casmurro", "Status": "open"},
			{"Student": "Bruno Lima", "Book": "Quincas Borba"},
		},
	}
}

func TestCSVRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(loanDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student,Book,Status", lines[0])
	assert.Equal(t, "Ana Souza,Dom Casmurro,open", lines[1])
	// Missing keys become empty cells, keeping columns aligned.
	assert.Equal(t, "Bruno Lima,Quincas Borba,", lines[2])
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	payload, err := NewPDFExporter().Render(loanDataset(), "Loans")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestPDFRenderRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "Loans")
	assert.Error(t, err)
}
