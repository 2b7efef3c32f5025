package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementcell/campus-api/internal/masking"
	"github.com/placementcell/campus-api/internal/policy"
)

var (
	header = []string{"name", "email", "password", "aadhaarNumber", "phoneNo"}
	rows   = [][]string{
		{"Asha", "john.doe@example.com", "hunter2", "1234 5678 9012", "+91 98765 43210"},
		{"Ravi", "", "x"},
	}
)

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, header, rows))

	// Role-less export: only AlwaysMask columns are masked.
	assert.Equal(t,
		"name,email,aadhaarNumber,phoneNo\n"+
			"Asha,john.doe@example.com,XXXX-XXXX-9012,+91 98765 43210\n"+
			"Ravi,,,\n",
		buf.String())
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestWriteCSV_MatchesMaskField(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []string{"panNumber"}, [][]string{{"ABCDE1234F"}}))
	assert.Equal(t, "panNumber\n"+masking.MaskField("panNumber", "ABCDE1234F")+"\n", buf.String())
}

func TestExporter_Roles(t *testing.T) {
	t.Parallel()

	student := policy.RoleStudent
	teacher := policy.RoleTeacher

	tests := []struct {
		name     string
		role     *policy.Role
		expected string
	}{
		{
			name:     "student",
			role:     &student,
			expected: "Asha,j******e@example.com,XXXX-XXXX-9012,******3210\n",
		},
		{
			name:     "teacher",
			role:     &teacher,
			expected: "Asha,john.doe@example.com,XXXX-XXXX-9012,******3210\n",
		},
		{
			name:     "admin bypass",
			role:     nil,
			expected: "Asha,john.doe@example.com,1234 5678 9012,+91 98765 43210\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			err := New(nil, nil).Write(&buf, tt.role, header, rows[:1])
			require.NoError(t, err)
			assert.Equal(t, "name,email,aadhaarNumber,phoneNo\n"+tt.expected, buf.String())
		})
	}
}

func TestExporter_QuotesCells(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"name", "note"}, [][]string{{"Doe, Jane", "said \"hi\""}})
	require.NoError(t, err)
	assert.Equal(t, "name,note\n\"Doe, Jane\",\"said \"\"hi\"\"\"\n", buf.String())
}

func TestExporter_RowTooWide(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"a"}, [][]string{{"1", "2"}})
	assert.True(t, errors.Is(err, ErrRowWidth))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestExporter_WriteError(t *testing.T) {
	t.Parallel()

	err := WriteCSV(failingWriter{}, []string{"a"}, [][]string{{"1"}})
	assert.Error(t, err)
}
