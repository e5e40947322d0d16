package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
)

func TestExtractAssetID(t *testing.T) {
	tests := []struct {
		locator string
		want    string
		wantErr bool
	}{
		{"photos/12345/medium.jpg", "12345", false},
		{"/photos/12345/", "12345", false},
		{"https://static.example.org/photos/987/original.png", "987", false},
		{"a/photos/1/photos/2", "1", false},
		{"photos", "", true},
		{"photos/", "", true},
		{"photos//x", "", true},
		{"images/12345/medium.jpg", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			got, err := ExtractAssetID(tt.locator)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errs.ErrorTypeLocator, errs.TypeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHeaderPolicy(t *testing.T) {
	p, err := ParseHeaderPolicy("")
	require.NoError(t, err)
	assert.Equal(t, HeaderAuto, p)

	p, err = ParseHeaderPolicy("ALWAYS")
	require.NoError(t, err)
	assert.Equal(t, HeaderAlways, p)

	_, err = ParseHeaderPolicy("sometimes")
	assert.Error(t, err)
}

func TestReadHeaderPolicies(t *testing.T) {
	withHeader := "url,class\nphotos/1/a.jpg,Oak\nphotos/2/b.jpg,Fern\n"
	noHeader := "photos/1/a.jpg,Oak\nphotos/2/b.jpg,Fern\n"

	tests := []struct {
		name   string
		input  string
		policy HeaderPolicy
		want   []string
	}{
		{"auto skips header", withHeader, HeaderAuto, []string{"1", "2"}},
		{"auto keeps data row", noHeader, HeaderAuto, []string{"1", "2"}},
		{"always drops first data row", noHeader, HeaderAlways, []string{"2"}},
		{"never keeps header row", withHeader, HeaderNever, []string{"url", "1", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Read(strings.NewReader(tt.input), tt.policy, logger.NewNopLogger())
			require.NoError(t, err)

			var got []string
			for _, e := range entries {
				if id, err := ExtractAssetID(e.Locator); err == nil {
					got = append(got, id)
				} else {
					got = append(got, e.Locator)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFiltersRows(t *testing.T) {
	input := strings.Join([]string{
		"locator,label",
		"photos/1/a.jpg,Quercus robur",
		"photos/2/b.jpg",
		",Fern",
		"photos/3/c.jpg,",
		"photos/4/d.jpg,Moss,extra,columns",
		"",
		`"photos/5/e.jpg","Épervier d'Europe"`,
	}, "\n")

	entries, err := Read(strings.NewReader(input), HeaderAuto, logger.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, Entry{Locator: "photos/1/a.jpg", Label: "Quercus robur", Line: 2}, entries[0])
	assert.Equal(t, "Moss", entries[1].Label)
	assert.Equal(t, 6, entries[1].Line)
	assert.Equal(t, "Épervier d'Europe", entries[2].Label)
}

func TestReadKeepsUnparsableLocators(t *testing.T) {
	entries, err := Read(strings.NewReader("photos/1/a.jpg,Oak\nnot-a-locator,Fern\n"), HeaderNever, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, entries, 2, "locator validation belongs to the orchestrator")
}

func TestReadStripsBOM(t *testing.T) {
	entries, err := Read(strings.NewReader("\ufeffphotos/1/a.jpg,Oak\n"), HeaderAuto, logger.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "photos/1/a.jpg", entries[0].Locator)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.csv")
	require.NoError(t, os.WriteFile(path, []byte("url,label\nphotos/7/x.jpg,Birch\n"), 0644))

	entries, err := ReadFile(path, HeaderAuto, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"), HeaderAuto, nil)
	assert.Equal(t, errs.ErrorTypeIO, errs.TypeOf(err))
}

func TestReadLogsSkippedFirstRecord(t *testing.T) {
	log := logger.NewTestLogger()
	entries, err := Read(strings.NewReader("https://cdn.example/42/a.jpg,Oak\nphotos/1/b.jpg,Fern\n"), HeaderAuto, log)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Fern", entries[0].Label)
	assert.True(t, log.HasMessage("First record treated as header"))

	log = logger.NewTestLogger()
	_, err = Read(strings.NewReader("photos/1/b.jpg,Fern\n"), HeaderAuto, log)
	require.NoError(t, err)
	assert.False(t, log.HasMessage("First record treated as header"))
}
