package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	triggers, ok := c["triggers"]
	require.True(t, ok)
	assert.Len(t, triggers.Items, 17)

	codes := triggers.Codes()
	assert.Equal(t, "AFTER_CONNECTION", codes[0])
	assert.Equal(t, "ON_DATA_EXPORT", codes[len(codes)-1])
	assert.Contains(t, c["field_model_types"].Codes(), "DATE_SELECT")
}

func TestParseRejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte(`
- name: a
  items: [{code: X}, {code: X}]
`))
	assert.ErrorContains(t, err, "duplicate code")

	_, err = Parse([]byte(`
- name: a
- name: a
`))
	assert.ErrorContains(t, err, "duplicate enum directory")
}

func TestLoadEnumCatalogFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "units.yaml"), []byte("items:\n  - {code: DAY}\n  - {code: WEEK}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	c, err := LoadEnumCatalog(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"units"}, c.Names())
	assert.Equal(t, []string{"DAY", "WEEK"}, c["units"].Codes())
}
