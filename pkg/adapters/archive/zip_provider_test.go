package archive_test

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renjie/featex/pkg/adapters/archive"
)

func writeTestArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	entries := map[string]string{
		"MachineA_PhaseCount_2_x.csv": "SensorDateTime,P_kW\n",
		"MachineB_PhaseCount_3_x.csv": "SensorDateTime,P_kW\n",
		"README.txt":                  "not an entity",
	}
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestZipProvider(t *testing.T) {
	provider, err := archive.OpenZip(writeTestArchive(t))
	require.NoError(t, err)
	defer provider.Close()

	entities := provider.Entities()
	assert.Len(t, entities, 2)
	assert.NotContains(t, entities, "README.txt")

	rc, err := provider.Open("MachineA_PhaseCount_2_x.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "SensorDateTime,P_kW\n", string(data))

	_, err = provider.Open("Nope.csv")
	assert.Error(t, err)
}

func TestOpenZipMissingFile(t *testing.T) {
	_, err := archive.OpenZip(filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}
