package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/catalystcommunity/gpu-orchestrator/internal/workerspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ecosystem.manifest")

	b := NewBuilder(testBuildOptions())
	m, err := b.Build([]workerspec.Spec{{Type: "comfyui", Count: 1}})
	require.NoError(t, err)

	require.NoError(t, Emit(m, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Manifest
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded.Apps, 3)
	assert.Len(t, decoded.ServicePairs, 1)
	assert.Equal(t, "health-server", decoded.Apps[0].Name)

	// No temp files left behind after a successful publish.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEmitCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "ecosystem.manifest")

	m := &Manifest{}
	require.NoError(t, Emit(m, path))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestEncodeStable(t *testing.T) {
	faker := gofakeit.New(7)
	m := &Manifest{
		Apps: []ProcessDescriptor{
			{
				Name: "worker",
				Env: map[string]string{
					"ZEBRA":  faker.Word(),
					"ALPHA":  faker.Word(),
					"MIDDLE": faker.Word(),
				},
			},
		},
	}

	first, err := Encode(m)
	require.NoError(t, err)
	second, err := Encode(m)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Map keys serialize sorted, so env ordering never depends on insertion.
	assert.Less(t, strings.Index(string(first), "ALPHA"), strings.Index(string(first), "ZEBRA"))
	assert.True(t, strings.HasSuffix(string(first), "\n"))
}
