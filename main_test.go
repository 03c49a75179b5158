package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func decodePNG(t *testing.T, path string) (int, int) {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	img, err := png.Decode(file)
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestRenderCommand_DefaultProduct(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out", "beauty.png")

	err := runCommand(t, "render",
		"--output", output,
		"--width", "16",
		"--height", "12",
		"--samples", "2",
		"--max-passes", "2",
		"--integrator", "directLighting",
		"--log-level", "warn",
		"--env-file", "",
	)
	require.NoError(t, err)

	width, height := decodePNG(t, output)
	assert.Equal(t, 16, width)
	assert.Equal(t, 12, height)
}

func TestRenderCommand_SettingsFileProducts(t *testing.T) {
	dir := t.TempDir()
	color := filepath.Join(dir, "color.png")
	depth := filepath.Join(dir, "depth.png")
	settingsPath := filepath.Join(dir, "settings.yaml")
	yaml := `
integratorName: visualizer
convergedSamplesPerPixel: 1
experimental:renderSpec:
  camera: /cameras/render
  renderProducts:
    - name: color
      path: ` + color + `
      aovs: [color]
    - name: depth
      path: ` + depth + `
      aovs: [depth]
`
	require.NoError(t, os.WriteFile(settingsPath, []byte(yaml), 0o600))

	err := runCommand(t, "render",
		"--settings", settingsPath,
		"--width", "8",
		"--height", "8",
		"--log-level", "warn",
		"--env-file", "",
	)
	require.NoError(t, err)

	for _, path := range []string{color, depth} {
		width, height := decodePNG(t, path)
		assert.Equal(t, 8, width, path)
		assert.Equal(t, 8, height, path)
	}
}

func TestRenderCommand_InvalidResolution(t *testing.T) {
	err := runCommand(t, "render", "--width", "0", "--env-file", "")
	assert.Error(t, err)
}

func TestRenderCommand_MissingSettingsFile(t *testing.T) {
	err := runCommand(t, "render", "--settings", filepath.Join(t.TempDir(), "missing.yaml"), "--env-file", "")
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, loadEnvFile(""))
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RENDERPASS_TEST_WIDTH=32\n"), 0o600))
	t.Setenv("RENDERPASS_TEST_WIDTH", "")
	require.NoError(t, os.Unsetenv("RENDERPASS_TEST_WIDTH"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "32", os.Getenv("RENDERPASS_TEST_WIDTH"))
}
