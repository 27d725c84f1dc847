package env

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "katwalk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestApplyFile(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	mqtt := fs.String("mqtt", "mqtt://localhost:1883/katwalk/", "")
	led := fs.Float64("led", 1, "")
	interval := fs.Duration("min-interval", 0, "")
	verbose := fs.Bool("verbose", false, "")
	require.NoError(t, fs.Parse([]string{"-led", "0.25"}))

	path := writeFile(t, "mqtt: mqtt://broker:1883/kw/\nled: 0.75\nmin-interval: 20ms\nverbose: true\n")
	require.NoError(t, ApplyFile(fs, path))
	require.Equal(t, "mqtt://broker:1883/kw/", *mqtt)
	require.Equal(t, 0.25, *led)
	require.Equal(t, 20*time.Millisecond, *interval)
	require.True(t, *verbose)
}

func TestApplyFileErrors(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Float64("led", 1, "")

	require.Error(t, ApplyFile(fs, writeFile(t, "unknown: 1\n")))
	require.Error(t, ApplyFile(fs, writeFile(t, "led: bright\n")))
	require.Error(t, ApplyFile(fs, writeFile(t, "- not a map\n")))
	require.Error(t, ApplyFile(fs, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestMachineID(t *testing.T) {
	id := MachineID()
	require.NotEmpty(t, id)
	require.LessOrEqual(t, len(id), 64)
	require.Equal(t, id, MachineID())
}
