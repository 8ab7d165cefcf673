package logger

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFields(t *testing.T) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	log := New(l)

	log.Info("marked package", "package", "linux-image-6.1.0-9-amd64", "action", "delete")
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "marked package", entry.Message)
	assert.Equal(t, "linux-image-6.1.0-9-amd64", entry.Data["package"])
	assert.Equal(t, "delete", entry.Data["action"])

	log.With("host", "localhost").Debug("running command", "command")
	entry = hook.LastEntry()
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Equal(t, "localhost", entry.Data["host"])
	assert.Equal(t, "command", entry.Data["!BADKEY"])
}

func TestConfigure(t *testing.T) {
	l := logrus.New()

	closer, err := Configure(l, true, "")
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	path := filepath.Join(t.TempDir(), "kerneltidy.log")
	closer, err = Configure(l, false, path)
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.FileExists(t, path)
}

func TestConfigureBadPath(t *testing.T) {
	_, err := Configure(logrus.New(), false, filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}
