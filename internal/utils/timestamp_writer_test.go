package utils

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
}

func TestTimestampWriter_StampsEachLine(t *testing.T) {
	var out bytes.Buffer
	w := NewTimestampWriter(&out, fixedNow)

	n, err := w.Write([]byte("Created: a.txt\nDeleted: b.txt\n"))
	require.NoError(t, err)
	assert.Equal(t, len("Created: a.txt\nDeleted: b.txt\n"), n)

	assert.Equal(t,
		"2024-05-01T10:30:00Z: Created: a.txt\n"+
			"2024-05-01T10:30:00Z: Deleted: b.txt\n",
		out.String())
}

func TestTimestampWriter_BuffersPartialLines(t *testing.T) {
	var out bytes.Buffer
	w := NewTimestampWriter(&out, fixedNow)

	_, err := w.Write([]byte("Create "))
	require.NoError(t, err)
	assert.Empty(t, out.String(), "partial line must not be flushed")

	_, err = w.Write([]byte("Folder: sub\nCop"))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T10:30:00Z: Create Folder: sub\n", out.String())

	require.NoError(t, w.Close())
	assert.Equal(t,
		"2024-05-01T10:30:00Z: Create Folder: sub\n"+
			"2024-05-01T10:30:00Z: Cop\n",
		out.String())
}

func TestTimestampWriter_CustomLayout(t *testing.T) {
	var out bytes.Buffer
	w := NewTimestampWriter(&out, fixedNow)
	w.SetLayout(time.DateTime)

	_, err := w.Write([]byte("Copied: a.txt\n"))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01 10:30:00: Copied: a.txt\n", out.String())
}

func TestTimestampWriter_CloseEmpty(t *testing.T) {
	var out bytes.Buffer
	w := NewTimestampWriter(&out, nil)
	require.NoError(t, w.Close())
	assert.Empty(t, out.String())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestTimestampWriter_PropagatesTargetError(t *testing.T) {
	w := NewTimestampWriter(failingWriter{}, fixedNow)
	_, err := w.Write([]byte("Deleted: x\n"))
	assert.EqualError(t, err, "disk full")
}
