package flushio_test

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/jcorbin/gopocket/internal/flushio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewWriteFlusher(t *testing.T) {
	var buf bytes.Buffer
	wf := flushio.NewWriteFlusher(&buf)
	_, err := io.WriteString(wf, "8\n")
	require.NoError(t, err)
	assert.Equal(t, "8\n", buf.String(), "expected buffers to be written through")

	bw := bufio.NewWriter(os.Stdout)
	assert.Equal(t, flushio.WriteFlusher(bw), flushio.NewWriteFlusher(bw), "expected flushers to pass through")
}

func Test_Tee(t *testing.T) {
	var display, transcript strings.Builder
	tee := flushio.Tee(
		flushio.NewWriteFlusher(&display),
		nil,
		flushio.NewWriteFlusher(&transcript),
	)
	_, err := io.WriteString(tee, "HELLO\n")
	require.NoError(t, err)
	require.NoError(t, tee.Flush())
	assert.Equal(t, "HELLO\n", display.String())
	assert.Equal(t, "HELLO\n", transcript.String())

	assert.Nil(t, flushio.Tee())
	one := flushio.NewWriteFlusher(&display)
	assert.Equal(t, one, flushio.Tee(nil, one))
}

type failWriter struct{ err error }

func (fw failWriter) Write(p []byte) (int, error) { return 0, fw.err }
func (fw failWriter) Flush() error                { return fw.err }

func Test_Tee_errors(t *testing.T) {
	var display strings.Builder
	errGone := errors.New("transcript gone")
	tee := flushio.Tee(flushio.NewWriteFlusher(&display), failWriter{errGone})

	_, err := io.WriteString(tee, "HI\n")
	assert.ErrorIs(t, err, errGone)
	assert.Equal(t, "HI\n", display.String(), "expected display to be written despite transcript failure")
	assert.ErrorIs(t, tee.Flush(), errGone)
}
