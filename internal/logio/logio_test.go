package logio_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jcorbin/gopocket/internal/logio"
	"github.com/stretchr/testify/assert"
)

func Test_Logger(t *testing.T) {
	var out strings.Builder
	log := logio.NewLogger(&out)

	log.Printf("INFO", "loaded %v programs", 3)
	trace := log.Leveledf("TRACE")
	trace("exec @%v %v", 18, "PRINT")
	log.Printf("", "plain\n")
	assert.Equal(t, 0, log.ExitCode())

	log.ErrorIf(nil)
	assert.Equal(t, 0, log.ExitCode())
	log.ErrorIf(errors.New("out of working memory"))
	assert.Equal(t, 1, log.ExitCode())

	assert.Equal(t, strings.Join([]string{
		"INFO: loaded 3 programs",
		"TRACE: exec @18 PRINT",
		"plain",
		"ERROR: out of working memory",
		"",
	}, "\n"), out.String())
}

func Test_Writer(t *testing.T) {
	var lines []string
	lw := &logio.Writer{Logf: func(mess string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(mess, args...))
	}}

	fmt.Fprintf(lw, "HELLO\nWOR")
	assert.Equal(t, []string{"HELLO"}, lines)
	fmt.Fprintf(lw, "LD\n8")
	assert.Equal(t, []string{"HELLO", "WORLD"}, lines)
	assert.NoError(t, lw.Close())
	assert.Equal(t, []string{"HELLO", "WORLD", "8"}, lines)
}
