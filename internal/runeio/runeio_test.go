package runeio_test

import (
	"strings"
	"testing"

	"github.com/jcorbin/gopocket/internal/runeio"
	"github.com/stretchr/testify/assert"
)

func Test_CaretForm(t *testing.T) {
	for _, tc := range []struct {
		r    rune
		want string
	}{
		{0x00, "^@"},
		{0x03, "^C"},
		{0x1b, "^["},
		{0x7f, "^?"},
		{0x9b, "^[["},
		{'A', ""},
		{'£', ""},
	} {
		assert.Equal(t, tc.want, runeio.CaretForm(tc.r), "caret form of %U", tc.r)
	}
}

func Test_WriteVisibleRune(t *testing.T) {
	var sb strings.Builder
	for _, r := range "HI\x1b[2J\n£" {
		_, err := runeio.WriteVisibleRune(&sb, r)
		assert.NoError(t, err)
	}
	assert.Equal(t, "HI^[[2J\n£", sb.String())
}
