package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEllipsis(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		maxLength int
		want      string
	}{
		{"short string untouched", "hello", 10, "hello"},
		{"exact length untouched", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"newlines flattened", "line one\nline two", 50, "line one line two"},
		{"carriage returns removed", "a\r\nb", 50, "a b"},
		{"surrounding spaces trimmed", "  padded  ", 50, "padded"},
		{"tiny max has no ellipsis", "hello", 3, "hel"},
		{"zero max", "hello", 0, ""},
		{"negative max", "hello", -1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ellipsis(tt.in, tt.maxLength))
		})
	}
}
