package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"nil", nil, nil},
		{"empty", []string{}, []string{}},
		{"trims whitespace", []string{"  kafka-1:9092 ", "kafka-2:9092"}, []string{"kafka-1:9092", "kafka-2:9092"}},
		{"drops duplicates preserving order", []string{"a", "b", "a", "c", "b"}, []string{"a", "b", "c"}},
		{"drops blanks", []string{"", "  ", "a"}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.input))
		})
	}
}
