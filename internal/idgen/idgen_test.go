package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixedIDs(t *testing.T) {
	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"reading", NewReading, PrefixReading},
		{"command", NewCommand, PrefixCommand},
		{"request", NewRequest, PrefixRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.gen()
			require.True(t, strings.HasPrefix(id, tt.prefix), id)

			_, err := uuid.Parse(strings.TrimPrefix(id, tt.prefix))
			assert.NoError(t, err)
			assert.NotEqual(t, id, tt.gen())
		})
	}
}
