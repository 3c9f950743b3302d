package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		display string
		address string
		want    string
	}{
		{"explicit name wins", "  Ravi Kumar ", "ravi@example.com", "Ravi Kumar"},
		{"falls back to local part", "", "meera.n@example.com", "meera.n"},
		{"anonymous without email", "", "", "Anonymous"},
		{"anonymous when no local part", "", "@example.com", "Anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.display, tt.address))
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("donor@feedra.in"))
	assert.True(t, Valid(" donor@feedra.in "))
	assert.False(t, Valid("donor@feedra"))
	assert.False(t, Valid("donor feedra@x.in"))
	assert.False(t, Valid(""))
}
