package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContactStatusValid(t *testing.T) {
	for _, s := range ContactStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, ContactStatus("").Valid())
	assert.False(t, ContactStatus("Cliente").Valid())
}
