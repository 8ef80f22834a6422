package project

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
)

func TestNew(t *testing.T) {
	p, err := New(" web ", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "WEB", p.ID)
	assert.Equal(t, "WEB", p.Name)
	assert.Equal(t, 1, p.NextSeq)
}

func TestValidateKey(t *testing.T) {
	for _, ok := range []string{"WEB", "A1", "PLATFORM10"} {
		assert.NoError(t, ValidateKey(ok), ok)
	}
	for _, bad := range []string{"", "W", "1WEB", "WEB-1", "TOOLONGKEY1"} {
		assert.ErrorIs(t, ValidateKey(bad), apierr.ErrInvalidInput, bad)
	}
}

func TestAllocateKey(t *testing.T) {
	p := &Project{ID: "API"}
	assert.Equal(t, "API-1", p.AllocateKey())
	assert.Equal(t, "API-2", p.AllocateKey())
	assert.Equal(t, 3, p.NextSeq)
}
