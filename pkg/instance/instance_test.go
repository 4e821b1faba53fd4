package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrefersDyno(t *testing.T) {
	t.Setenv("DYNO", "web.1")
	t.Setenv("RETAILHIVE_INSTANCE_ID", "explicit")
	assert.Equal(t, "web.1", GetID("api"))
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("DYNO", "")
	t.Setenv("RETAILHIVE_INSTANCE_ID", " ")
	assert.Equal(t, "api-local", GetID("api"))
	assert.Equal(t, "retailhive-local", GetID(""))

	t.Setenv("RETAILHIVE_INSTANCE_ID", "worker-2")
	assert.Equal(t, "worker-2", GetID("worker"))
}
