package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPattern(t *testing.T) {
	assert.False(t, hasPattern("oracle:events"))
	assert.True(t, hasPattern("oracle:*"))
	assert.True(t, hasPattern("oracle:event?"))
	assert.True(t, hasPattern("oracle:[ab]"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "lock:oracle:market:1", lockKey("oracle:market:1"))
	assert.Equal(t, "ratelimit:10.0.0.1", rateLimitKey("10.0.0.1"))
}
