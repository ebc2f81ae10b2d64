package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "analytics:user:u1", AnalyticsKey("u1"))
	assert.Equal(t, "analytics:gen:u1", AnalyticsGenKey("u1"))
	assert.Equal(t, "storage:user:u1", StorageStatsKey("u1"))
	assert.Equal(t, "storage:global", StorageStatsKey(""))
}
