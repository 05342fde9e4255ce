package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	s := Every(30 * time.Second)
	assert.Equal(t, base.Add(30*time.Second), s.Next(base))
	assert.Equal(t, "every 30s", s.String())

	assert.Panics(t, func() { Every(0) })
}

func TestCron(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)

	s, err := Cron("*/5 * * * *")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC), s.Next(base))
	assert.Equal(t, "cron */5 * * * *", s.String())

	hourly, err := Cron("@hourly")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), hourly.Next(base))

	_, err = Cron("every tuesday")
	assert.Error(t, err)
}

func TestOnce(t *testing.T) {
	assert.True(t, Once().Next(time.Now()).IsZero())
	assert.Equal(t, "once", Once().String())
}
