package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCleaner_SweepWithMaxAge(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	setNow(t, now)

	sweeper := &mockSweeper{}
	sweeper.On("Sweep", mock.Anything, now.Add(-10*time.Minute)).Return(1, nil).Once()

	cleaner := NewCleaner(map[string]Sweeper{"dialogs": sweeper}, testLogger(), time.Hour, time.Minute)

	assert.Equal(t, 1, cleaner.Sweep(context.Background(), 10*time.Minute))
	assert.Equal(t, 0, cleaner.Sweep(context.Background(), 0))
	sweeper.AssertExpectations(t)
}
