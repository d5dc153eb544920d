package program

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var (
	createdAt = time.Date(2024, 3, 10, 9, 13, 27, 0, time.Local)
)

func TestEveryMinuteMatchesEveryTick(t *testing.T) {
	cond := *EveryMinutes(1)

	for tick := 0; tick < 180; tick++ {
		now := createdAt.Add(time.Duration(tick)*time.Minute + 3*time.Second)
		assert.True(t, Matches(cond, createdAt, now), "tick %d", tick)
	}
}

func TestEveryNMinutesMatchesOnMultiples(t *testing.T) {
	for _, n := range []int{2, 3, 5, 60, 180} {
		cond := *EveryMinutes(n)

		for elapsed := 0; elapsed < 400; elapsed++ {
			label := fmt.Sprintf("n=%d elapsed=%d", n, elapsed)
			now := createdAt.Add(time.Duration(elapsed)*time.Minute + 59*time.Second)
			assert.Equal(t, elapsed%n == 0, Matches(cond, createdAt, now), label)
		}
	}
}

func TestEveryNMinutesTruncatesElapsedTime(t *testing.T) {
	cond := *EveryMinutes(5)

	assert.True(t, Matches(cond, createdAt, createdAt))
	assert.True(t, Matches(cond, createdAt, createdAt.Add(59*time.Second)))
	assert.False(t, Matches(cond, createdAt, createdAt.Add(time.Minute)))
	assert.True(t, Matches(cond, createdAt, createdAt.Add(5*time.Minute)))
	assert.True(t, Matches(cond, createdAt, createdAt.Add(5*time.Minute+59*time.Second)))
	assert.False(t, Matches(cond, createdAt, createdAt.Add(6*time.Minute)))
}

func TestEveryNMinutesIsAnchoredToCreation(t *testing.T) {
	cond := *EveryMinutes(10)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)

	assert.True(t, Matches(cond, now.Add(-30*time.Minute), now))
	assert.False(t, Matches(cond, now.Add(-35*time.Minute), now))
}

func TestAtFixedTime(t *testing.T) {
	cond := *At(17, 22)

	assert.True(t, Matches(cond, createdAt, time.Date(2024, 3, 10, 17, 22, 0, 0, time.Local)))
	assert.True(t, Matches(cond, createdAt, time.Date(2024, 3, 10, 17, 22, 59, 0, time.Local)))
	assert.True(t, Matches(cond, createdAt, time.Date(2024, 3, 11, 17, 22, 30, 0, time.Local)))
	assert.False(t, Matches(cond, createdAt, time.Date(2024, 3, 10, 17, 23, 0, 0, time.Local)))
	assert.False(t, Matches(cond, createdAt, time.Date(2024, 3, 10, 17, 21, 59, 0, time.Local)))
	assert.False(t, Matches(cond, createdAt, time.Date(2024, 3, 10, 5, 22, 0, 0, time.Local)))
}

func TestAtFixedTimeIgnoresCreation(t *testing.T) {
	cond := *At(6, 30)
	other := createdAt.Add(-97 * time.Hour)

	for minute := 0; minute < 24*60; minute++ {
		now := time.Date(2024, 3, 12, 0, 0, 15, 0, time.Local).Add(time.Duration(minute) * time.Minute)
		assert.Equal(t, Matches(cond, createdAt, now), Matches(cond, other, now), "now=%s", now)
	}
}

func TestOutOfRangeFixedTimeNeverMatches(t *testing.T) {
	cond := *At(24, 0)
	assert.False(t, cond.Valid())

	for minute := 0; minute < 24*60; minute++ {
		now := time.Date(2024, 3, 12, 0, 0, 0, 0, time.Local).Add(time.Duration(minute) * time.Minute)
		assert.False(t, Matches(cond, createdAt, now))
	}
}

func TestConditionValid(t *testing.T) {
	assert.True(t, EveryMinutes(1).Valid())
	assert.False(t, EveryMinutes(0).Valid())
	assert.True(t, At(0, 0).Valid())
	assert.True(t, At(23, 59).Valid())
	assert.False(t, At(23, 60).Valid())
	assert.False(t, At(-1, 0).Valid())
	assert.False(t, Matches(*EveryMinutes(0), createdAt, createdAt))
}
