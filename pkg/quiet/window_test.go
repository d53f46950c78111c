package quiet

import (
	"testing"
	"time"

	"github.com/borgmon/alert-keeper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 14, hour, minute, 0, 0, time.Local)
}

func window(fromH, fromM, toH, toM int) models.QuietWindow {
	return models.QuietWindow{Enabled: true, FromHour: fromH, FromMinute: fromM, ToHour: toH, ToMinute: toM}
}

func TestIsSilent_OvernightWindow(t *testing.T) {
	w := window(22, 0, 7, 0)

	now := at(23, 30)
	assert.True(t, IsSilent(w, now))
	assert.Equal(t, now.Add(7*time.Hour+30*time.Minute), SilentUntil(w, now))
}

func TestIsSilent_EarlySideOfWrappedWindow(t *testing.T) {
	w := window(22, 0, 7, 0)

	now := at(3, 0)
	assert.True(t, IsSilent(w, now))
	assert.Equal(t, now.Add(4*time.Hour), SilentUntil(w, now))

	assert.False(t, IsSilent(w, at(7, 1)))
	assert.False(t, IsSilent(w, at(12, 0)))
	assert.False(t, IsSilent(w, at(21, 59)))
}

func TestIsSilent_DaytimeWindow(t *testing.T) {
	w := window(9, 0, 17, 30)

	assert.False(t, IsSilent(w, at(8, 59)))
	assert.True(t, IsSilent(w, at(9, 0)))
	assert.True(t, IsSilent(w, at(12, 0)))
	assert.True(t, IsSilent(w, at(17, 30)))
	assert.False(t, IsSilent(w, at(17, 31)))

	now := at(10, 0)
	assert.Equal(t, now.Add(7*time.Hour+30*time.Minute), SilentUntil(w, now))
}

func TestIsSilent_EqualBoundsIsDisabled(t *testing.T) {
	w := window(9, 0, 9, 0)

	for m := 0; m < minutesPerDay; m++ {
		now := at(m/60, m%60)
		assert.False(t, IsSilent(w, now), "minute %d", m)
		assert.True(t, SilentUntil(w, now).IsZero(), "minute %d", m)
	}
}

func TestIsSilent_DisabledFlag(t *testing.T) {
	w := window(22, 0, 7, 0)
	w.Enabled = false

	assert.False(t, IsSilent(w, at(23, 30)))
	assert.True(t, SilentUntil(w, at(23, 30)).IsZero())
}

// Every minute strictly inside the window is silent, every minute outside is
// not, and SilentUntil agrees with IsSilent.
func TestIsSilent_AllMinutesAgreeWithSilentUntil(t *testing.T) {
	windows := []models.QuietWindow{
		window(22, 0, 7, 0),
		window(0, 0, 23, 59),
		window(23, 59, 0, 1),
		window(13, 15, 13, 45),
		window(6, 30, 6, 29),
	}

	for _, w := range windows {
		from := w.FromHour*60 + w.FromMinute
		to := w.ToHour*60 + w.ToMinute
		length := (to - from + minutesPerDay) % minutesPerDay

		for m := 0; m < minutesPerDay; m++ {
			now := at(m/60, m%60).Add(20 * time.Second)
			offset := (m - from + minutesPerDay) % minutesPerDay
			want := offset <= length

			assert.Equal(t, want, IsSilent(w, now), "window %+v minute %d", w, m)

			until := SilentUntil(w, now)
			if want {
				assert.True(t, until.After(now), "window %+v minute %d", w, m)
			} else {
				assert.True(t, until.IsZero(), "window %+v minute %d", w, m)
			}
		}
	}
}

func TestSilentUntil_LastMinuteOfWindow(t *testing.T) {
	w := window(22, 0, 7, 0)

	now := at(7, 0).Add(30 * time.Second)
	require.True(t, IsSilent(w, now))
	assert.Equal(t, at(7, 1), SilentUntil(w, now))
}

func TestParse(t *testing.T) {
	h, m, err := Parse("22:05")
	require.NoError(t, err)
	assert.Equal(t, 22, h)
	assert.Equal(t, 5, m)

	h, m, err = Parse(" 7:00 ")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 0, m)

	for _, bad := range []string{"", "7", "24:00", "12:60", "ab:cd", "-1:10"} {
		_, _, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}
