package slot_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    slot.ID
		wantErr bool
	}{
		{in: "mon_2100", want: slot.ID{Day: time.Monday, HalfHour: 42}},
		{in: "tue_2000", want: slot.ID{Day: time.Tuesday, HalfHour: 40}},
		{in: "sun_0030", want: slot.ID{Day: time.Sunday, HalfHour: 1}},
		{in: "sat_2330", want: slot.ID{Day: time.Saturday, HalfHour: 47}},
		{in: "mon_2115", wantErr: true},
		{in: "xyz_2100", wantErr: true},
		{in: "mon2100", wantErr: true},
		{in: "mon_2400", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := slot.ParseID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestUniverse_IsChronological(t *testing.T) {
	ids := slot.Universe()
	require.Len(t, ids, 7*slot.HalfHoursPerDay)
	assert.Equal(t, "mon_0000", ids[0].String())
	assert.Equal(t, "sun_2330", ids[len(ids)-1].String())
	for i := 1; i < len(ids); i++ {
		assert.True(t, ids[i-1].Before(ids[i]))
	}
}

func TestWeek_RoundTripAndStart(t *testing.T) {
	w, err := slot.ParseWeek("2026-W42")
	require.NoError(t, err)
	assert.Equal(t, slot.Week{Year: 2026, Number: 42}, w)
	assert.Equal(t, "2026-W42", w.String())
	assert.Equal(t, time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC), w.Start())
	assert.Equal(t, w, slot.WeekOf(time.Date(2026, time.October, 14, 18, 0, 0, 0, time.UTC)))
	assert.Equal(t, slot.Week{Year: 2026, Number: 43}, w.Next())

	// 2020 has 53 ISO weeks, 2021 does not.
	_, err = slot.ParseWeek("2020-W53")
	assert.NoError(t, err)
	_, err = slot.ParseWeek("2021-W53")
	assert.Error(t, err)
}

func TestID_In(t *testing.T) {
	w := slot.MustParseWeek("2026-W42")
	at := slot.MustParseID("tue_2000").In(w)
	assert.Equal(t, time.Date(2026, time.October, 13, 20, 0, 0, 0, time.UTC), at)
}

func TestID_JSONMapKey(t *testing.T) {
	in := map[slot.ID]bool{slot.MustParseID("mon_2100"): true}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mon_2100": true}`, string(data))

	var out map[slot.ID]bool
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestSnapshot_AvailableAndAwayAreExclusive(t *testing.T) {
	s := slot.NewSnapshot("team-a", slot.MustParseWeek("2026-W42"))
	id := slot.MustParseID("mon_2100")

	s.MarkAvailable(id, "p1")
	s.MarkAway(id, "p1")
	assert.False(t, s.IsAvailable(id, "p1"))
	assert.True(t, s.IsAway(id, "p1"))

	s.MarkAvailable(id, "p1")
	assert.True(t, s.IsAvailable(id, "p1"))
	assert.False(t, s.IsAway(id, "p1"))

	s.Clear(id, "p1")
	assert.Empty(t, s.AvailableIn(id))
	assert.Empty(t, s.AwayIn(id))
}

func TestSnapshot_NilIsEmpty(t *testing.T) {
	var s *slot.Snapshot
	id := slot.MustParseID("mon_2100")
	assert.Empty(t, s.AvailableIn(id))
	assert.False(t, s.IsAvailable(id, "p1"))
	assert.False(t, s.Matches("team-a", slot.MustParseWeek("2026-W42")))
}
