package monitor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"biosignal-service/internal/model"
	"biosignal-service/internal/monitor"
)

func TestRollingWindowEvictsOldest(t *testing.T) {
	const capacity = 20
	w := monitor.NewRollingWindow(capacity)

	for i := 0; i < capacity+5; i++ {
		w.Insert(float64(i), model.DecodedSample{
			ECG:       int16(i),
			RespWave:  int16(-i),
			HeartRate: uint16(60 + i),
		}, uint16(i))
	}

	require.Equal(t, capacity, w.Len())
	require.Equal(t, capacity, w.Cap())

	snap := w.Snapshot()
	require.Len(t, snap.Time, capacity)
	require.Len(t, snap.ECG, capacity)
	require.Len(t, snap.RespWave, capacity)
	require.Len(t, snap.HeartRate, capacity)
	require.Len(t, snap.RespRate, capacity)

	for i := 0; i < capacity; i++ {
		orig := i + 5
		require.Equal(t, float64(orig), snap.Time[i])
		require.Equal(t, int16(orig), snap.ECG[i])
		require.Equal(t, int16(-orig), snap.RespWave[i])
		require.Equal(t, uint16(60+orig), snap.HeartRate[i])
		require.Equal(t, uint16(orig), snap.RespRate[i])
	}

	latest, ok := w.Latest()
	require.True(t, ok)
	require.Equal(t, float64(capacity+4), latest.Time)
}

func TestRollingWindowPartialFill(t *testing.T) {
	w := monitor.NewRollingWindow(10)

	_, ok := w.Latest()
	require.False(t, ok)

	w.Insert(0.008, model.DecodedSample{ECG: 7}, 0)
	w.Insert(0.016, model.DecodedSample{ECG: 8}, 12)

	snap := w.Snapshot()
	require.Equal(t, []float64{0.008, 0.016}, snap.Time)
	require.Equal(t, []int16{7, 8}, snap.ECG)
	require.Equal(t, []uint16{0, 12}, snap.RespRate)

	// snapshots are copies
	snap.ECG[0] = 99
	require.Equal(t, []int16{7, 8}, w.Snapshot().ECG)

	w.Clear()
	require.Equal(t, 0, w.Len())
}

func TestRollingWindowDefaultCapacity(t *testing.T) {
	require.Equal(t, monitor.DefaultWindowCapacity, monitor.NewRollingWindow(0).Cap())
}
