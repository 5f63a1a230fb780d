package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSimulator(start time.Time) (*SimulatorSource, *time.Time) {
	clock := start
	sim := NewSimulatorSource(&SimulatorConfig{
		SamplingRate:  125,
		HeartRate:     72,
		BreathPeriod:  4 * time.Second,
		RespAmplitude: 1600,
		MaxBacklog:    2 * time.Second,
	}, zap.NewNop())
	sim.now = func() time.Time { return clock }
	return sim, &clock
}

func TestSimulatorProducesFramesAtSamplingRate(t *testing.T) {
	ctx := context.Background()
	sim, clock := newTestSimulator(time.Unix(1000, 0))
	require.NoError(t, sim.Open(ctx))
	defer sim.Close()

	*clock = clock.Add(time.Second)

	decoder := NewFrameDecoder()
	var frames []Frame
	for {
		data, err := sim.Read(ctx, 256)
		require.NoError(t, err)
		if len(data) == 0 {
			break
		}
		frames = append(frames, decoder.Feed(data)...)
	}

	require.Len(t, frames, 125)
	sample, err := DecodeSample(frames[0].Payload)
	require.NoError(t, err)
	require.Equal(t, uint16(72), sample.HeartRate)
	require.Equal(t, uint16(15), sample.DeviceRespRate)
	require.Equal(t, uint64(125*(DataPayloadLength+frameOverhead)), uint64(sim.Stats().BytesRead))
}

func TestSimulatorBacklogIsCapped(t *testing.T) {
	ctx := context.Background()
	sim, clock := newTestSimulator(time.Unix(1000, 0))
	require.NoError(t, sim.Open(ctx))

	*clock = clock.Add(time.Minute)

	data, err := sim.Read(ctx, 1<<20)
	require.NoError(t, err)
	require.Len(t, data, 250*(DataPayloadLength+frameOverhead))
}

func TestSimulatorRespirationRamp(t *testing.T) {
	sim, _ := newTestSimulator(time.Unix(0, 0))

	first := sim.sampleAt(0)
	mid := sim.sampleAt(250)
	require.Equal(t, int16(-800), first.RespWave)
	require.Equal(t, int16(0), mid.RespWave)
	require.Less(t, sim.sampleAt(499).RespWave, int16(800))
	require.Equal(t, int16(-800), sim.sampleAt(500).RespWave)
}

func TestSimulatorReadRequiresOpen(t *testing.T) {
	sim, _ := newTestSimulator(time.Unix(0, 0))

	_, err := sim.Read(context.Background(), 16)
	require.ErrorIs(t, err, ErrSourceNotOpen)
}
