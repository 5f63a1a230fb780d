// internal/analysis/respiration.go
package analysis

// Detector tuning, in samples unless noted
const (
	counterWrap         = 1000
	calibrationPeriod   = 500
	minCalibrationSwing = 400
	minEdgeInterval     = 40
	maxEdgeInterval     = 700
	edgeDebounce        = 4
	maxEdgeMismatch     = 5

	// rateNumerator turns an average interval into breaths per minute
	rateNumerator = 6000
)

// EstimatorSnapshot is a read-only view of the estimator's adaptive state
type EstimatorSnapshot struct {
	Calibrated   bool   `json:"calibrated"`
	MinThreshold int32  `json:"min_threshold"`
	MaxThreshold int32  `json:"max_threshold"`
	AvgThreshold int32  `json:"avg_threshold"`
	PeakCount    int    `json:"peak_count"`
	Rate         uint16 `json:"rate"`
}

// Estimator derives a breathing rate from the respiration waveform with an
// adaptive threshold-crossing detector. It must be fed every sample in arrival
// order; it is not safe for concurrent use.
type Estimator struct {
	minThreshold int32
	maxThreshold int32
	avgThreshold int32

	minThresholdNew int32
	maxThresholdNew int32

	startCalc bool

	sampleCount     int32
	sampleCountNtve int32
	timeCnt         int32
	skipCount       int32

	ptiveEdgeDetected bool
	ptiveCnt          int32
	ntiveEdgeDetected bool
	ntiveCnt          int32

	peaks PeakBuffer

	prevSample         int32
	prevPrevSample     int32
	prevPrevPrevSample int32

	rate uint16
}

// NewEstimator creates an uncalibrated estimator
func NewEstimator() *Estimator {
	return &Estimator{
		minThreshold:    0x7FFF,
		maxThreshold:    -0x8000,
		minThresholdNew: 0x7FFF,
		maxThresholdNew: -0x8000,
	}
}

// Update consumes one respiration sample and returns the current rate in
// breaths per minute. Zero means no rate is available yet.
func (e *Estimator) Update(respWave int16) uint16 {
	sample := int32(respWave)

	e.sampleCount++
	e.sampleCountNtve++
	e.timeCnt++

	if sample < e.minThresholdNew {
		e.minThresholdNew = sample
	}
	if sample > e.maxThresholdNew {
		e.maxThresholdNew = sample
	}

	if e.sampleCount > counterWrap {
		e.sampleCount = 0
	}
	if e.sampleCountNtve > counterWrap {
		e.sampleCountNtve = 0
	}
	if e.timeCnt > counterWrap {
		e.timeCnt = 0
	}

	if e.startCalc {
		e.updateCalibrated(sample)
	} else {
		e.updateUncalibrated(sample)
	}

	return e.rate
}

// Rate returns the last computed rate
func (e *Estimator) Rate() uint16 {
	return e.rate
}

// Calibrated reports whether thresholds are committed and edges are tracked
func (e *Estimator) Calibrated() bool {
	return e.startCalc
}

// Thresholds returns the committed min, max and average thresholds
func (e *Estimator) Thresholds() (min, max, avg int32) {
	return e.minThreshold, e.maxThreshold, e.avgThreshold
}

// Snapshot returns a copy of the adaptive state
func (e *Estimator) Snapshot() EstimatorSnapshot {
	return EstimatorSnapshot{
		Calibrated:   e.startCalc,
		MinThreshold: e.minThreshold,
		MaxThreshold: e.maxThreshold,
		AvgThreshold: e.avgThreshold,
		PeakCount:    e.peaks.Len(),
		Rate:         e.rate,
	}
}

func (e *Estimator) swingOK() bool {
	return e.maxThresholdNew-e.minThresholdNew > minCalibrationSwing
}

func (e *Estimator) commitThresholds() {
	e.maxThreshold = e.maxThresholdNew
	e.minThreshold = e.minThresholdNew
	e.avgThreshold = (e.maxThreshold + e.minThreshold) >> 1
}

func (e *Estimator) updateUncalibrated(sample int32) {
	// The uncalibrated phase advances the calibration clock twice per sample.
	e.timeCnt++
	if e.timeCnt < calibrationPeriod {
		return
	}
	e.timeCnt = 0

	if e.swingOK() {
		e.startCalc = true
		e.commitThresholds()
		e.prevPrevPrevSample = sample
		e.prevPrevSample = sample
		e.prevSample = sample
	}
}

func (e *Estimator) updateCalibrated(sample int32) {
	if e.timeCnt >= calibrationPeriod {
		e.timeCnt = 0
		if e.swingOK() {
			e.commitThresholds()
		} else {
			e.startCalc = false
			e.rate = 0
		}
	}

	e.prevPrevPrevSample = e.prevPrevSample
	e.prevPrevSample = e.prevSample
	e.prevSample = sample

	if e.skipCount > 0 {
		e.skipCount--
		return
	}

	e.detectEdges(sample)
}

func (e *Estimator) detectEdges(sample int32) {
	// Both branches test the same rising crossing.
	crossed := e.prevPrevPrevSample < e.avgThreshold && sample > e.avgThreshold

	if crossed {
		if inEdgeWindow(e.sampleCount) {
			e.ptiveEdgeDetected = true
			e.ptiveCnt = e.sampleCount
			e.skipCount = edgeDebounce
		}
		e.sampleCount = 0
	}

	if crossed {
		if inEdgeWindow(e.sampleCountNtve) {
			e.ntiveEdgeDetected = true
			e.ntiveCnt = e.sampleCountNtve
			e.skipCount = edgeDebounce
		}
		e.sampleCountNtve = 0
	}

	if !e.ptiveEdgeDetected || !e.ntiveEdgeDetected {
		return
	}
	e.ptiveEdgeDetected = false
	e.ntiveEdgeDetected = false

	if abs32(e.ptiveCnt-e.ntiveCnt) >= maxEdgeMismatch {
		return
	}

	e.peaks.Push(e.ptiveCnt)
	e.peaks.Push(e.ntiveCnt)

	if e.peaks.Full() {
		e.peaks.Reset()
		if avg := e.peaks.Sum() >> 3; avg > 0 {
			e.rate = uint16(rateNumerator / avg)
		}
	}
}

func inEdgeWindow(count int32) bool {
	return count > minEdgeInterval && count < maxEdgeInterval
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
