// internal/monitor/window.go
package monitor

import "biosignal-service/internal/model"

// DefaultWindowCapacity is the number of recent samples kept for display
const DefaultWindowCapacity = 500

// WindowPoint is one row of the rolling window
type WindowPoint struct {
	Time      float64 `json:"time"`
	ECG       int16   `json:"ecg"`
	RespWave  int16   `json:"resp_wave"`
	HeartRate uint16  `json:"heart_rate"`
	RespRate  uint16  `json:"resp_rate"`
}

// WindowSnapshot holds copies of the five window sequences, oldest first
type WindowSnapshot struct {
	Capacity  int       `json:"capacity"`
	Time      []float64 `json:"time"`
	ECG       []int16   `json:"ecg"`
	RespWave  []int16   `json:"resp_wave"`
	HeartRate []uint16  `json:"heart_rate"`
	RespRate  []uint16  `json:"resp_rate"`
}

// RollingWindow keeps the most recent samples in five parallel sequences of
// equal length. Inserting at capacity evicts the oldest entry of each.
type RollingWindow struct {
	time      *ring[float64]
	ecg       *ring[int16]
	respWave  *ring[int16]
	heartRate *ring[uint16]
	respRate  *ring[uint16]
}

// NewRollingWindow creates a window holding at most capacity samples
func NewRollingWindow(capacity int) *RollingWindow {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &RollingWindow{
		time:      newRing[float64](capacity),
		ecg:       newRing[int16](capacity),
		respWave:  newRing[int16](capacity),
		heartRate: newRing[uint16](capacity),
		respRate:  newRing[uint16](capacity),
	}
}

// Insert appends one sample and the respiration rate computed for it
func (w *RollingWindow) Insert(t float64, s model.DecodedSample, rate uint16) {
	w.time.push(t)
	w.ecg.push(s.ECG)
	w.respWave.push(s.RespWave)
	w.heartRate.push(s.HeartRate)
	w.respRate.push(rate)
}

// Len returns the number of samples held
func (w *RollingWindow) Len() int {
	return w.time.len()
}

// Cap returns the window capacity
func (w *RollingWindow) Cap() int {
	return w.time.cap()
}

// Latest returns the newest row
func (w *RollingWindow) Latest() (WindowPoint, bool) {
	n := w.Len()
	if n == 0 {
		return WindowPoint{}, false
	}
	return w.row(n - 1), true
}

// Snapshot copies the window contents
func (w *RollingWindow) Snapshot() WindowSnapshot {
	return WindowSnapshot{
		Capacity:  w.Cap(),
		Time:      w.time.slice(),
		ECG:       w.ecg.slice(),
		RespWave:  w.respWave.slice(),
		HeartRate: w.heartRate.slice(),
		RespRate:  w.respRate.slice(),
	}
}

// Clear drops every sample
func (w *RollingWindow) Clear() {
	w.time.clear()
	w.ecg.clear()
	w.respWave.clear()
	w.heartRate.clear()
	w.respRate.clear()
}

func (w *RollingWindow) row(i int) WindowPoint {
	return WindowPoint{
		Time:      w.time.at(i),
		ECG:       w.ecg.at(i),
		RespWave:  w.respWave.at(i),
		HeartRate: w.heartRate.at(i),
		RespRate:  w.respRate.at(i),
	}
}
