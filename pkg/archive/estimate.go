package archive

import "time"

// DefaultEgressCorrection compensates for protocol and framing overhead
// when projecting egress progress from the configured bandwidth cap.
// The value is empirical and may need recalibration per transport; it
// is an approximation, not a measurement.
const DefaultEgressCorrection = 0.8

// Progress returns the fraction of the expected total already written,
// clamped to [0, 1]. A job whose size class is outside the lookup table
// reports zero.
func (j *IngressJob) Progress() float64 {
	expected, ok := j.ExpectedSize()
	if !ok || expected <= 0 {
		return 0
	}
	return clamp01(float64(j.TransferredBytes) / float64(expected))
}

// Rate returns the long-run mean transfer rate in bytes per second.
//
// The baseline is the oldest sample in history, not the most recent:
// anchoring to the oldest observation yields a smoothed average immune
// to short bursts and stalls, at the cost of slow response to genuine
// rate changes. ok is false when history is empty or no time has
// elapsed since the baseline.
func (j *IngressJob) Rate() (float64, bool) {
	if len(j.History) == 0 {
		return 0, false
	}
	oldest := j.History[len(j.History)-1]
	elapsed := j.ObservedAt.Sub(oldest.ObservedAt).Seconds()
	if elapsed <= 0 {
		return 0, false
	}
	return float64(j.TransferredBytes-oldest.Bytes) / elapsed, true
}

// ETA returns the projected time until the transfer completes, floored
// to whole seconds and never negative. ok is false when the rate is
// undefined or zero, or the size class is unknown.
func (j *IngressJob) ETA() (time.Duration, bool) {
	rate, ok := j.Rate()
	if !ok || rate == 0 {
		return 0, false
	}
	expected, ok := j.ExpectedSize()
	if !ok {
		return 0, false
	}
	remaining := float64(expected-j.TransferredBytes) / rate
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(int64(remaining)) * time.Second, true
}

// Progress projects egress completion from elapsed wall time against
// the configured bandwidth cap, clamped to [0, 1]. No destination byte
// count is sampled for egress jobs, so this is a rate-based projection
// rather than an observation. correction accounts for protocol
// overhead; pass DefaultEgressCorrection unless calibrated otherwise.
func (j *EgressJob) Progress(now time.Time, correction float64) float64 {
	expected, ok := j.ExpectedSize()
	if !ok || expected <= 0 {
		return 0
	}
	elapsed := now.Sub(j.StartedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	projected := elapsed * float64(j.BandwidthLimit) * correction
	return clamp01(projected / float64(expected))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
