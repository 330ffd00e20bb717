package audio

import "time"

const (
	// DefaultFrameDuration is the frame length used when the configured
	// duration is zero.
	DefaultFrameDuration = 2 * time.Second

	// minFrameSamples and maxFrameSamples clamp the configured frame length.
	// The lower bound equals the pipeline's minimum accepted duration so an
	// Accumulator can never emit a frame the pipeline would reject; the upper
	// bound keeps a single recognizer payload to at most ten seconds.
	minFrameSamples = MinFrameBytes / BytesPerSample
	maxFrameSamples = 10 * SampleRate
)

// Accumulator buffers float amplitude samples and emits fixed-size PCM frames
// once enough samples have accumulated. Emission is independent of how input
// batches are sized: pushing the same total samples in one call or many yields
// the identical sequence of frames.
//
// An Accumulator is owned by a single producer (one capture callback) and is
// not safe for concurrent use.
type Accumulator struct {
	frameSamples int
	sampleRate   int
	buf          []float32

	// emitted counts samples already cut into frames; it drives frame
	// timestamps.
	emitted int64
}

// NewAccumulator creates an Accumulator that emits frames of frameDuration
// length at [SampleRate]. The duration is resolved to a sample count once, at
// construction, clamped to the supported range; it does not change at runtime.
func NewAccumulator(frameDuration time.Duration) *Accumulator {
	if frameDuration <= 0 {
		frameDuration = DefaultFrameDuration
	}
	n := int(int64(frameDuration) * SampleRate / int64(time.Second))
	if n < minFrameSamples {
		n = minFrameSamples
	} else if n > maxFrameSamples {
		n = maxFrameSamples
	}
	return &Accumulator{
		frameSamples: n,
		sampleRate:   SampleRate,
	}
}

// FrameSamples returns the resolved per-frame sample count.
func (a *Accumulator) FrameSamples() int {
	return a.frameSamples
}

// Pending returns the number of buffered samples not yet emitted. After any
// Push call this is strictly less than FrameSamples.
func (a *Accumulator) Pending() int {
	return len(a.buf)
}

// Push appends a batch of float amplitude samples and returns every complete
// frame that became available, oldest first. The returned frames hold freshly
// converted PCM data and do not alias the input slice. Push with an empty
// batch is a no-op returning nil.
func (a *Accumulator) Push(samples []float32) []Frame {
	a.buf = append(a.buf, samples...)

	var frames []Frame
	for len(a.buf) >= a.frameSamples {
		ts := time.Duration(a.emitted) * time.Second / SampleRate
		frames = append(frames, Frame{
			Data:       Float32ToPCM16(a.buf[:a.frameSamples]),
			SampleRate: a.sampleRate,
			Timestamp:  ts,
		})
		a.emitted += int64(a.frameSamples)

		// Shift the remainder to the front, keeping the allocation.
		n := copy(a.buf, a.buf[a.frameSamples:])
		a.buf = a.buf[:n]
	}
	return frames
}

// Reset discards all buffered samples and restarts timestamps at zero.
func (a *Accumulator) Reset() {
	a.buf = a.buf[:0]
	a.emitted = 0
}
