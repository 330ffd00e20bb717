// Package audio provides the frame-segmentation primitives of the caption
// pipeline: the [Accumulator] that turns a continuous stream of float
// amplitude samples into fixed-duration PCM frames, the float→int16 sample
// conversion, and a minimal WAV container writer for recognizer payloads.
//
// All audio flowing through the pipeline is 16-bit little-endian mono PCM at
// [SampleRate] Hz. A [Frame] is the atomic unit of work: it is emitted once by
// an Accumulator, transported upstream as a single binary message, and
// processed by exactly one pipeline execution.
package audio

import "time"

const (
	// SampleRate is the fixed capture and processing rate in Hz.
	SampleRate = 16000

	// BytesPerSample is the PCM sample width (16-bit).
	BytesPerSample = 2

	// MinFrameDuration is the shortest frame the pipeline accepts. Anything
	// below this is rejected before it reaches an external service.
	MinFrameDuration = 500 * time.Millisecond

	// MinFrameBytes is MinFrameDuration expressed in PCM bytes at SampleRate.
	MinFrameBytes = int(MinFrameDuration) * SampleRate * BytesPerSample / int(time.Second)
)

// Frame is a fixed-duration slice of 16-bit little-endian mono PCM audio.
// The Data slice is owned by the frame and never mutated after emission.
type Frame struct {
	// Data holds the raw PCM bytes.
	Data []byte

	// SampleRate in Hz. Always [SampleRate] for frames produced by an
	// Accumulator; carried explicitly so transported frames stay
	// self-describing.
	SampleRate int

	// Timestamp marks where this frame starts relative to the beginning of
	// the capture stream.
	Timestamp time.Duration
}

// Samples returns the number of PCM samples in the frame.
func (f Frame) Samples() int {
	return len(f.Data) / BytesPerSample
}

// Duration returns the play length of the frame derived from its byte length.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.Samples()) * time.Second / time.Duration(f.SampleRate)
}
