package audio

// maxPCM16 is the positive int16 maximum used as the float→PCM scale factor.
// Both clamp extremes map onto ±maxPCM16 so the conversion stays symmetric.
const maxPCM16 = 32767

// Float32ToPCM16 converts float amplitude samples in [-1, 1] to 16-bit
// little-endian PCM bytes. Values outside the range are clamped before
// scaling, so 1.0 maps to 32767 and -1.0 maps to -32767. The conversion is
// lossy and monotonic.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * maxPCM16)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// PCM16ToFloat32 converts 16-bit little-endian PCM bytes back to float
// amplitude samples. A trailing odd byte is ignored. Used by tests and the
// diagnostics tooling; the live path only ever converts in one direction.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / BytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(v) / maxPCM16
	}
	return out
}
