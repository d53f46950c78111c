package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// fade is the ramp at both ends of a tone that keeps it from clicking.
const fade = 5 * time.Millisecond

// Tone renders a sine wave of freq Hz as mono 16-bit little-endian PCM.
// volume is clamped to [0, 1].
func Tone(freq float64, d time.Duration, volume float64) []byte {
	volume = math.Max(0, math.Min(1, volume))
	n := samples(d)
	ramp := samples(fade)

	buf := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		gain := volume
		if edge := min(i, n-1-i); edge < ramp {
			gain *= float64(edge) / float64(ramp)
		}
		v := gain * math.Sin(2*math.Pi*freq*float64(i)/SampleRate)
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(v*math.MaxInt16)))
	}
	return buf
}

// Silence renders d of silence.
func Silence(d time.Duration) []byte {
	return make([]byte, 2*samples(d))
}

// Chime joins tones of the given frequencies with short gaps between them.
func Chime(volume float64, freqs ...float64) []byte {
	var out []byte
	for i, f := range freqs {
		if i > 0 {
			out = append(out, Silence(80*time.Millisecond)...)
		}
		out = append(out, Tone(f, 180*time.Millisecond, volume)...)
	}
	return out
}

func samples(d time.Duration) int {
	return int(int64(d) * SampleRate / int64(time.Second))
}
