package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

type Format struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	DataBytes     uint32
}

// Duration is the playback length implied by the data chunk size.
func (f Format) Duration() time.Duration {
	bytesPerSecond := uint64(f.SampleRate) * uint64(f.Channels) * uint64(f.BitsPerSample) / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(uint64(f.DataBytes) * uint64(time.Second) / bytesPerSecond)
}

// ParseWAV reads the fmt and data chunk headers of a WAV stream. The data
// size is clamped to the bytes actually present, since streaming encoders
// often leave it unset.
func ParseWAV(b []byte) (Format, error) {
	if len(b) < 12 || !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WAVE")) {
		return Format{}, ErrNotWAV
	}
	var (
		f       Format
		haveFmt bool
	)
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := binary.LittleEndian.Uint32(b[off+4 : off+8])
		body := off + 8
		switch id {
		case "fmt ":
			if body+16 > len(b) {
				return Format{}, fmt.Errorf("truncated fmt chunk")
			}
			f.Channels = binary.LittleEndian.Uint16(b[body+2 : body+4])
			f.SampleRate = binary.LittleEndian.Uint32(b[body+4 : body+8])
			f.BitsPerSample = binary.LittleEndian.Uint16(b[body+14 : body+16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, fmt.Errorf("data chunk before fmt chunk")
			}
			avail := uint32(len(b) - body)
			if size == 0 || size > avail {
				size = avail
			}
			f.DataBytes = size
			return f, nil
		}
		next := body + int(size) + int(size&1)
		if next <= off {
			break
		}
		off = next
	}
	return Format{}, fmt.Errorf("missing data chunk")
}

// Duration returns the WAV duration of b, or zero when b is not a parseable
// WAV stream.
func Duration(b []byte) time.Duration {
	f, err := ParseWAV(b)
	if err != nil {
		return 0
	}
	return f.Duration()
}
