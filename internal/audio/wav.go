package audio

import (
	"encoding/binary"
	"errors"
	"time"
)

// ErrNotWAV is returned when a payload does not carry a parseable RIFF/WAVE
// header.
var ErrNotWAV = errors.New("payload is not a wav container")

// Duration computes the clip length of a WAV payload by walking its chunks:
// the fmt chunk yields the byte rate, the data chunk yields the payload
// size. Only the header is inspected.
func Duration(data []byte) (time.Duration, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, ErrNotWAV
	}
	var byteRate uint32
	var dataLen uint32
	seenData := false

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8
		switch id {
		case "fmt ":
			if size >= 16 && body+16 <= len(data) {
				byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			}
		case "data":
			dataLen = size
			// streamed writers may leave the size zero; fall back to
			// whatever actually follows the header
			if dataLen == 0 && body < len(data) {
				dataLen = uint32(len(data) - body)
			}
			seenData = true
		}
		// chunks are word-aligned
		pos = body + int(size) + int(size&1)
	}
	if byteRate == 0 || !seenData {
		return 0, ErrNotWAV
	}
	secs := float64(dataLen) / float64(byteRate)
	return time.Duration(secs * float64(time.Second)), nil
}
