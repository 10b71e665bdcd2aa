package tts

import "encoding/binary"

// stripWAV returns the payload of a RIFF/WAVE container, or the input
// unchanged when it is not one. The synthesis API wraps MULAW, ALAW,
// and LINEAR16 output in a WAV container; the relay frames raw bytes.
func stripWAV(data []byte) []byte {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return data
	}

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8

		if id == "data" {
			end := off + size
			if end > len(data) {
				end = len(data)
			}
			return data[off:end]
		}

		off += size
		if size%2 == 1 {
			off++ // chunks are word aligned
		}
	}
	return data
}
