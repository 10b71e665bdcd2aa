package tts

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildWAV(payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(payload)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(7)) // G.711 μ-law
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(8000))
	binary.Write(&buf, binary.LittleEndian, uint32(8000))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(8))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

func TestStripWAV(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	got := stripWAV(buildWAV(payload))
	if !bytes.Equal(got, payload) {
		t.Errorf("stripWAV() = %v, want %v", got, payload)
	}
}

func TestStripWAV_NotAContainer(t *testing.T) {
	raw := []byte{0xFF, 0xFE, 0x00, 0x01, 0x02}

	got := stripWAV(raw)
	if !bytes.Equal(got, raw) {
		t.Errorf("stripWAV() altered raw audio: %v", got)
	}
}

func TestStripWAV_TruncatedDataChunk(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	container := buildWAV(payload)

	// Chop off the last payload byte; the declared chunk size now
	// exceeds the buffer.
	got := stripWAV(container[:len(container)-1])
	if !bytes.Equal(got, payload[:3]) {
		t.Errorf("stripWAV() = %v, want %v", got, payload[:3])
	}
}

func TestStripWAV_ShortInput(t *testing.T) {
	short := []byte("RIFF")
	if got := stripWAV(short); !bytes.Equal(got, short) {
		t.Errorf("stripWAV() = %v, want input unchanged", got)
	}
}
