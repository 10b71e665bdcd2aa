// Package audio converts telephony codec frames to and from linear PCM.
// G.711 companding (mu-law and A-law) plus sample-rate conversion, the
// two transforms a phone-to-model relay needs on every frame.
package audio

var (
	mulawDecodeTable [256]int16
	alawDecodeTable  [256]int16
)

func init() {
	for i := 0; i < 256; i++ {
		mulawDecodeTable[i] = mulawDecodeByte(byte(i))
		alawDecodeTable[i] = alawDecodeByte(byte(i))
	}
}

// Mu-law companding constants per G.711.
const (
	mulawBias = 0x84
	mulawClip = 32635
)

// MulawToPCM converts mu-law audio to linear PCM int16.
func MulawToPCM(mulaw []byte) []int16 {
	pcm := make([]int16, len(mulaw))
	for i, b := range mulaw {
		pcm[i] = mulawDecodeTable[b]
	}
	return pcm
}

// PCMToMulaw converts linear PCM int16 to mu-law.
func PCMToMulaw(pcm []int16) []byte {
	mulaw := make([]byte, len(pcm))
	for i, s := range pcm {
		mulaw[i] = mulawEncode(s)
	}
	return mulaw
}

// AlawToPCM converts A-law audio to linear PCM int16.
func AlawToPCM(alaw []byte) []int16 {
	pcm := make([]int16, len(alaw))
	for i, b := range alaw {
		pcm[i] = alawDecodeTable[b]
	}
	return pcm
}

// PCMToAlaw converts linear PCM int16 to A-law.
func PCMToAlaw(pcm []int16) []byte {
	alaw := make([]byte, len(pcm))
	for i, s := range pcm {
		alaw[i] = alawEncode(s)
	}
	return alaw
}

func mulawEncode(pcm int16) byte {
	s := int(pcm)
	sign := byte(0)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias

	exponent := byte(7)
	for mask := 0x4000; s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((s >> (exponent + 3)) & 0x0F)

	return ^(sign | (exponent << 4) | mantissa)
}

func mulawDecodeByte(b byte) int16 {
	u := ^b
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F
	magnitude := (int(mantissa)<<3 + mulawBias) << exponent
	if u&0x80 != 0 {
		return int16(mulawBias - magnitude)
	}
	return int16(magnitude - mulawBias)
}

func alawEncode(pcm int16) byte {
	s := int(pcm)
	// In A-law the sign bit marks positive samples.
	sign := byte(0x80)
	if s < 0 {
		s = -s
		sign = 0
	}
	if s > 32635 {
		s = 32635
	}

	var a byte
	if s >= 256 {
		exponent := byte(7)
		for mask := 0x4000; s&mask == 0 && exponent > 1; mask >>= 1 {
			exponent--
		}
		mantissa := byte((s >> (exponent + 3)) & 0x0F)
		a = (exponent << 4) | mantissa
	} else {
		a = byte(s >> 4)
	}

	return (a | sign) ^ 0x55
}

func alawDecodeByte(b byte) int16 {
	a := b ^ 0x55
	t := int(a&0x0F) << 4
	seg := (a & 0x70) >> 4
	switch seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if a&0x80 != 0 {
		return int16(t)
	}
	return int16(-t)
}
