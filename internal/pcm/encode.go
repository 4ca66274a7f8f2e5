package pcm

import (
	"encoding/binary"
	"math"

	"github.com/satriahrh/linguavoice/server/domain/entities"
)

// EncodePCM16 interleaves every frame of the asset back into signed 16-bit little-endian PCM
func EncodePCM16(asset *entities.AudioAsset) []byte {
	return EncodeFrames(asset, 0, asset.FrameCount())
}

// EncodeFrames interleaves frames [from, to) of the asset. Bounds are clamped to the asset.
func EncodeFrames(asset *entities.AudioAsset, from, to int) []byte {
	frames := asset.FrameCount()
	from = max(0, min(from, frames))
	to = max(from, min(to, frames))

	channelCount := asset.ChannelCount()
	out := make([]byte, (to-from)*channelCount*BytesPerSample)

	offset := 0
	for i := from; i < to; i++ {
		for c := 0; c < channelCount; c++ {
			binary.LittleEndian.PutUint16(out[offset:], uint16(ToInt16(asset.Channels[c][i])))
			offset += BytesPerSample
		}
	}
	return out
}

// ToInt16 converts a normalized sample back to the int16 it was framed from, clamping out of range values
func ToInt16(sample float32) int16 {
	v := math.Round(float64(sample) * scale)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
