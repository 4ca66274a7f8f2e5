package entities

import "time"

// AudioAsset is a decoded, normalized audio buffer ready for playback.
// Channels holds one slice of samples in [-1.0, 1.0] per channel, all of equal length.
// Assets are never modified after creation.
type AudioAsset struct {
	SampleRate int         `json:"sample_rate"`
	Channels   [][]float32 `json:"-"`
}

// ChannelCount returns the number of channels
func (a *AudioAsset) ChannelCount() int {
	return len(a.Channels)
}

// FrameCount returns the number of samples per channel
func (a *AudioAsset) FrameCount() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// Duration returns the playback length of the asset
func (a *AudioAsset) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(a.FrameCount()) * time.Second / time.Duration(a.SampleRate)
}
