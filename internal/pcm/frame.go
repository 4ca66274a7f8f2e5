package pcm

import (
	"encoding/binary"

	"github.com/satriahrh/linguavoice/server/domain"
	"github.com/satriahrh/linguavoice/server/domain/entities"
)

const (
	// BytesPerSample is the width of one signed 16-bit sample
	BytesPerSample = 2

	// SpeechSampleRate is the rate of the audio returned by the speech model
	SpeechSampleRate = 24000
	// SpeechChannels is the channel count of the audio returned by the speech model
	SpeechChannels = 1

	// scale maps int16 onto [-1.0, 1.0). 32767 deliberately stays just below 1.0.
	scale = 32768.0
)

// Frame interprets data as interleaved signed 16-bit little-endian samples and
// splits it into one normalized float buffer per channel.
func Frame(data []byte, sampleRate, channelCount int) (*entities.AudioAsset, error) {
	if channelCount < 1 {
		return nil, &domain.FramingError{Length: len(data), ChannelCount: channelCount, SampleRate: sampleRate, Reason: "channel count must be at least 1"}
	}
	if sampleRate < 1 {
		return nil, &domain.FramingError{Length: len(data), ChannelCount: channelCount, SampleRate: sampleRate, Reason: "sample rate must be positive"}
	}

	frameSize := BytesPerSample * channelCount
	if len(data)%frameSize != 0 {
		return nil, &domain.FramingError{Length: len(data), ChannelCount: channelCount, SampleRate: sampleRate, Reason: "incomplete frame"}
	}

	frameCount := len(data) / frameSize
	channels := make([][]float32, channelCount)
	for c := range channels {
		channels[c] = make([]float32, frameCount)
	}

	for i := 0; i < frameCount; i++ {
		for c := 0; c < channelCount; c++ {
			offset := BytesPerSample * (i*channelCount + c)
			sample := int16(binary.LittleEndian.Uint16(data[offset:]))
			channels[c][i] = float32(sample) / scale
		}
	}

	return &entities.AudioAsset{
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}
