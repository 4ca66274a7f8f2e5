// Package wavfile exports decoded audio assets as 16-bit PCM WAV files.
package wavfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/satriahrh/linguavoice/server/domain/entities"
	"github.com/satriahrh/linguavoice/server/internal/pcm"
)

const (
	bitDepth  = 16
	formatPCM = 1
)

// ContentType is the media type of encoded files
const ContentType = "audio/wav"

// Encode writes the asset to w as a 16-bit PCM WAV file
func Encode(w io.WriteSeeker, asset *entities.AudioAsset) error {
	if asset == nil || asset.ChannelCount() == 0 || asset.SampleRate < 1 {
		return errors.New("wavfile: asset has no audio format")
	}

	channels := asset.ChannelCount()
	frames := asset.FrameCount()

	data := make([]int, 0, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			data = append(data, int(pcm.ToInt16(asset.Channels[c][i])))
		}
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  asset.SampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}

	enc := wav.NewEncoder(w, asset.SampleRate, bitDepth, channels, formatPCM)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavfile: write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavfile: finalize header: %w", err)
	}
	return nil
}

// Bytes encodes the asset into an in-memory WAV file
func Bytes(asset *entities.AudioAsset) ([]byte, error) {
	var f memFile
	if err := Encode(&f, asset); err != nil {
		return nil, err
	}
	return f.data, nil
}

// memFile is an in-memory io.WriteSeeker; the encoder seeks back to patch chunk sizes
type memFile struct {
	data []byte
	pos  int
}

func (f *memFile) Write(p []byte) (int, error) {
	end := f.pos + len(p)
	if end > len(f.data) {
		f.data = append(f.data, make([]byte, end-len(f.data))...)
	}
	copy(f.data[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(f.pos)
	case io.SeekEnd:
		base = int64(len(f.data))
	default:
		return 0, fmt.Errorf("wavfile: invalid whence %d", whence)
	}

	next := base + offset
	if next < 0 {
		return 0, errors.New("wavfile: negative position")
	}
	f.pos = int(next)
	return next, nil
}
