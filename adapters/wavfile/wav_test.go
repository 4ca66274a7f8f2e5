package wavfile

import (
	"bytes"
	"testing"

	"github.com/go-audio/wav"

	"github.com/satriahrh/linguavoice/server/domain/entities"
	"github.com/satriahrh/linguavoice/server/internal/pcm"
)

func TestBytesRoundTrip(t *testing.T) {
	asset := &entities.AudioAsset{
		SampleRate: 24000,
		Channels: [][]float32{
			{0, -1, float32(32767) / 32768, 0.5},
			{0.25, 0, -0.5, float32(-1) / 32768},
		},
	}

	data, err := Bytes(asset)
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatalf("Expected RIFF header, got %q", data[:4])
	}

	if !wav.NewDecoder(bytes.NewReader(data)).IsValidFile() {
		t.Fatal("Encoded file is not a valid WAV file")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("Failed to decode PCM: %v", err)
	}
	if dec.SampleRate != 24000 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Errorf("Unexpected format: rate=%d channels=%d depth=%d", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}

	want := pcm.EncodePCM16(asset)
	if len(buf.Data)*2 != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want)/2, len(buf.Data))
	}
	for i, sample := range buf.Data {
		expected := int(int16(uint16(want[2*i]) | uint16(want[2*i+1])<<8))
		if sample != expected {
			t.Errorf("Sample %d: expected %d, got %d", i, expected, sample)
		}
	}
}

func TestEncodeRejectsEmptyFormat(t *testing.T) {
	if _, err := Bytes(nil); err == nil {
		t.Error("Expected error for nil asset")
	}
	if _, err := Bytes(&entities.AudioAsset{SampleRate: 24000}); err == nil {
		t.Error("Expected error for asset without channels")
	}
}

func TestMemFileSeekOverwrites(t *testing.T) {
	var f memFile
	f.Write([]byte("abcdef"))
	if _, err := f.Seek(1, 0); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	f.Write([]byte("XY"))

	if got := string(f.data); got != "aXYdef" {
		t.Errorf("Expected aXYdef, got %s", got)
	}
	if _, err := f.Seek(-10, 0); err == nil {
		t.Error("Expected error for negative position")
	}
}
