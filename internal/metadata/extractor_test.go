package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
)

func newTestExtractor() *Extractor {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewExtractor([]string{".mp3", ".flac", ".wav"}, logger)
}

// writeTestWAV writes a mono 16-bit silent WAV of the given length
func writeTestWAV(t *testing.T, path string, sampleRate, samples int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, samples),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func TestExtractFromWAV(t *testing.T) {
	extractor := newTestExtractor()
	path := filepath.Join(t.TempDir(), "Test Snippet.wav")
	writeTestWAV(t, path, 8000, 8000*2)

	track, err := extractor.ExtractFromFile(path)
	if err != nil {
		t.Fatalf("ExtractFromFile() error: %v", err)
	}

	if track.ID != "Test_Snippet" {
		t.Errorf("expected id Test_Snippet, got %s", track.ID)
	}
	if track.Title != "Test Snippet" {
		t.Errorf("expected title from filename, got %s", track.Title)
	}
	if track.DurationMS < 1900 || track.DurationMS > 2100 {
		t.Errorf("expected ~2000ms duration, got %d", track.DurationMS)
	}
	if track.AudioPath != path {
		t.Errorf("expected audio path %s, got %s", path, track.AudioPath)
	}
	if track.ArtworkRef != "" {
		t.Errorf("expected no artwork for bare wav, got %s", track.ArtworkRef)
	}
}

func TestExtractMissingFile(t *testing.T) {
	extractor := newTestExtractor()
	if _, err := extractor.ExtractFromFile(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMediaID(t *testing.T) {
	testCases := []struct {
		path     string
		expected string
	}{
		{"/music/Jazz In Paris.mp3", "Jazz_In_Paris"},
		{"the_coldest_shoulder.flac", "the_coldest_shoulder"},
		{"a/b/track-01.wav", "track-01"},
		{"Ünïcode Song.mp3", "Ünïcode_Song"},
		{"semi;colon.mp3", "semi_colon"},
	}

	for _, tc := range testCases {
		if got := MediaID(tc.path); got != tc.expected {
			t.Errorf("MediaID(%s): expected %s, got %s", tc.path, tc.expected, got)
		}
	}
}

func TestIsAudioFile(t *testing.T) {
	extractor := newTestExtractor()
	testCases := []struct {
		filename string
		expected bool
	}{
		{"song.mp3", true},
		{"song.MP3", true},
		{"song.flac", true},
		{"song.wav", true},
		{"song.m4a", false},
		{"song.txt", false},
		{"song", false},
		{"", false},
	}

	for _, tc := range testCases {
		if got := extractor.IsAudioFile(tc.filename); got != tc.expected {
			t.Errorf("IsAudioFile(%s): expected %v, got %v", tc.filename, tc.expected, got)
		}
	}
}

func TestContentTypeAndFormat(t *testing.T) {
	testCases := []struct {
		filename    string
		format      string
		contentType string
	}{
		{"song.mp3", "mp3", "audio/mpeg"},
		{"song.FLAC", "flac", "audio/flac"},
		{"song.wav", "wav", "audio/wav"},
		{"song.ogg", "", "application/octet-stream"},
	}

	for _, tc := range testCases {
		if got := Format(tc.filename); got != tc.format {
			t.Errorf("Format(%s): expected %q, got %q", tc.filename, tc.format, got)
		}
		if got := ContentType(tc.filename); got != tc.contentType {
			t.Errorf("ContentType(%s): expected %s, got %s", tc.filename, tc.contentType, got)
		}
	}
}

func TestArtworkMimeType(t *testing.T) {
	testCases := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47}, "image/png"},
		{"gif", []byte{0x47, 0x49, 0x46, 0x38}, "image/gif"},
		{"short", []byte{0x01}, "application/octet-stream"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ArtworkMimeType(tc.data); got != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}
