package types

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// StreamFormat describes one fetchable media stream.
type StreamFormat struct {
	Itag            int    `json:"itag"`
	MimeType        string `json:"mimeType"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	ContentLength   int64  `json:"contentLength,omitempty"`
	Bitrate         int    `json:"bitrate,omitempty"`
	Quality         string `json:"quality,omitempty"`
	QualityLabel    string `json:"qualityLabel,omitempty"`
	AudioQuality    string `json:"audioQuality,omitempty"`
	AudioSampleRate int    `json:"audioSampleRate,omitempty"`
	URL             string `json:"url"`
}

// CleanMimeType returns the MIME type without parameters such as codecs.
func (f StreamFormat) CleanMimeType() string {
	mime := f.MimeType
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}

// HasAudio reports whether the stream carries an audio track.
func (f StreamFormat) HasAudio() bool {
	return f.AudioQuality != ""
}

// IsVideo reports whether the MIME type is a video type.
func (f StreamFormat) IsVideo() bool {
	return strings.HasPrefix(f.MimeType, "video")
}

// IsAudio reports whether the MIME type is an audio type.
func (f StreamFormat) IsAudio() bool {
	return strings.HasPrefix(f.MimeType, "audio")
}

// RawFormatEntry is a stream entry as it appears in the player payload,
// before its URL has been resolved.
type RawFormatEntry struct {
	StreamFormat
	// Cipher is the legacy name of SignatureCipher.
	Cipher          string `json:"cipher,omitempty"`
	SignatureCipher string `json:"signatureCipher,omitempty"`
}

// CipherBlob returns the encoded url/s/sp triple, if any.
func (e RawFormatEntry) CipherBlob() string {
	if e.SignatureCipher != "" {
		return e.SignatureCipher
	}
	return e.Cipher
}

// VideoDetails describes the resolved video.
type VideoDetails struct {
	ID               string   `json:"videoId"`
	Title            string   `json:"title"`
	Author           string   `json:"author,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	ShortDescription string   `json:"shortDescription,omitempty"`
	LengthSeconds    int      `json:"lengthSeconds,omitempty"`
	ViewCount        int64    `json:"viewCount,omitempty"`
}

// DecodeMap decodes a generic JSON object into out. Numeric fields accept
// JSON numbers as well as decimal strings, which is how the site encodes
// lengths and counts.
func DecodeMap(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
