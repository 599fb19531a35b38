// Package catalog holds the resolved streams of one video and answers
// selection queries over them.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ytget/ytlinks/types"
)

// ErrNoSplitStreams is returned by Split when the catalog lacks
// video-only or audio-only streams.
var ErrNoSplitStreams = errors.New("catalog: no split streams")

// Catalog is an immutable list of resolved streams plus optional video
// details.
type Catalog struct {
	formats []types.StreamFormat
	details *types.VideoDetails
}

// New builds a catalog from formats, keeping their order.
func New(formats []types.StreamFormat, details *types.VideoDetails) *Catalog {
	c := &Catalog{formats: make([]types.StreamFormat, len(formats))}
	copy(c.formats, formats)
	if details != nil {
		d := *details
		d.Keywords = append([]string(nil), details.Keywords...)
		c.details = &d
	}
	return c
}

// Formats returns a copy of all streams.
func (c *Catalog) Formats() []types.StreamFormat {
	return c.filter(func(types.StreamFormat) bool { return true })
}

// Details returns the video details, or nil when unknown.
func (c *Catalog) Details() *types.VideoDetails { return c.details }

// Len returns the number of streams.
func (c *Catalog) Len() int { return len(c.formats) }

func (c *Catalog) filter(keep func(types.StreamFormat) bool) []types.StreamFormat {
	out := make([]types.StreamFormat, 0, len(c.formats))
	for _, f := range c.formats {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// VideoOnly returns video streams without an audio track.
func (c *Catalog) VideoOnly() []types.StreamFormat {
	return c.filter(func(f types.StreamFormat) bool { return f.IsVideo() && !f.HasAudio() })
}

// AudioOnly returns audio streams.
func (c *Catalog) AudioOnly() []types.StreamFormat {
	return c.filter(types.StreamFormat.IsAudio)
}

// Combined returns video streams that carry audio.
func (c *Catalog) Combined() []types.StreamFormat {
	return c.filter(func(f types.StreamFormat) bool { return f.IsVideo() && f.HasAudio() })
}

// FirstCombined returns the first combined stream.
func (c *Catalog) FirstCombined() (types.StreamFormat, bool) {
	combined := c.Combined()
	if len(combined) == 0 {
		return types.StreamFormat{}, false
	}
	return combined[0], true
}

// Quality picks a position in a low-to-high ordering.
type Quality int

const (
	QualityMedium Quality = iota
	QualityBest
	QualityWorst
)

func (q Quality) String() string {
	switch q {
	case QualityBest:
		return "best"
	case QualityWorst:
		return "worst"
	}
	return "medium"
}

// ParseQuality accepts best/high, worst/low and medium. An empty string
// means medium.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "best", "high":
		return QualityBest, nil
	case "worst", "low":
		return QualityWorst, nil
	case "", "medium":
		return QualityMedium, nil
	}
	return QualityMedium, fmt.Errorf("catalog: unknown quality %q", s)
}

// SplitStream pairs a video-only stream with an audio-only stream, to be
// muxed by the caller.
type SplitStream struct {
	Video types.StreamFormat `json:"video"`
	Audio types.StreamFormat `json:"audio"`
}

func pick(list []types.StreamFormat, q Quality) types.StreamFormat {
	switch q {
	case QualityBest:
		return list[len(list)-1]
	case QualityWorst:
		return list[0]
	}
	return list[len(list)/2]
}

// Split picks a video-only and an audio-only stream. Video is ranked by
// height and audio by content length, both ascending with ties kept in
// catalog order.
func (c *Catalog) Split(q Quality) (SplitStream, error) {
	videos := c.VideoOnly()
	audios := c.AudioOnly()
	if len(videos) == 0 || len(audios) == 0 {
		return SplitStream{}, ErrNoSplitStreams
	}
	sort.SliceStable(videos, func(i, j int) bool { return videos[i].Height < videos[j].Height })
	sort.SliceStable(audios, func(i, j int) bool { return audios[i].ContentLength < audios[j].ContentLength })
	return SplitStream{Video: pick(videos, q), Audio: pick(audios, q)}, nil
}

type catalogJSON struct {
	Details *types.VideoDetails  `json:"details,omitempty"`
	Formats []types.StreamFormat `json:"formats"`
}

// MarshalJSON renders the details and the stream list.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(catalogJSON{Details: c.details, Formats: c.Formats()})
}
