package metadata

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"
)

const (
	defaultArtist   = "Unknown Artist"
	defaultAlbum    = "Unknown Album"
	defaultChannels = 2
)

// Metadata is the reconciled view of one audio file after the tag
// probe, the container probe, and computed defaults have been merged.
// IsHighRes is derived from Format/SampleRate/BitDepth and is never
// set independently.
type Metadata struct {
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	Format      string
	Year        *int
	TrackNumber *int
	DiscNumber  *int
	DurationMS  int64
	Bitrate     *int
	SampleRate  *int
	BitDepth    *int
	Channels    int
	ReplayGain  *float64
	IsHighRes   bool
}

type probeResult struct {
	title       string
	artist      string
	albumArtist string
	album       string
	genre       string
	year        *int
	trackNumber *int
	discNumber  *int
	durationMS  int64
	bitrate     *int
	sampleRate  *int
	bitDepth    *int
	channels    *int
	replayGain  *float64
}

type Extractor struct {
	log *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{log: logger}
}

// Extract reads one file's metadata. The taglib probe is authoritative;
// when it cannot read the file at all, the container probe fills in, and
// whatever neither source knows falls to computed defaults. An error
// means both probes failed and the caller should skip the file.
func (e *Extractor) Extract(path string) (Metadata, error) {
	primary, primaryErr := readTagsPrimary(path)
	if primaryErr == nil {
		return mergeProbe(primary, path), nil
	}

	fallback, fallbackErr := readTagsFallback(path)
	if fallbackErr != nil {
		return Metadata{}, fmt.Errorf("extract metadata %s: %w", path, primaryErr)
	}

	e.log.Debug("tag probe failed, container probe used", "path", path, "error", primaryErr)
	return mergeProbe(fallback, path), nil
}

func readTagsPrimary(path string) (probeResult, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return probeResult{}, fmt.Errorf("read tags: %w", err)
	}

	result := probeResult{
		title:       firstTagValue(tags, taglib.Title, "TITLE"),
		artist:      firstTagValue(tags, taglib.Artist, "ARTIST"),
		albumArtist: firstTagValue(tags, taglib.AlbumArtist, "ALBUMARTIST"),
		album:       firstTagValue(tags, taglib.Album, "ALBUM"),
		genre:       firstTagValue(tags, taglib.Genre, "GENRE"),
		trackNumber: parseNumericPair(firstTagValue(tags, taglib.TrackNumber, "TRACKNUMBER", "TRCK")),
		discNumber:  parseNumericPair(firstTagValue(tags, taglib.DiscNumber, "DISCNUMBER", "TPOS")),
		year:        parseYear(firstTagValue(tags, taglib.Date, "DATE", "YEAR", "ORIGINALDATE", "RELEASEDATE")),
		bitDepth:    parseNumericPair(firstTagValue(tags, "BITS_PER_SAMPLE", "BITDEPTH", "BIT_DEPTH")),
		replayGain:  parseReplayGain(firstTagValue(tags, "REPLAYGAIN_TRACK_GAIN")),
	}

	properties, propertiesErr := taglib.ReadProperties(path)
	if propertiesErr != nil {
		return result, nil
	}

	if properties.Length > 0 {
		result.durationMS = properties.Length.Milliseconds()
	}
	if properties.SampleRate > 0 {
		sampleRate := int(properties.SampleRate)
		result.sampleRate = &sampleRate
	}
	if properties.Bitrate > 0 {
		bitrate := int(properties.Bitrate)
		result.bitrate = &bitrate
	}
	if properties.Channels > 0 {
		channels := int(properties.Channels)
		result.channels = &channels
	}

	return result, nil
}

func readTagsFallback(path string) (probeResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return probeResult{}, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	parsed, err := tag.ReadFrom(file)
	if err != nil {
		return probeResult{}, fmt.Errorf("probe container: %w", err)
	}

	result := probeResult{
		title:       strings.TrimSpace(parsed.Title()),
		artist:      strings.TrimSpace(parsed.Artist()),
		albumArtist: strings.TrimSpace(parsed.AlbumArtist()),
		album:       strings.TrimSpace(parsed.Album()),
		genre:       strings.TrimSpace(parsed.Genre()),
	}

	if year := parsed.Year(); year > 0 {
		result.year = &year
	}
	if number, _ := parsed.Track(); number > 0 {
		result.trackNumber = &number
	}
	if number, _ := parsed.Disc(); number > 0 {
		result.discNumber = &number
	}

	return result, nil
}

func mergeProbe(probe probeResult, path string) Metadata {
	format := NormalizeFormat(filepath.Ext(path))

	merged := Metadata{
		Title:       probe.title,
		Artist:      probe.artist,
		AlbumArtist: probe.albumArtist,
		Album:       probe.album,
		Genre:       probe.genre,
		Format:      format,
		Year:        probe.year,
		TrackNumber: probe.trackNumber,
		DiscNumber:  probe.discNumber,
		DurationMS:  probe.durationMS,
		Bitrate:     probe.bitrate,
		SampleRate:  probe.sampleRate,
		BitDepth:    probe.bitDepth,
		Channels:    defaultChannels,
		ReplayGain:  probe.replayGain,
	}

	if merged.Title == "" {
		merged.Title = deriveTitleFromFilename(path)
	}
	if merged.Artist == "" {
		merged.Artist = defaultArtist
	}
	if merged.AlbumArtist == "" {
		merged.AlbumArtist = merged.Artist
	}
	if merged.Album == "" {
		merged.Album = defaultAlbum
	}
	if probe.channels != nil {
		merged.Channels = *probe.channels
	}
	if merged.BitDepth == nil {
		merged.BitDepth = estimateBitDepth(format)
	}
	merged.IsHighRes = isHighRes(format, merged.SampleRate, merged.BitDepth)

	return merged
}
