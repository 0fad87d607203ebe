package metadata

import "strings"

const highResSampleRate = 96000

const highResBitDepth = 24

var supportedExtensions = map[string]struct{}{
	"aac":  {},
	"aif":  {},
	"aiff": {},
	"alac": {},
	"ape":  {},
	"dff":  {},
	"dsd":  {},
	"dsf":  {},
	"flac": {},
	"m4a":  {},
	"mp3":  {},
	"ogg":  {},
	"opus": {},
	"wav":  {},
	"wma":  {},
}

// IsSupportedExtension reports whether ext names an audio container the
// indexer handles. The leading dot and letter case are ignored.
func IsSupportedExtension(ext string) bool {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	_, ok := supportedExtensions[normalized]
	return ok
}

// NormalizeFormat maps a file extension to its canonical uppercase
// format tag.
func NormalizeFormat(ext string) string {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	switch normalized {
	case "":
		return ""
	case "m4a":
		return "AAC"
	case "dsf", "dff", "dsd":
		return "DSD"
	case "aif", "aiff":
		return "AIFF"
	default:
		return strings.ToUpper(normalized)
	}
}

// formatClass is the closed classification set over canonical formats.
type formatClass interface {
	audioClass()
}

type lossyClass struct{}

type losslessPCMClass struct {
	assumedBitDepth int
}

type dsdClass struct{}

func (lossyClass) audioClass() {}

func (losslessPCMClass) audioClass() {}

func (dsdClass) audioClass() {}

func classOf(format string) formatClass {
	switch format {
	case "DSD", "DSF", "DFF":
		return dsdClass{}
	case "FLAC", "ALAC":
		return losslessPCMClass{assumedBitDepth: 24}
	case "WAV", "AIFF", "APE":
		return losslessPCMClass{assumedBitDepth: 16}
	default:
		return lossyClass{}
	}
}

// estimateBitDepth fills in a bit depth when tags omit it. Lossy codecs
// have no meaningful bit depth and stay absent.
func estimateBitDepth(format string) *int {
	switch class := classOf(format).(type) {
	case dsdClass:
		depth := 1
		return &depth
	case losslessPCMClass:
		depth := class.assumedBitDepth
		return &depth
	default:
		return nil
	}
}

// isHighRes classifies a track as high-resolution: DSD always, sample
// rate at or above 96 kHz, or bit depth at or above 24. The final
// lossless-PCM check restates the bit-depth rule for formats that
// qualify on depth alone even at standard sample rates.
func isHighRes(format string, sampleRate, bitDepth *int) bool {
	if _, ok := classOf(format).(dsdClass); ok {
		return true
	}
	if sampleRate != nil && *sampleRate >= highResSampleRate {
		return true
	}
	if bitDepth != nil && *bitDepth >= highResBitDepth {
		return true
	}
	if _, ok := classOf(format).(losslessPCMClass); ok {
		return bitDepth != nil && *bitDepth >= highResBitDepth
	}

	return false
}
