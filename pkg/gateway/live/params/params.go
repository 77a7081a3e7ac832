// Package params resolves websocket connection-establishment parameters into
// an immutable session descriptor. Resolution is pure: no I/O, and the only
// fatal condition is a URL that does not parse.
package params

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/apsara-labs/apsara-live/pkg/gateway/live/catalog"
)

type Modality int

const (
	ModalityText Modality = iota
	ModalityAudio
	ModalityAudioText
)

func (m Modality) String() string {
	switch m {
	case ModalityAudio:
		return "AUDIO"
	case ModalityAudioText:
		return "AUDIO_TEXT"
	default:
		return "TEXT"
	}
}

// IncludesAudio reports whether audio output is part of the negotiated
// response modality. Voice selection is only meaningful when true.
func (m Modality) IncludesAudio() bool {
	return m == ModalityAudio || m == ModalityAudioText
}

type MediaResolution string

const (
	MediaResolutionLow    MediaResolution = "MEDIA_RESOLUTION_LOW"
	MediaResolutionMedium MediaResolution = "MEDIA_RESOLUTION_MEDIUM"
	MediaResolutionHigh   MediaResolution = "MEDIA_RESOLUTION_HIGH"
)

type Compression struct {
	Enabled       bool
	TriggerTokens int
}

// Descriptor is the validated per-connection session configuration. It is
// constructed once at upgrade time and never mutated after the upstream
// session opens; changing anything requires a new connection.
type Descriptor struct {
	Modality     Modality
	Voice        string
	SystemPrompt string
	Model        string
	ResumeHandle string

	Compression          Compression
	TranscriptionEnabled bool
	MediaResolution      MediaResolution
	DisableVAD           bool

	// Native-audio feature flags for the 2.5 dialog models.
	AffectiveDialog bool
	ProactiveAudio  bool
	NativeAudio     bool

	Capabilities catalog.Capabilities
}

const defaultSlidingWindowTokens = 4000

// Resolve parses the upgrade request URL into a Descriptor. The warnings
// slice carries non-fatal oddities (unknown voice, undecodable system
// prompt, flag conflicts) for the caller to log.
func Resolve(rawURL string) (Descriptor, []string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Descriptor{}, nil, fmt.Errorf("parse connection url: %w", err)
	}
	q := u.Query()

	var warnings []string
	warnf := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	d := Descriptor{
		Model:                catalog.DefaultLiveModel,
		Compression:          Compression{Enabled: true, TriggerTokens: defaultSlidingWindowTokens},
		TranscriptionEnabled: true,
		MediaResolution:      MediaResolutionMedium,
	}

	switch strings.ToUpper(strings.TrimSpace(q.Get("modalities"))) {
	case "AUDIO":
		d.Modality = ModalityAudio
	case "AUDIO_TEXT", "AUDIO+TEXT":
		d.Modality = ModalityAudioText
	default:
		d.Modality = ModalityText
	}

	if voice := strings.TrimSpace(q.Get("voice")); voice != "" {
		switch {
		case !d.Modality.IncludesAudio():
			warnf("voice %q ignored: response modality %s has no audio", voice, d.Modality)
		case !catalog.VoiceAllowed(voice):
			warnf("voice %q is not available, using model default", voice)
		default:
			d.Voice = voice
		}
	}

	if raw := q.Get("system"); raw != "" {
		// The UI percent-encodes the prompt before it goes into the query
		// string, so it arrives double-encoded and needs one more decode
		// pass. A decode failure means no system prompt, not a dead
		// connection.
		if decoded, err := url.QueryUnescape(raw); err == nil {
			d.SystemPrompt = decoded
		} else {
			warnf("system instruction failed to decode, ignoring: %v", err)
		}
	}

	if model := strings.TrimSpace(q.Get("model")); model != "" {
		d.Model = model
	}
	d.Capabilities = catalog.CapabilitiesFor(d.Model)

	if handle := strings.TrimSpace(q.Get("resumehandle")); handle != "" {
		d.ResumeHandle = handle
	}

	if q.Get("disablevad") == "true" && d.Modality.IncludesAudio() {
		d.DisableVAD = true
	}

	if q.Has("slidingwindow") {
		d.Compression.Enabled = q.Get("slidingwindow") == "true"
	}
	if q.Has("slidingwindowtokens") {
		n, err := strconv.Atoi(strings.TrimSpace(q.Get("slidingwindowtokens")))
		if err != nil || n <= 0 {
			n = defaultSlidingWindowTokens
		}
		d.Compression.TriggerTokens = n
	}
	if q.Has("transcription") {
		d.TranscriptionEnabled = q.Get("transcription") != "false"
	}

	switch MediaResolution(strings.TrimSpace(q.Get("mediaResolution"))) {
	case MediaResolutionLow:
		d.MediaResolution = MediaResolutionLow
	case MediaResolutionHigh:
		d.MediaResolution = MediaResolutionHigh
	case MediaResolutionMedium, "":
		d.MediaResolution = MediaResolutionMedium
	default:
		warnf("unknown mediaResolution %q, using medium", q.Get("mediaResolution"))
		d.MediaResolution = MediaResolutionMedium
	}

	d.AffectiveDialog = q.Get("enableAffectiveDialog") == "true"
	d.ProactiveAudio = q.Get("proactiveAudio") == "true"
	d.NativeAudio = q.Get("nativeAudio") == "true"
	if d.AffectiveDialog && d.ProactiveAudio {
		warnf("affective dialog and proactive audio are both enabled; they are mutually exclusive and behavior may be unpredictable")
	}
	if (d.AffectiveDialog || d.ProactiveAudio) && d.NativeAudio {
		warnf("a specific native-audio feature and generic nativeAudio=true are both set; the model may ignore the specific feature")
	}

	return d, warnings, nil
}
