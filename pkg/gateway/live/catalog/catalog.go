// Package catalog is the declarative model/voice configuration for live
// sessions. Adding a model or voice is a data change here, not a code change
// in the bridge.
package catalog

import "strings"

// DefaultLiveModel is used when the client does not request a model.
const DefaultLiveModel = "gemini-2.0-flash-live-001"

// Capabilities describes which optional upstream features are legal for a
// model. Unknown models get the safest subset (search only).
type Capabilities struct {
	Search        bool
	Functions     bool
	CodeExecution bool
	URLContext    bool
}

var modelCapabilities = map[string]Capabilities{
	"gemini-2.0-flash-live-001": {
		Search:        true,
		Functions:     true,
		CodeExecution: true,
		URLContext:    true,
	},
	"gemini-2.5-flash-preview-native-audio-dialog": {
		Search:    true,
		Functions: true,
	},
	"gemini-2.5-flash-exp-native-audio-thinking-dialog": {
		Search: true,
	},
}

// CapabilitiesFor accepts unrecognized model ids for forward compatibility
// and pins them to search-only.
func CapabilitiesFor(modelID string) Capabilities {
	if caps, ok := modelCapabilities[strings.TrimSpace(modelID)]; ok {
		return caps
	}
	return Capabilities{Search: true}
}

var availableVoices = []string{
	"Puck", "Charon", "Kore", "Fenrir", "Aoede", "Leda", "Orus", "Zephyr",
}

func VoiceAllowed(voice string) bool {
	for _, v := range availableVoices {
		if v == voice {
			return true
		}
	}
	return false
}

func Voices() []string {
	out := make([]string, len(availableVoices))
	copy(out, availableVoices)
	return out
}

// DefaultSystemInstruction is the fallback system prompt when the client
// supplies none. toolNames lists the registered custom tools so the model
// knows what it can call.
func DefaultSystemInstruction(toolNames []string) string {
	var b strings.Builder
	b.WriteString("You are Apsara, an intelligent, helpful, and proactive realtime voice assistant. ")
	b.WriteString("Give clear, useful, and concise answers, and anticipate what the user needs next. ")
	b.WriteString("Use a warm, professional tone; be conversational but efficient. ")
	b.WriteString("Use Google Search for up-to-date information when needed.")
	if len(toolNames) > 0 {
		b.WriteString(" You have access to these specialized tools: ")
		b.WriteString(strings.Join(toolNames, ", "))
		b.WriteString(". Call a tool whenever it answers the user's request better than you can from memory.")
	}
	return b.String()
}
