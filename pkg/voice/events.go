package voice

import (
	"encoding/json"
)

// Wire types for the Live API. Outgoing messages use the snake_case
// field names the WebSocket endpoint accepts; incoming ones arrive in
// camelCase.

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model             string            `json:"model"`
	GenerationConfig  *generationConfig `json:"generation_config,omitempty"`
	SystemInstruction *contentPayload   `json:"system_instruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"response_modalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speech_config,omitempty"`
}

type speechConfig struct {
	VoiceConfig  *voiceConfig `json:"voice_config,omitempty"`
	LanguageCode string       `json:"language_code,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuilt_voice_config,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voice_name"`
}

type contentPayload struct {
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text,omitempty"`
}

// realtimeInput carries one chunk of caller audio upstream.
type realtimeInput struct {
	RealtimeInput mediaChunks `json:"realtime_input"`
}

type mediaChunks struct {
	MediaChunks []mediaChunk `json:"media_chunks"`
}

type mediaChunk struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

// clientContent injects a text turn into the conversation.
type clientContent struct {
	ClientContent clientContentPayload `json:"client_content"`
}

type clientContentPayload struct {
	Turns        []clientTurn `json:"turns"`
	TurnComplete bool         `json:"turn_complete"`
}

type clientTurn struct {
	Role  string     `json:"role"`
	Parts []textPart `json:"parts"`
}

// serverEvent is the union of messages the Live API sends. Only the
// field matching the event is populated.
type serverEvent struct {
	SetupComplete json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent *serverContent  `json:"serverContent,omitempty"`

	// Interruption also appears at the top level on some responses.
	Interrupted json.RawMessage `json:"interrupted,omitempty"`

	GoAway json.RawMessage `json:"goAway,omitempty"`
}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type modelTurn struct {
	Parts []modelPart `json:"parts,omitempty"`
}

type modelPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type transcription struct {
	Text string `json:"text"`
}

// decodeServerEvent parses one frame from the Live API socket.
func decodeServerEvent(data []byte) (*serverEvent, error) {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &ProtocolError{Detail: "decode server event", Cause: err}
	}
	return &ev, nil
}
