package types

// GenerateRequest is the payload for POST /tts/generate and POST /tts/stream.
// Optional fields are forwarded opaquely; the server applies its own defaults.
type GenerateRequest struct {
	// Text to synthesize.
	Text string `json:"text"`
	// Speaker preset identifier.
	Speaker string `json:"speaker,omitempty"`
	// Free-form voice description used by models that support it.
	VoiceDescription string `json:"voice_description,omitempty"`
	// Base64 reference audio for voice cloning.
	ReferenceAudio string `json:"reference_audio,omitempty"`
	// Transcript of the reference audio.
	ReferenceText string `json:"reference_text,omitempty"`
	// Output container, e.g. "wav".
	Format string `json:"format,omitempty"`
	// Sampling temperature.
	Temperature *float64 `json:"temperature,omitempty"`
	// Playback speed multiplier.
	Speed *float64 `json:"speed,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// CommandAck is returned by the download/load/unload command endpoints.
// It acknowledges acceptance of the command, not completion of the
// background operation.
type CommandAck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorEnvelope is the server's error payload on non-2xx responses.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the server's error message.
type ErrorDetail struct {
	Message string `json:"message"`
}

// ErrorResponse is the uibridge's consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
