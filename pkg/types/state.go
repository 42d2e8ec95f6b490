package types

// SessionStatus is the lifecycle state of a generation session.
type SessionStatus string

const (
	SessionIdle     SessionStatus = "idle"
	SessionRunning  SessionStatus = "running"
	SessionComplete SessionStatus = "complete"
	SessionError    SessionStatus = "error"
)

// GenerationStats reports timing for a completed generation.
type GenerationStats struct {
	// Wall-clock seconds spent waiting on the server.
	GenerationSecs float64 `json:"generation_secs"`
	// Decoded clip length in seconds, once known. Zero until decoded.
	DurationSecs float64 `json:"duration_secs,omitempty"`
	// DurationSecs / GenerationSecs; informational only.
	RealtimeRatio float64 `json:"realtime_ratio,omitempty"`
	// Size of the produced audio payload.
	AudioBytes int `json:"audio_bytes,omitempty"`
}

// GenerationState is the session observable exposed to the UI.
type GenerationState struct {
	Status SessionStatus `json:"status"`
	// Last request text, for display.
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
	// True when an audio resource is held and fetchable.
	AudioReady bool             `json:"audio_ready"`
	Stats      *GenerationStats `json:"stats,omitempty"`
}

// StateResponse is the merged view served to the UI layer: the reconciled
// model table, the selected model, and the generation observable.
type StateResponse struct {
	Models        []ModelInfo     `json:"models"`
	SelectedModel string          `json:"selected_model,omitempty"`
	Generation    GenerationState `json:"generation"`
	// LastError is the transient, dismissible failure notice.
	LastError string `json:"last_error,omitempty"`
}
