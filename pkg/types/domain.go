package types

// ModelStatus is the lifecycle state of a model variant as reported by the
// server, or optimistically assumed by the client between a command and the
// next poll.
type ModelStatus string

const (
	StatusNotDownloaded ModelStatus = "not_downloaded"
	StatusDownloading   ModelStatus = "downloading"
	StatusDownloaded    ModelStatus = "downloaded"
	StatusLoading       ModelStatus = "loading"
	StatusReady         ModelStatus = "ready"
	StatusError         ModelStatus = "error"
)

// Valid reports whether s is one of the six known lifecycle states.
func (s ModelStatus) Valid() bool {
	switch s {
	case StatusNotDownloaded, StatusDownloading, StatusDownloaded,
		StatusLoading, StatusReady, StatusError:
		return true
	}
	return false
}

// Transitional reports whether s is an in-progress state that is only
// resolved by a later poll.
func (s ModelStatus) Transitional() bool {
	return s == StatusDownloading || s == StatusLoading
}

// ModelInfo describes one model variant and its current lifecycle state.
type ModelInfo struct {
	// Stable identifier for the model variant.
	Variant string `json:"variant"`
	// Current lifecycle status.
	Status ModelStatus `json:"status"`
	// Local weights path on the server; set once downloaded.
	LocalPath string `json:"local_path,omitempty"`
	// Size of the weights in bytes, once known.
	SizeBytes *int64 `json:"size_bytes,omitempty"`
	// Server-reported download progress in [0,100], when available.
	DownloadProgress *float64 `json:"download_progress,omitempty"`
	// Failure detail; set only when Status is error.
	ErrorMessage string `json:"error_message,omitempty"`
}
