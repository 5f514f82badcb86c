package model

// ResourceStatus is the user-visible outcome of one resource.
type ResourceStatus string

const (
	// StatusDownloaded means the resource was written into the mirror.
	StatusDownloaded ResourceStatus = "downloaded"
	// StatusSkipped means the resource was deliberately not mirrored
	// (cross-origin, unsupported scheme or ignored by site configuration).
	StatusSkipped ResourceStatus = "skipped"
	// StatusFailed means mirroring was attempted and did not succeed.
	StatusFailed ResourceStatus = "failed"
)

// DownloadRecord is the terminal result of one download attempt.
type DownloadRecord struct {
	// Planned is the resource that was attempted.
	Planned PlannedResource `json:"planned"`

	// Success is true when the file was fetched and written.
	Success bool `json:"success"`

	// BytesWritten is the size of the written file, 0 on failure.
	BytesWritten int64 `json:"bytesWritten"`

	// Digest is the hex SHA3-256 of the written content, empty on failure.
	Digest string `json:"digest,omitempty"`

	// ContentType is the Content-Type the server sent, if any.
	ContentType string `json:"contentType,omitempty"`

	// Err is the failure cause. Not serialized; see ErrorMessage.
	Err error `json:"-"`

	// ErrorMessage is Err.Error() for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// ResourceOutcome is one line of the run report.
type ResourceOutcome struct {
	// Reference is the reference as extracted from the page.
	Reference ResourceReference `json:"reference"`

	// AbsoluteURL is the resolved URL, empty when resolution failed.
	AbsoluteURL string `json:"absoluteUrl,omitempty"`

	// LocalPath is the mirror-relative path for downloaded resources.
	LocalPath string `json:"localPath,omitempty"`

	// Status is downloaded, skipped or failed.
	Status ResourceStatus `json:"status"`

	// Reason explains a skip or failure.
	Reason string `json:"reason,omitempty"`

	// Bytes is the number of bytes written.
	Bytes int64 `json:"bytes,omitempty"`

	// Digest is the SHA3-256 hex digest of the written file.
	Digest string `json:"digest,omitempty"`
}
