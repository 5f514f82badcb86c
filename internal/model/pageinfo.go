package model

// PageInfo is descriptive metadata about the mirrored page.
type PageInfo struct {
	Title    string `json:"title,omitempty"`
	Byline   string `json:"byline,omitempty"`
	SiteName string `json:"siteName,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`

	// Language is the ISO 639-1 code of the detected text language, empty if unknown.
	Language string `json:"language,omitempty"`
}

// ImageFinding is a metadata tag found in a mirrored image that may
// identify the author, device or location.
type ImageFinding struct {
	// LocalPath is the mirror-relative path of the image.
	LocalPath string `json:"localPath"`

	// Kind groups tags: "gps", "device", "author", "software" or "timestamp".
	Kind string `json:"kind"`

	// Tag is the EXIF tag name.
	Tag string `json:"tag"`

	// Value is the formatted tag value.
	Value string `json:"value"`
}
