package model

import (
	"fmt"
	"strings"
)

// TagKind identifies the kind of element a resource reference came from.
type TagKind int

const (
	// TagStylesheet is a <link rel="stylesheet" href="..."> element.
	TagStylesheet TagKind = iota
	// TagScript is a <script src="..."> element.
	TagScript
	// TagImage is an <img src="..."> element.
	TagImage
)

// String returns the lowercase name of the tag kind.
func (k TagKind) String() string {
	switch k {
	case TagStylesheet:
		return "stylesheet"
	case TagScript:
		return "script"
	case TagImage:
		return "image"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so reports carry readable names.
func (k TagKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *TagKind) UnmarshalText(text []byte) error {
	for _, candidate := range []TagKind{TagStylesheet, TagScript, TagImage} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown tag kind %q", text)
}

// Category is the mirror subdirectory a resource is stored under.
type Category string

const (
	// CategoryCSS holds stylesheets.
	CategoryCSS Category = "css"
	// CategoryJS holds scripts.
	CategoryJS Category = "js"
	// CategoryImages holds images.
	CategoryImages Category = "images"
	// CategoryOther holds everything else.
	CategoryOther Category = "other"
)

// Categories lists every category in directory creation order.
func Categories() []Category {
	return []Category{CategoryCSS, CategoryJS, CategoryImages, CategoryOther}
}

// IsText reports whether files of this category are rewritten after download.
func (c Category) IsText() bool {
	return c == CategoryCSS || c == CategoryJS
}

// CategoryForExtension maps a file extension (with or without the leading dot)
// to its category. Unknown and empty extensions map to CategoryOther.
func CategoryForExtension(ext string) Category {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "css":
		return CategoryCSS
	case "js":
		return CategoryJS
	case "jpg", "jpeg", "png", "gif", "svg":
		return CategoryImages
	default:
		return CategoryOther
	}
}

// ResourceReference is one resource discovered in the page markup.
// Duplicate references to the same URL are kept as separate values.
type ResourceReference struct {
	// Kind is the element kind the reference was found on.
	Kind TagKind `json:"kind"`

	// Attribute is the attribute holding the URL ("href" or "src").
	Attribute string `json:"attribute"`

	// RawURL is the attribute value exactly as written in the page.
	RawURL string `json:"rawUrl"`

	// Index is the position of the reference in extraction order.
	Index int `json:"index"`
}

// PlannedResource is a same-origin reference with a decided local location.
type PlannedResource struct {
	// Reference is the reference this plan was computed from.
	Reference ResourceReference `json:"reference"`

	// AbsoluteURL is RawURL resolved against the page URL, without fragment.
	AbsoluteURL string `json:"absoluteUrl"`

	// Category is the subdirectory the file is written under.
	Category Category `json:"category"`

	// LocalPath is the slash-separated path relative to the mirror root,
	// e.g. "css/assets/style.css".
	LocalPath string `json:"localPath"`

	// Filename is the sanitized final path component of LocalPath.
	Filename string `json:"filename"`
}
