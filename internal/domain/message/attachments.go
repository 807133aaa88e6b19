package message

import (
	"strings"
)

// Source tags the producer that handed the core an attachment descriptor.
type Source string

const (
	SourceLocal   Source = "local"
	SourceDrive   Source = "drive"
	SourceMailbox Source = "mailbox"
)

func (s Source) Valid() bool {
	switch s {
	case "", SourceLocal, SourceDrive, SourceMailbox:
		return true
	}
	return false
}

// Attachment is a fully formed file descriptor. The core never uploads; it
// only records what the producer hands over.
type Attachment struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Source   Source `json:"source,omitempty"`
}

// TypeFromMime maps a mime family onto a message type.
func TypeFromMime(mime string) Type {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return TypeImage
	case strings.HasPrefix(mime, "video/"):
		return TypeVideo
	case strings.HasPrefix(mime, "audio/"):
		return TypeAudio
	default:
		return TypeFile
	}
}

// MediaKind filters the media gallery.
type MediaKind string

const (
	MediaAll    MediaKind = "all"
	MediaImages MediaKind = "images"
	MediaFiles  MediaKind = "files"
)
