package model

import (
	"bytes"
	"io"
)

// Attachment is a local file picked for a file field that has not been
// uploaded yet.
type Attachment struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// BytesAttachment wraps in-memory content as an Attachment.
func BytesAttachment(name string, data []byte) Attachment {
	return Attachment{
		Filename: name,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileRef is an uploaded file as stored in a Response.
type FileRef struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// AsFileRef recognizes values that already point at an uploaded file: a
// FileRef, a decoded {url, filename} object or a bare URL string.
func AsFileRef(v any) (FileRef, bool) {
	switch x := v.(type) {
	case FileRef:
		return x, true
	case *FileRef:
		if x != nil {
			return *x, true
		}
	case map[string]any:
		u, ok := x["url"].(string)
		if !ok || u == "" {
			return FileRef{}, false
		}
		name, _ := x["filename"].(string)
		return FileRef{URL: u, Filename: name}, true
	case string:
		if x != "" {
			return FileRef{URL: x, Filename: x}, true
		}
	}
	return FileRef{}, false
}
