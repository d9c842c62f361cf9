// Package upload stores files attached to responses on the local disk.
package upload

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
)

var ErrTooLarge = errors.New("file too large")

var reUnsafe = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)

// sniffLen is how much of a file is read to detect its type.
const sniffLen = 3072

// Disk writes uploads to Dir and serves them under BaseURL + "/uploads/".
type Disk struct {
	Dir      string
	BaseURL  string
	MaxBytes int64
	now      func() time.Time
}

// Stored describes a file written by Disk.
type Stored struct {
	model.FileRef
	OriginalName string
	ContentType  string
	Size         int64
}

func NewDisk(dir, baseURL string, maxBytes int64) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	return &Disk{
		Dir:      dir,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		MaxBytes: maxBytes,
		now:      time.Now,
	}, nil
}

// Upload satisfies the submission pipeline's uploader.
func (d *Disk) Upload(ctx context.Context, filename string, content io.Reader) (model.FileRef, error) {
	s, err := d.Save(ctx, filename, content)
	if err != nil {
		return model.FileRef{}, err
	}
	return s.FileRef, nil
}

// Save writes content under a name made of the current time in milliseconds
// and the sanitized original name. Content larger than MaxBytes is rejected
// and nothing is kept.
func (d *Disk) Save(ctx context.Context, filename string, content io.Reader) (*Stored, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(content, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.Wrap(err, "read upload")
	}
	head = head[:n]
	mtype := mimetype.Detect(head)

	f, stored, err := d.create(SafeName(filename))
	if err != nil {
		return nil, err
	}
	path := f.Name()

	src := io.MultiReader(bytes.NewReader(head), &ctxReader{ctx: ctx, r: content})
	if d.MaxBytes > 0 {
		src = io.LimitReader(src, d.MaxBytes+1)
	}
	size, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && d.MaxBytes > 0 && size > d.MaxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	log.WithFields(log.Fields{"file": stored, "type": mtype.String(), "size": size}).Debug("upload.save")
	return &Stored{
		FileRef: model.FileRef{
			URL:      d.BaseURL + "/uploads/" + url.PathEscape(stored),
			Filename: stored,
		},
		OriginalName: filename,
		ContentType:  mtype.String(),
		Size:         size,
	}, nil
}

func (d *Disk) create(name string) (*os.File, string, error) {
	prefix := strconv.FormatInt(d.now().UnixMilli(), 10)
	for i := 0; ; i++ {
		stored := prefix + "-" + name
		if i > 0 {
			stored = prefix + "-" + strconv.Itoa(i) + "-" + name
		}
		f, err := os.OpenFile(filepath.Join(d.Dir, stored), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, stored, nil
		}
		if !os.IsExist(err) || i >= 100 {
			return nil, "", errors.Wrap(err, "create upload")
		}
	}
}

// SafeName replaces every character outside [a-zA-Z0-9._-] with an
// underscore.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return reUnsafe.ReplaceAllLiteralString(name, "_")
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
