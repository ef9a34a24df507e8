package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// BodyPart is one field of a multipart body. Length is the number of bytes
// Reader will produce; a negative Length streams Reader until EOF.
type BodyPart struct {
	Reader  io.Reader
	Length  int64
	Headers map[string]string
}

// MultipartSupplier produces the ordered parts of a multipart body. The
// transport calls it once per submitted request, when the request is sent.
type MultipartSupplier func() ([]BodyPart, error)

// Parts returns a MultipartSupplier yielding parts as given.
func Parts(parts ...BodyPart) MultipartSupplier {
	return func() ([]BodyPart, error) {
		return parts, nil
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func formDisposition(name, filename string) string {
	if filename == "" {
		return fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(name))
	}
	return fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(filename))
}

// BytesPart builds a part from an in-memory payload.
func BytesPart(data []byte, headers map[string]string) BodyPart {
	return BodyPart{
		Reader:  bytes.NewReader(data),
		Length:  int64(len(data)),
		Headers: headers,
	}
}

// FieldPart builds a regular form field.
func FieldPart(name, value string) BodyPart {
	return BytesPart([]byte(value), map[string]string{
		"Content-Disposition": formDisposition(name, ""),
	})
}

// FilePart opens path and builds a file upload part for field. Relative
// paths are resolved against baseDir, and must stay inside it.
func FilePart(field, path, baseDir string) (BodyPart, error) {
	filePath := path
	if !filepath.IsAbs(filePath) && baseDir != "" {
		filePath = filepath.Join(baseDir, filePath)
	}

	if err := validatePathWithinBase(filePath, baseDir); err != nil {
		return BodyPart{}, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return BodyPart{}, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return BodyPart{}, err
	}

	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return BodyPart{
		Reader: file,
		Length: info.Size(),
		Headers: map[string]string{
			"Content-Disposition": formDisposition(field, filepath.Base(filePath)),
			"Content-Type":        contentType,
		},
	}, nil
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

// writeParts streams parts into mw in order and closes it.
func writeParts(mw *multipart.Writer, parts []BodyPart) error {
	defer closeParts(parts)

	for i, part := range parts {
		w, err := mw.CreatePart(partHeader(part))
		if err != nil {
			return err
		}

		if part.Reader == nil {
			if part.Length > 0 {
				return &PartLengthError{Index: i, Declared: part.Length}
			}
			continue
		}

		if part.Length < 0 {
			if _, err := io.Copy(w, part.Reader); err != nil {
				return err
			}
			continue
		}

		n, err := io.CopyN(w, part.Reader, part.Length)
		if errors.Is(err, io.EOF) {
			return &PartLengthError{Index: i, Declared: part.Length, Actual: n}
		}
		if err != nil {
			return err
		}

		var probe [1]byte
		if extra, _ := part.Reader.Read(probe[:]); extra > 0 {
			return &PartLengthError{Index: i, Declared: part.Length, Actual: part.Length + int64(extra)}
		}
	}

	return mw.Close()
}

func partHeader(part BodyPart) textproto.MIMEHeader {
	header := make(textproto.MIMEHeader, len(part.Headers))
	for k, v := range part.Headers {
		header.Set(k, v)
	}
	return header
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// multipartLength returns the encoded size of parts framed with boundary,
// or -1 when any part has an unknown length.
func multipartLength(boundary string, parts []BodyPart) int64 {
	cw := &countingWriter{}
	mw := multipart.NewWriter(cw)
	if err := mw.SetBoundary(boundary); err != nil {
		return -1
	}

	for _, part := range parts {
		if part.Length < 0 {
			return -1
		}
		if _, err := mw.CreatePart(partHeader(part)); err != nil {
			return -1
		}
		cw.n += part.Length
	}
	if err := mw.Close(); err != nil {
		return -1
	}

	return cw.n
}

func closeParts(parts []BodyPart) {
	for _, part := range parts {
		if c, ok := part.Reader.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
