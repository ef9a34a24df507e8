package http

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ok":true}`), 0644))

	part, err := FilePart("upload", "report.json", dir)
	require.NoError(t, err)
	defer closeParts([]BodyPart{part})

	assert.Equal(t, int64(11), part.Length)
	assert.Equal(t, `form-data; name="upload"; filename="report.json"`, part.Headers["Content-Disposition"])
	assert.Equal(t, "application/json", part.Headers["Content-Type"])
}

func TestFilePart_PathTraversal(t *testing.T) {
	dir := t.TempDir()

	_, err := FilePart("upload", "../../etc/passwd", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestFilePart_Missing(t *testing.T) {
	_, err := FilePart("upload", "nope.bin", t.TempDir())
	assert.Error(t, err)
}

func TestFieldPart_EscapesQuotes(t *testing.T) {
	part := FieldPart(`we"ird`, "v")
	assert.Equal(t, `form-data; name="we\"ird"`, part.Headers["Content-Disposition"])
}

func TestMultipartLength_MatchesEncodedSize(t *testing.T) {
	parts := []BodyPart{
		FieldPart("a", "1"),
		BytesPart([]byte("hello world"), map[string]string{"Content-Disposition": `form-data; name="b"`}),
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	expected := multipartLength(mw.Boundary(), parts)

	require.NoError(t, writeParts(mw, []BodyPart{
		FieldPart("a", "1"),
		BytesPart([]byte("hello world"), map[string]string{"Content-Disposition": `form-data; name="b"`}),
	}))

	assert.Equal(t, int64(buf.Len()), expected)
}

func TestMultipartLength_Unknown(t *testing.T) {
	parts := []BodyPart{{Reader: bytes.NewReader(nil), Length: -1}}
	assert.Equal(t, int64(-1), multipartLength("boundary", parts))
}

func TestWriteParts_TooLong(t *testing.T) {
	mw := multipart.NewWriter(io.Discard)
	err := writeParts(mw, []BodyPart{{
		Reader: bytes.NewReader([]byte("abcdef")),
		Length: 3,
	}})

	var lengthErr *PartLengthError
	require.ErrorAs(t, err, &lengthErr)
	assert.Equal(t, 0, lengthErr.Index)
	assert.Contains(t, lengthErr.Error(), "more than the declared 3 bytes")
}

func TestRequest_Clone(t *testing.T) {
	req := NewRequest("POST", "http://example.com").SetHeader("X", "1").SetBodyString("body")
	c := req.Clone()
	c.Headers["X"] = "2"
	c.Body[0] = 'B'

	assert.Equal(t, "1", req.Headers["X"])
	assert.Equal(t, "body", string(req.Body))
	assert.Equal(t, "1", req.Header("x"))
}
