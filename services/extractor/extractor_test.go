package extractor

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, "pdf", ExtensionOf("CV.PDF"))
	assert.Equal(t, "docx", ExtensionOf("/tmp/resume.final.docx"))
	assert.Equal(t, "", ExtensionOf("resume"))
}

func TestExtract_Text(t *testing.T) {
	res := Extract("txt", []byte("\ufeffAda Lovelace\r\n\r\n\r\n\r\nAnalyst   \r\n"))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Ada Lovelace\n\nAnalyst", res.Text)
	assert.Empty(t, res.Error)
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	res := Extract("png", []byte("x"))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, `"png"`)

	_, err := Text(".RTF", []byte("x"))
	var unsupported *UnsupportedExtensionError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "rtf", unsupported.Extension)

	_, err = Text("", []byte("x"))
	require.ErrorAs(t, err, &unsupported)
}

func TestExtract_EmptyText(t *testing.T) {
	_, err := Text("txt", []byte("  \n\t "))
	assert.ErrorIs(t, err, ErrNoText)

	res := Extract("txt", nil)
	assert.False(t, res.Success)
	assert.Equal(t, ErrNoText.Error(), res.Error)
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract_Docx(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Ada</w:t></w:r><w:r><w:t xml:space="preserve"> Lovelace</w:t></w:r></w:p>
    <w:p><w:r><w:t>Skills</w:t><w:tab/><w:t>Mathematics</w:t></w:r></w:p>
    <w:p><w:r><w:t>Line one</w:t><w:br/><w:t>Line two</w:t></w:r></w:p>
  </w:body>
</w:document>`
	text, err := Text("docx", buildDocx(t, body))
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace\nSkills\tMathematics\nLine one\nLine two", text)
}

func TestExtract_DocxMissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Text("docx", buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")

	_, err = Text("docx", []byte("not a zip"))
	assert.Error(t, err)
}

func TestExtract_PDFGarbage(t *testing.T) {
	res := Extract("pdf", []byte("definitely not a pdf"))
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}
