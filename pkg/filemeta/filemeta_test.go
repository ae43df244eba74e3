package filemeta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatFileSize(t *testing.T) {
	cases := map[int64]string{
		0:                         "0 Bytes",
		500:                       "500 Bytes",
		1024:                      "1 KB",
		1536:                      "1.5 KB",
		1024*1024 - 1:             "1024 KB",
		5 * 1024 * 1024:           "5 MB",
		1288490189:                "1.2 GB",
		3 * 1024 * 1024 * 1024 * 1024: "3072 GB",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatFileSize(in), "bytes=%d", in)
	}
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryKnowledge, ParseCategory("knowledge"))
	assert.Equal(t, CategoryFormulas, ParseCategory(" Formulas "))
	assert.Equal(t, CategoryOther, ParseCategory(""))
	assert.Equal(t, CategoryOther, ParseCategory("../etc"))
}

func TestAllowedMIME(t *testing.T) {
	assert.True(t, AllowedMIME("application/pdf"))
	assert.True(t, AllowedMIME("text/plain; charset=utf-8"))
	assert.True(t, AllowedMIME("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.False(t, AllowedMIME("application/zip"))
	assert.False(t, AllowedMIME("application/octet-stream"))
	assert.False(t, AllowedMIME(""))
}

func TestTypeLabel(t *testing.T) {
	assert.Equal(t, "PDF Document", TypeLabel("application/pdf"))
	assert.Equal(t, "Excel Spreadsheet", TypeLabel("application/vnd.ms-excel"))
	assert.Equal(t, "Excel Spreadsheet", TypeLabel("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.Equal(t, "Word Document", TypeLabel("application/msword"))
	assert.Equal(t, "Word Document", TypeLabel("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.Equal(t, "Text File", TypeLabel("text/csv"))
	assert.Equal(t, "Image", TypeLabel("image/png"))
	assert.Equal(t, "Unknown", TypeLabel("application/zip"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "MSDS_sheet__v2_", Sanitize("MSDS sheet (v2)"))
	assert.Equal(t, "a-b_c", Sanitize("a-b_c"))
	assert.Equal(t, "_", Sanitize("é"))
}

func TestGenerateName(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	assert.Equal(t, "Safety_Data-1700000000123-42.PDF", GenerateName("Safety Data.PDF", now, 42))
	assert.Equal(t, "passwd-1700000000123-7", GenerateName("../../etc/passwd", now, 7))
	assert.Equal(t, "report-1700000000123-1.csv", GenerateName(`C:\tmp\report.csv`, now, 1))
	assert.Equal(t, "_env-1700000000123-3", GenerateName(".env", now, 3))
	assert.Equal(t, "archive_tar-1700000000123-5.gz", GenerateName("archive.tar.gz", now, 5))
	assert.Equal(t, "file-1700000000123-9", GenerateName("", now, 9))
	assert.NotEqual(t, NewName("a.txt"), NewName("a.txt"))
}

func TestParseURL(t *testing.T) {
	cat, name, ok := ParseURL("/uploads/formulas/a-1-2.pdf")
	assert.True(t, ok)
	assert.Equal(t, "formulas", cat)
	assert.Equal(t, "a-1-2.pdf", name)

	cat, name, ok = ParseURL("https://files.example.com/uploads/knowledge/b.txt?dl=1")
	assert.True(t, ok)
	assert.Equal(t, "knowledge", cat)
	assert.Equal(t, "b.txt", name)

	_, _, ok = ParseURL("/uploads/secret/x.txt")
	assert.False(t, ok)
	_, _, ok = ParseURL("https://example.com/doc.pdf")
	assert.False(t, ok)
	assert.Equal(t, "/uploads/other/x.txt", URLFor("other", "x.txt"))
}
