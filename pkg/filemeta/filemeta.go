// Package filemeta holds the pure rules for uploaded files: category buckets,
// the MIME allow-list, generated names and display strings.
package filemeta

import (
	"fmt"
	"math"
	"math/rand"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	CategoryFormulas  = "formulas"
	CategoryQuotes    = "quotes"
	CategoryKnowledge = "knowledge"
	CategoryOther     = "other"
)

// Categories is also the bucket search order used when a file is not where
// its record says.
var Categories = []string{CategoryFormulas, CategoryQuotes, CategoryKnowledge, CategoryOther}

// URLPrefix is the public path files are served under.
const URLPrefix = "/uploads/"

func IsCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

// ParseCategory returns s when it names a bucket and "other" otherwise.
func ParseCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if IsCategory(s) {
		return s
	}
	return CategoryOther
}

var allowedMIME = []string{
	"application/pdf",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
	"text/csv",
	"image/jpeg",
	"image/png",
	"image/gif",
}

// AllowedMIMETypes returns a copy of the upload allow-list.
func AllowedMIMETypes() []string {
	out := make([]string, len(allowedMIME))
	copy(out, allowedMIME)
	return out
}

// NormalizeMIME lower-cases a media type and drops its parameters.
func NormalizeMIME(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func AllowedMIME(mime string) bool {
	mime = NormalizeMIME(mime)
	for _, m := range allowedMIME {
		if m == mime {
			return true
		}
	}
	return false
}

// TypeLabel is the coarse display label for a MIME type.
func TypeLabel(mime string) string {
	mime = NormalizeMIME(mime)
	switch {
	case mime == "application/pdf":
		return "PDF Document"
	case strings.Contains(mime, "excel") || strings.Contains(mime, "spreadsheet"):
		return "Excel Spreadsheet"
	case strings.Contains(mime, "word"):
		return "Word Document"
	case mime == "text/plain" || mime == "text/csv":
		return "Text File"
	case strings.HasPrefix(mime, "image/"):
		return "Image"
	}
	return "Unknown"
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with the largest unit not exceeding it
// and at most two decimals: 0 -> "0 Bytes", 1536 -> "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := 0
	scaled := float64(bytes)
	for i < len(sizeUnits)-1 && scaled >= 1024 {
		scaled /= 1024
		i++
	}
	rounded := math.Round(scaled*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[i]
}

// Sanitize replaces every character outside [A-Za-z0-9_-] with '_'.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// extension is the suffix from the last dot of the base name. A name whose
// only dot is the leading one has none.
func extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return ""
	}
	return name[i:]
}

// GenerateName builds "<sanitized base>-<unix millis>-<random><ext>". The
// extension is kept as given.
func GenerateName(original string, now time.Time, random uint32) string {
	original = filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if original == "." || original == "/" {
		original = ""
	}
	ext := extension(original)
	base := strings.TrimSuffix(original, ext)
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s-%d-%d%s", Sanitize(base), now.UnixMilli(), random%1_000_000_000, ext)
}

// NewName is GenerateName with the current time and a random suffix.
func NewName(original string) string {
	return GenerateName(original, time.Now(), rand.Uint32())
}

// URLFor is the public URL of a stored file.
func URLFor(category, name string) string {
	return URLPrefix + category + "/" + name
}

// ParseURL extracts the bucket and file name from a stored file URL. Absolute
// URLs are accepted as long as their path sits under /uploads/.
func ParseURL(fileURL string) (category, name string, ok bool) {
	idx := strings.Index(fileURL, URLPrefix)
	if idx < 0 {
		return "", "", false
	}
	rest := fileURL[idx+len(URLPrefix):]
	if q := strings.IndexAny(rest, "?#"); q >= 0 {
		rest = rest[:q]
	}
	dir, file := path.Split(rest)
	dir = strings.Trim(dir, "/")
	if file == "" || !IsCategory(dir) || !ValidName(file) {
		return "", "", false
	}
	return dir, file, true
}

// ValidName reports whether name is a single path element safe to join under
// a bucket directory.
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, "/\\") && !strings.ContainsRune(name, 0)
}
