package catalog

import (
	"strings"
	"time"
)

// extFiletype maps lower-cased extensions to facet categories.
var extFiletype = map[string]string{
	// Documents
	".pdf": "PDF",
	".doc": "Document", ".docx": "Document", ".odt": "Document", ".rtf": "Document",
	".txt": "Document", ".md": "Document",
	// Spreadsheets
	".xls": "Spreadsheet", ".xlsx": "Spreadsheet", ".csv": "Spreadsheet", ".ods": "Spreadsheet",
	// Presentations
	".ppt": "Presentation", ".pptx": "Presentation", ".odp": "Presentation",
	// Images
	".png": "Image", ".jpg": "Image", ".jpeg": "Image", ".gif": "Image", ".bmp": "Image", ".tiff": "Image",
	// Code
	".py": "Code", ".js": "Code", ".ts": "Code", ".java": "Code", ".cs": "Code", ".cpp": "Code", ".c": "Code",
	".h": "Code", ".hpp": "Code", ".go": "Code", ".rs": "Code", ".rb": "Code", ".php": "Code", ".sh": "Code",
	".ps1": "Code", ".json": "Code", ".yml": "Code", ".yaml": "Code", ".xml": "Code",
	// Archives
	".zip": "Archive", ".7z": "Archive", ".rar": "Archive", ".tar": "Archive", ".gz": "Archive",
}

// SizeBuckets and DateBuckets list the bucket labels in display order.
var (
	SizeBuckets = []string{"<1MB", "1–100MB", ">100MB"}
	DateBuckets = []string{"Today", "This Week", "This Month", "This Year", "Older"}
)

// ClassifyFiletype returns the facet category for an extension, "Other" when
// the extension is unknown.
func ClassifyFiletype(ext string) string {
	if ft, ok := extFiletype[strings.ToLower(ext)]; ok {
		return ft
	}
	return "Other"
}

// SizeBucket buckets a byte count into <1MB, 1–100MB, or >100MB.
func SizeBucket(sizeBytes int64) string {
	const mb = 1 << 20
	switch {
	case sizeBytes < 1*mb:
		return "<1MB"
	case sizeBytes <= 100*mb:
		return "1–100MB"
	default:
		return ">100MB"
	}
}

// DateBucket buckets a modification time relative to wall-clock now. The
// bucket is computed at write time and not re-evaluated at query time: a
// document written "Today" keeps that label until it is re-scanned.
func DateBucket(mtimeNS int64) string {
	return dateBucketAt(mtimeNS, time.Now())
}

func dateBucketAt(mtimeNS int64, now time.Time) string {
	mt := time.Unix(0, mtimeNS)
	ny, nm, nd := now.Date()
	my, mm, md := mt.Date()
	switch {
	case ny == my && nm == mm && nd == md:
		return "Today"
	case now.Sub(mt) <= 7*24*time.Hour:
		return "This Week"
	case now.Sub(mt) <= 31*24*time.Hour:
		return "This Month"
	case ny == my:
		return "This Year"
	default:
		return "Older"
	}
}

// NormalizeName lower-cases a display name for case-insensitive matching.
func NormalizeName(name string) string {
	return strings.ToLower(name)
}
