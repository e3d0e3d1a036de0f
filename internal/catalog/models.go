package catalog

// Location is a watched root or an observed parent directory that owns a set
// of documents. Scan-state fields track resumable initial scans.
type Location struct {
	ID                  int64
	Path                string
	InitialScanComplete bool
	LastScanTS          int64
	LastScanCount       int64
}

// Document is the catalog's record for one file path. A path is never
// physically removed; re-observing it overwrites the row and clears Deleted.
type Document struct {
	ID         int64
	Path       string
	Name       string
	NameNorm   string
	Parent     string
	Ext        string
	SizeBytes  int64
	MtimeNS    int64
	CtimeNS    int64
	Filetype   string
	SizeBucket string
	DateBucket string
	LocationID int64
	Deleted    bool
}

// Mode selects which candidate sets a search draws from.
type Mode string

const (
	// ModeFilename matches the query as a substring of the normalized name
	// or path.
	ModeFilename Mode = "filename"
	// ModeContent matches whitespace-tokenized prefix terms against the
	// full-text index. Documents without a content entry never match.
	ModeContent Mode = "content"
	// ModeAll is the union of the filename and content candidate sets.
	ModeAll Mode = "all"
)

// Filters selects zero or more values per facet dimension. An empty slice
// means no restriction on that dimension.
type Filters struct {
	Filetypes   []string
	SizeBuckets []string
	DateBuckets []string
	LocationIDs []int64
}

// Result is one search row: the document joined with its owning location's
// path string.
type Result struct {
	Document
	LocationPath string
}

// FacetCounts maps a facet dimension ("filetype", "size_bucket",
// "date_bucket", "location") to per-value counts over the same candidate set
// as the returned rows. Location counts are keyed by the location path.
type FacetCounts map[string]map[string]int
