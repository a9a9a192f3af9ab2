// Package types provides shared types used across the drivedupe codebase.
package types

import (
	"cmp"
	"slices"
)

// Group kinds emitted by the detectors.
const (
	GroupExact          = "exact"
	GroupSupersetSubset = "superset_subset"
	GroupNear           = "near"
)

// Detection method tags for near groups.
const (
	DetectionContentBased = "content-based"
	DetectionFilenameMeta = "filename+metadata"
)

// File holds the metadata of a single item in the backing store, plus the
// fields the pipeline fills in during processing (ContentHash, ExtractedText).
//
// LastModified is an ISO-8601 UTC timestamp as reported by the provider.
// Comparing these strings lexicographically orders files by modification time.
type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type"`
	LastModified string `json:"last_modified"`
	WebURL       string `json:"web_url,omitempty"`
	Source       string `json:"source,omitempty"`

	// Populated once during per-file processing; immutable afterwards.
	ContentHash   string `json:"content_hash,omitempty"`
	ExtractedText string `json:"-"`
}

// HasText reports whether any text was extracted from the file.
func (f *File) HasText() bool { return f.ExtractedText != "" }

// DuplicateGroup is one group of redundant files. The primary is the file
// that would be retained if all duplicates were deleted.
type DuplicateGroup struct {
	ID              string  `json:"group_id"`
	Kind            string  `json:"group_type"`
	Primary         *File   `json:"primary_file"`
	Duplicates      []*File `json:"duplicate_files"`
	Similarity      float64 `json:"similarity_score"`
	SavingsBytes    int64   `json:"storage_savings_bytes"`
	Containment     float64 `json:"containment_score,omitempty"`
	DetectionMethod string  `json:"detection_method,omitempty"`
}

// FileError records a per-file processing failure that did not abort the scan.
type FileError struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

// DeleteError records a per-file deletion failure within a batch.
type DeleteError struct {
	FileID string `json:"file_id"`
	Error  string `json:"error"`
}

// ScanRequest is the input to the pipeline orchestrator.
type ScanRequest struct {
	Token             string   `json:"token"`
	FolderIDs         []string `json:"folder_ids"`
	IncludeSubfolders bool     `json:"include_subfolders"`
}

// ScanReport is the final result of one scan.
type ScanReport struct {
	Status              string            `json:"status"`
	TotalFiles          int               `json:"total_files"`
	FilesProcessed      int               `json:"files_processed"`
	FilesFailed         int               `json:"files_failed"`
	Exact               []*DuplicateGroup `json:"exact_duplicates"`
	SupersetSubset      []*DuplicateGroup `json:"superset_subset_duplicates"`
	Near                []*DuplicateGroup `json:"near_duplicates"`
	TotalGroups         int               `json:"total_duplicate_groups"`
	TotalDuplicateFiles int               `json:"total_duplicate_files"`
	TotalSavingsBytes   int64             `json:"total_storage_savings_bytes"`
	Errors              []FileError       `json:"errors"`
	Message             string            `json:"message,omitempty"`
}

// ValidationError rejects a malformed request before any provider work.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Sorted is an ordered collection that maintains sort order by a key function.
// T is the element type, K is the comparable key type.
// Once constructed, items are guaranteed to be sorted by key.
type Sorted[T any, K cmp.Ordered] struct {
	items   []T
	keyFunc func(T) K
}

// NewSorted creates a sorted collection from items using keyFunc for ordering.
// Items are copied and sorted at construction time.
func NewSorted[T any, K cmp.Ordered](items []T, keyFunc func(T) K) Sorted[T, K] {
	sorted := make([]T, len(items))
	copy(sorted, items)
	slices.SortFunc(sorted, func(a, b T) int {
		return cmp.Compare(keyFunc(a), keyFunc(b))
	})
	return Sorted[T, K]{items: sorted, keyFunc: keyFunc}
}

// Items returns the sorted items.
func (s Sorted[T, K]) Items() []T { return s.items }

// First returns the first item (smallest key), or zero value if empty.
func (s Sorted[T, K]) First() T {
	if len(s.items) == 0 {
		var zero T
		return zero
	}
	return s.items[0]
}

// Len returns the number of items.
func (s Sorted[T, K]) Len() int { return len(s.items) }

// FileSet contains files sorted ascending by (LastModified, Name).
// The first file is the oldest and becomes the primary of an exact group.
type FileSet = Sorted[*File, string]

// NewFileSet creates a FileSet ordered by (LastModified, Name).
// The NUL separator keeps the composite key unambiguous.
func NewFileSet(files []*File) FileSet {
	return NewSorted(files, func(f *File) string { return f.LastModified + "\x00" + f.Name })
}

// SavingsBytes returns the total size of all duplicates across groups.
func SavingsBytes(groups []*DuplicateGroup) int64 {
	var total int64
	for _, g := range groups {
		total += g.SavingsBytes
	}
	return total
}

// DuplicateCount returns the total number of duplicate files across groups.
func DuplicateCount(groups []*DuplicateGroup) int {
	var total int
	for _, g := range groups {
		total += len(g.Duplicates)
	}
	return total
}
