package docstore

import (
	"sort"
	"time"
)

type Document struct {
	Path       Path
	Data       Fields
	CreateTime time.Time
	UpdateTime time.Time
}

// ID is the document id
func (d Document) ID() string {
	return d.Path.ID()
}

type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

type Change struct {
	Kind ChangeKind
	Doc  Document
}

// Snapshot is the full matching set of a query at one point in time plus the
// changes since the previous snapshot of the same subscription.
type Snapshot struct {
	Seq     uint64
	At      time.Time
	Docs    []Document
	Changes []Change
	// Exists is meaningful for document queries: false when the document is absent
	Exists bool
}

// Doc returns the single document of a document-query snapshot
func (s Snapshot) Doc() (Document, bool) {
	if !s.Exists || len(s.Docs) == 0 {
		return Document{}, false
	}
	return s.Docs[0], true
}

// SortDocuments orders documents by path
func SortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
}

// Diff computes the changes turning prev into next. next must be sorted by path.
func Diff(prev map[Path]Document, next []Document) []Change {
	var changes []Change
	seen := make(map[Path]struct{}, len(next))

	for _, doc := range next {
		seen[doc.Path] = struct{}{}
		old, ok := prev[doc.Path]
		switch {
		case !ok:
			changes = append(changes, Change{Kind: ChangeAdded, Doc: doc})
		case !old.UpdateTime.Equal(doc.UpdateTime) || !old.Data.Equal(doc.Data):
			changes = append(changes, Change{Kind: ChangeModified, Doc: doc})
		}
	}

	var removed []Document
	for path, doc := range prev {
		if _, ok := seen[path]; !ok {
			removed = append(removed, doc)
		}
	}
	SortDocuments(removed)
	for _, doc := range removed {
		changes = append(changes, Change{Kind: ChangeRemoved, Doc: doc})
	}

	return changes
}

// Index maps documents by path
func Index(docs []Document) map[Path]Document {
	out := make(map[Path]Document, len(docs))
	for _, d := range docs {
		out[d.Path] = d
	}
	return out
}
