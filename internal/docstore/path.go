package docstore

import "strings"

// Path addresses a document or a collection as slash-separated segments.
// Documents have an even number of segments, collections an odd number.
type Path string

// NewPath joins segments, ignoring empty ones
func NewPath(segments ...string) Path {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return Path(strings.Join(parts, "/"))
}

// Segments splits the path
func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), "/")
}

// Child appends segments to the path
func (p Path) Child(segments ...string) Path {
	return NewPath(append([]string{string(p)}, segments...)...)
}

// ID is the last segment
func (p Path) ID() string {
	s := string(p)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Parent drops the last segment
func (p Path) Parent() Path {
	s := string(p)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return Path(s[:i])
	}
	return ""
}

// CollectionID is the id of the collection holding a document
func (p Path) CollectionID() string {
	return p.Parent().ID()
}

// IsDocument reports whether the path names a document
func (p Path) IsDocument() bool {
	n := len(p.Segments())
	return n > 0 && n%2 == 0
}

func (p Path) String() string {
	return string(p)
}
