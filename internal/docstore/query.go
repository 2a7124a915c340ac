package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

type QueryKind int

const (
	KindDocument QueryKind = iota
	KindCollection
	KindGroup
)

// Predicate is a field equality test. Predicates of a query are ANDed.
type Predicate struct {
	Field string
	Value any
}

// Eq builds a field == value predicate
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Value: value}
}

// Query describes what a subscription watches.
type Query struct {
	Kind       QueryKind
	Path       Path
	Collection string
	Predicates []Predicate
}

// DocumentQuery watches a single document
func DocumentQuery(path Path) Query {
	return Query{Kind: KindDocument, Path: path}
}

// CollectionQuery watches every document directly inside a collection
func CollectionQuery(path Path) Query {
	return Query{Kind: KindCollection, Path: path}
}

// GroupQuery watches every collection with the given id, anywhere in the tree
func GroupQuery(collectionID string, predicates ...Predicate) Query {
	return Query{Kind: KindGroup, Collection: collectionID, Predicates: predicates}
}

// Target is the path used for rule checks and logging
func (q Query) Target() Path {
	if q.Kind == KindGroup {
		return Path(q.Collection)
	}
	return q.Path
}

func (q Query) String() string {
	switch q.Kind {
	case KindDocument:
		return "doc(" + string(q.Path) + ")"
	case KindCollection:
		return "collection(" + string(q.Path) + ")"
	default:
		parts := make([]string, 0, len(q.Predicates))
		for _, p := range q.Predicates {
			parts = append(parts, fmt.Sprintf("%s==%v", p.Field, p.Value))
		}
		return "group(" + q.Collection + ")[" + strings.Join(parts, ",") + "]"
	}
}

// Matches reports whether a document belongs to the query result
func (q Query) Matches(doc Document) bool {
	switch q.Kind {
	case KindDocument:
		return doc.Path == q.Path
	case KindCollection:
		return doc.Path.Parent() == q.Path
	case KindGroup:
		if doc.Path.CollectionID() != q.Collection {
			return false
		}
		for _, p := range q.Predicates {
			if !fieldEquals(doc.Data, p) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MayContain reports whether a write to path can change the query result
func (q Query) MayContain(path Path) bool {
	switch q.Kind {
	case KindDocument:
		return path == q.Path
	case KindCollection:
		return path.Parent() == q.Path
	default:
		return path.CollectionID() == q.Collection
	}
}

func fieldEquals(data Fields, p Predicate) bool {
	raw, ok := data[p.Field]
	if !ok {
		return false
	}

	var got any
	if err := json.Unmarshal(raw, &got); err != nil {
		return false
	}

	want, err := normalize(p.Value)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(got, want)
}

// normalize gives a Go value the shape json.Unmarshal would produce
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
