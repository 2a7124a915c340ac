// Package memory provides an in-process implementation of docstore.Store
// used by tests and by the dev mode of the dashboard.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/fifo"
)

var _ docstore.Store = (*Store)(nil)

// DenyFunc simulates store-side rules. It returns true to reject op on path.
// Group queries are checked with the collection id as path.
type DenyFunc func(op docstore.Op, path docstore.Path) bool

type Option func(*Store)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRules installs a DenyFunc
func WithRules(deny DenyFunc) Option {
	return func(s *Store) { s.deny = deny }
}

type Store struct {
	mu        sync.Mutex
	docs      map[docstore.Path]docstore.Document
	listeners map[uint64]*listener
	nextID    uint64
	seq       uint64
	now       func() time.Time
	deny      DenyFunc
}

type event struct {
	snap docstore.Snapshot
	err  error
}

type listener struct {
	query   docstore.Query
	last    map[docstore.Path]docstore.Document
	queue   *fifo.Queue[event]
	denied  bool
	onNext  func(docstore.Snapshot)
	onError func(error)
}

func New(opts ...Option) *Store {
	s := &Store{
		docs:      make(map[docstore.Path]docstore.Document),
		listeners: make(map[uint64]*listener),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRules replaces the DenyFunc at runtime
func (s *Store) SetRules(deny DenyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deny = deny
}

func (s *Store) denied(op docstore.Op, path docstore.Path) bool {
	return s.deny != nil && s.deny(op, path)
}

// Get returns the document at path, nil when absent
func (s *Store) Get(ctx context.Context, path docstore.Path) (*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.denied(docstore.OpRead, path) {
		return nil, &docstore.PermissionError{Op: docstore.OpRead, Path: path}
	}

	doc, ok := s.docs[path]
	if !ok {
		return nil, nil
	}
	doc.Data = doc.Data.Clone()
	return &doc, nil
}

// Set writes the document, merging into existing fields when merge is true
func (s *Store) Set(ctx context.Context, path docstore.Path, data docstore.Fields, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.denied(docstore.OpWrite, path) {
		return &docstore.PermissionError{Op: docstore.OpWrite, Path: path}
	}

	now := s.now()
	doc, exists := s.docs[path]
	if !exists {
		doc = docstore.Document{Path: path, CreateTime: now}
	}
	if merge && exists {
		doc.Data = doc.Data.Merge(data)
	} else {
		doc.Data = data.Clone()
	}
	doc.UpdateTime = now
	s.docs[path] = doc

	s.publishLocked(path)
	return nil
}

// Update merges fields into an existing document
func (s *Store) Update(ctx context.Context, path docstore.Path, data docstore.Fields) error {
	return s.UpdateIf(ctx, path, nil, data)
}

// UpdateIf merges fields into an existing document when check accepts it
func (s *Store) UpdateIf(ctx context.Context, path docstore.Path, check func(*docstore.Document) error, data docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.denied(docstore.OpWrite, path) {
		return &docstore.PermissionError{Op: docstore.OpWrite, Path: path}
	}

	doc, ok := s.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	if check != nil {
		current := doc
		current.Data = doc.Data.Clone()
		if err := check(&current); err != nil {
			return err
		}
	}
	doc.Data = doc.Data.Merge(data)
	doc.UpdateTime = s.now()
	s.docs[path] = doc

	s.publishLocked(path)
	return nil
}

// Delete removes the document. Deleting an absent document is not an error.
func (s *Store) Delete(ctx context.Context, path docstore.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.denied(docstore.OpWrite, path) {
		return &docstore.PermissionError{Op: docstore.OpWrite, Path: path}
	}

	if _, ok := s.docs[path]; !ok {
		return nil
	}
	delete(s.docs, path)

	s.publishLocked(path)
	return nil
}

// Subscribe registers a realtime listener
func (s *Store) Subscribe(q docstore.Query, onNext func(docstore.Snapshot), onError func(error)) (func(), error) {
	l := &listener{
		query:   q,
		queue:   fifo.New[event](),
		onNext:  onNext,
		onError: onError,
	}
	done := make(chan struct{})

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	if s.denied(docstore.OpRead, q.Target()) {
		l.denied = true
		l.queue.Push(event{err: &docstore.PermissionError{Op: docstore.OpRead, Path: q.Target()}})
	} else {
		docs := s.queryLocked(q)
		l.queue.Push(event{snap: s.snapshotLocked(q, nil, docs)})
		l.last = docstore.Index(docs)
	}
	s.mu.Unlock()

	go l.run(done)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
			l.queue.Close()
			close(done)
		})
	}, nil
}

func (l *listener) run(done <-chan struct{}) {
	for {
		ev, ok := l.queue.Next(done)
		if !ok {
			return
		}
		if ev.err != nil {
			if l.onError != nil {
				l.onError(ev.err)
			}
			continue
		}
		if l.onNext != nil {
			l.onNext(ev.snap)
		}
	}
}

// publishLocked pushes a snapshot to every listener whose result changed
func (s *Store) publishLocked(path docstore.Path) {
	for _, l := range s.listeners {
		if l.denied || !l.query.MayContain(path) {
			continue
		}

		docs := s.queryLocked(l.query)
		snap := s.snapshotLocked(l.query, l.last, docs)
		if len(snap.Changes) == 0 {
			continue
		}
		l.last = docstore.Index(docs)
		l.queue.Push(event{snap: snap})
	}
}

func (s *Store) queryLocked(q docstore.Query) []docstore.Document {
	var out []docstore.Document
	if q.Kind == docstore.KindDocument {
		if doc, ok := s.docs[q.Path]; ok {
			doc.Data = doc.Data.Clone()
			out = append(out, doc)
		}
		return out
	}

	for _, doc := range s.docs {
		if q.Matches(doc) {
			doc.Data = doc.Data.Clone()
			out = append(out, doc)
		}
	}
	docstore.SortDocuments(out)
	return out
}

func (s *Store) snapshotLocked(q docstore.Query, prev map[docstore.Path]docstore.Document, docs []docstore.Document) docstore.Snapshot {
	s.seq++
	return docstore.Snapshot{
		Seq:     s.seq,
		At:      s.now(),
		Docs:    docs,
		Changes: docstore.Diff(prev, docs),
		Exists:  q.Kind != docstore.KindDocument || len(docs) == 1,
	}
}

// Len returns the number of stored documents
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
