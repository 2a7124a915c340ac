// Package postgres implements docstore.Store on a Postgres documents table.
// Realtime delivery re-runs a listener's query whenever the Feed reports a
// change to a path the query may contain.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/fifo"
)

var _ docstore.Store = (*Store)(nil)

const (
	queryTimeout   = 5 * time.Second
	reconnectDelay = 2 * time.Second
)

type Store struct {
	pool   *pgxpool.Pool
	feed   Feed
	logger *zap.Logger
	psql   sq.StatementBuilderType

	mu        sync.Mutex
	listeners map[uint64]*listener
	nextID    uint64
	seq       atomic.Uint64
}

type listener struct {
	query   docstore.Query
	refresh *fifo.Queue[struct{}]
	last    map[docstore.Path]docstore.Document
	primed  bool
	onNext  func(docstore.Snapshot)
	onError func(error)
}

func New(pool *pgxpool.Pool, feed Feed, logger *zap.Logger) *Store {
	return &Store{
		pool:      pool,
		feed:      feed,
		logger:    logger.Named("pgstore"),
		psql:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		listeners: make(map[uint64]*listener),
	}
}

// Run consumes the change feed until ctx is done, reconnecting on failure.
// After a reconnect every listener refreshes, notifications may have been missed.
func (s *Store) Run(ctx context.Context) error {
	for {
		err := s.feed.Listen(ctx, s.dispatch)
		if ctx.Err() != nil {
			return nil
		}

		s.logger.Warn("Change feed interrupted, reconnecting", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
		s.refreshAll()
	}
}

func (s *Store) dispatch(path docstore.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.listeners {
		if l.query.MayContain(path) {
			l.refresh.Push(struct{}{})
		}
	}
}

func (s *Store) refreshAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.listeners {
		l.refresh.Push(struct{}{})
	}
}

const selectColumns = "path, data, create_time, update_time"

// Get returns the document at path, nil when absent
func (s *Store) Get(ctx context.Context, path docstore.Path) (*docstore.Document, error) {
	query, args, err := s.psql.Select(selectColumns).
		From("documents").
		Where(sq.Eq{"path": string(path)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	doc, err := scanDocument(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s: %w", path, mapError(docstore.OpRead, path, err))
	}

	return doc, nil
}

// Set writes the document, merging into existing fields when merge is true
func (s *Store) Set(ctx context.Context, path docstore.Path, data docstore.Fields, merge bool) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if merge {
			existing, err := s.lockDocument(ctx, tx, path)
			if err != nil {
				return err
			}
			if existing != nil {
				data = existing.Data.Merge(data)
			}
		}
		return s.upsert(ctx, tx, path, data)
	})
	if err != nil {
		return fmt.Errorf("set document %s: %w", path, mapError(docstore.OpWrite, path, err))
	}

	s.publish(ctx, path)
	return nil
}

// Update merges fields into an existing document
func (s *Store) Update(ctx context.Context, path docstore.Path, data docstore.Fields) error {
	return s.UpdateIf(ctx, path, nil, data)
}

// UpdateIf merges fields into an existing document when check accepts the
// row, which stays locked until the merge commits
func (s *Store) UpdateIf(ctx context.Context, path docstore.Path, check func(*docstore.Document) error, data docstore.Fields) error {
	var rejected error
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		existing, err := s.lockDocument(ctx, tx, path)
		if err != nil {
			return err
		}
		if existing == nil {
			return docstore.ErrNotFound
		}
		if check != nil {
			if err := check(existing); err != nil {
				rejected = err
				return err
			}
		}
		return s.upsert(ctx, tx, path, existing.Data.Merge(data))
	})
	if err != nil {
		if rejected != nil || errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update document %s: %w", path, mapError(docstore.OpWrite, path, err))
	}

	s.publish(ctx, path)
	return nil
}

// Delete removes the document
func (s *Store) Delete(ctx context.Context, path docstore.Path) error {
	query, args, err := s.psql.Delete("documents").Where(sq.Eq{"path": string(path)}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete document %s: %w", path, mapError(docstore.OpWrite, path, err))
	}

	s.publish(ctx, path)
	return nil
}

func (s *Store) lockDocument(ctx context.Context, tx pgx.Tx, path docstore.Path) (*docstore.Document, error) {
	query, args, err := s.psql.Select(selectColumns).
		From("documents").
		Where(sq.Eq{"path": string(path)}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, err
	}

	doc, err := scanDocument(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func (s *Store) upsert(ctx context.Context, tx pgx.Tx, path docstore.Path, data docstore.Fields) error {
	query, args, err := s.psql.Insert("documents").
		Columns("path", "parent", "collection_id", "doc_id", "data").
		Values(string(path), string(path.Parent()), path.CollectionID(), path.ID(), string(data.Bytes())).
		Suffix("ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, update_time = now()").
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, query, args...)
	return err
}

func (s *Store) publish(ctx context.Context, path docstore.Path) {
	if err := s.feed.Publish(ctx, path); err != nil {
		s.logger.Warn("Failed to publish change",
			zap.String("path", string(path)),
			zap.Error(err))
	}
}

// query runs q and returns matching documents sorted by path
func (s *Store) query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	b := s.psql.Select(selectColumns).From("documents").OrderBy("path")

	switch q.Kind {
	case docstore.KindDocument:
		b = b.Where(sq.Eq{"path": string(q.Path)})
	case docstore.KindCollection:
		b = b.Where(sq.Eq{"parent": string(q.Path)})
	case docstore.KindGroup:
		b = b.Where(sq.Eq{"collection_id": q.Collection})
		for _, p := range q.Predicates {
			b = b.Where(sq.Expr("data->>? = ?", p.Field, textValue(p.Value)))
		}
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(docstore.OpRead, q.Target(), err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(docstore.OpRead, q.Target(), err)
	}

	return docs, nil
}

// textValue renders a predicate value the way ->> renders JSON scalars
func textValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func scanDocument(row pgx.Row) (*docstore.Document, error) {
	var (
		path string
		data []byte
		doc  docstore.Document
	)
	if err := row.Scan(&path, &data, &doc.CreateTime, &doc.UpdateTime); err != nil {
		return nil, err
	}

	fields, err := docstore.DecodeFields(data)
	if err != nil {
		return nil, err
	}
	doc.Path = docstore.Path(path)
	doc.Data = fields
	return &doc, nil
}

// Subscribe registers a realtime listener. The first snapshot is delivered
// from the listener goroutine once the initial query completes.
func (s *Store) Subscribe(q docstore.Query, onNext func(docstore.Snapshot), onError func(error)) (func(), error) {
	l := &listener{
		query:   q,
		refresh: fifo.New[struct{}](),
		onNext:  onNext,
		onError: onError,
	}
	done := make(chan struct{})

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	l.refresh.Push(struct{}{})
	go s.runListener(l, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
			l.refresh.Close()
			close(done)
		})
	}, nil
}

func (s *Store) runListener(l *listener, done <-chan struct{}) {
	for {
		if _, ok := l.refresh.Next(done); !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		docs, err := s.query(ctx, l.query)
		cancel()
		if err != nil {
			if l.onError != nil {
				l.onError(err)
			}
			continue
		}

		changes := docstore.Diff(l.last, docs)
		if l.primed && len(changes) == 0 {
			continue
		}
		l.primed = true
		l.last = docstore.Index(docs)

		if l.onNext != nil {
			l.onNext(docstore.Snapshot{
				Seq:     s.seq.Add(1),
				At:      time.Now(),
				Docs:    docs,
				Changes: changes,
				Exists:  l.query.Kind != docstore.KindDocument || len(docs) == 1,
			})
		}
	}
}
