package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangeChannel is the NOTIFY channel fed by the documents table trigger.
const ChangeChannel = "docstore_changes"

const listenRetryDelay = 2 * time.Second

// Postgres stores documents as JSONB rows of the documents table.
type Postgres struct {
	pool *pgxpool.Pool
	feed *changeFeed

	listenOnce sync.Once
	stopListen context.CancelFunc
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, feed: newChangeFeed()}
}

// Close stops the change listener. The pool is owned by the caller.
func (p *Postgres) Close() {
	if p.stopListen != nil {
		p.stopListen()
	}
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validCollection(collection); err != nil {
		return Document{}, err
	}
	row := p.pool.QueryRow(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func (p *Postgres) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	where, args, err := buildWhere(collection, filters)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE `+where+` ORDER BY created_at, id`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (p *Postgres) Add(ctx context.Context, collection string, doc any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	raw, err := marshalData(doc)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = p.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::text::jsonb)`,
		collection, id, raw)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) Set(ctx context.Context, collection, id string, doc any) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	raw, err := marshalData(doc)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::text::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		collection, id, raw)
	return err
}

func (p *Postgres) Update(ctx context.Context, collection, id string, patch Patch) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
			collection, id)
		doc, err := scanDocument(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := patch.apply(doc.Data); err != nil {
			return err
		}
		raw, err := json.Marshal(doc.Data)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE documents SET data = $3::text::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`,
			collection, id, string(raw))
		return err
	})
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Subscribe(ctx context.Context, collection string, filters []Filter, fn func([]Document)) (func(), error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	if _, _, err := buildWhere(collection, filters); err != nil {
		return nil, err
	}
	p.startListener()
	query := func(ctx context.Context) ([]Document, error) {
		return p.Query(ctx, collection, filters...)
	}
	return runLiveQuery(ctx, p.feed, collection, query, fn), nil
}

func (p *Postgres) startListener() {
	p.listenOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		p.stopListen = cancel
		go p.listen(ctx)
	})
}

// listen keeps one LISTEN connection open and republishes notifications
// (payload = collection name) to the in-process feed.
func (p *Postgres) listen(ctx context.Context) {
	for {
		err := p.listenOnceConn(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("docstore change listener stopped; retrying", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

func (p *Postgres) listenOnceConn(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		p.feed.publish(strings.TrimSpace(n.Payload))
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc Document
		raw []byte
	)
	if err := row.Scan(&doc.ID, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return Document{}, fmt.Errorf("docstore: decode %s: %w", doc.ID, err)
	}
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	return doc, nil
}

func marshalData(doc any) (string, error) {
	data, err := toData(doc)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// buildWhere translates filters into JSONB predicates. Values travel as JSON
// text parameters so they compare with the stored JSON types.
func buildWhere(collection string, filters []Filter) (string, []any, error) {
	clauses := []string{"collection = $1"}
	args := []any{collection}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	for _, f := range filters {
		if err := f.validate(); err != nil {
			return "", nil, err
		}
		field := next(f.Field)
		switch f.Op {
		case OpEq:
			raw, err := json.Marshal(f.Value)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, fmt.Sprintf("data -> %s::text = %s::text::jsonb", field, next(string(raw))))
		case OpArrayContains:
			raw, err := json.Marshal([]any{f.Value})
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, fmt.Sprintf("data -> %s::text @> %s::text::jsonb", field, next(string(raw))))
		case OpIn:
			raw, err := json.Marshal(f.Value)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, fmt.Sprintf("%s::text::jsonb @> jsonb_build_array(data -> %s::text)", next(string(raw)), field))
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

var _ Store = (*Postgres)(nil)
