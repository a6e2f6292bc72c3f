// Package metadata maintains the process-wide author -> sources cache
// backed by Postgres, refreshed via LISTEN/NOTIFY. Reads are
// snapshot-consistent: the background listener atomically swaps in a
// new map and never touches a turn's in-flight state.
package metadata

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"philoagent/internal/config"
	"philoagent/internal/observability"
)

// Snapshot is an immutable author -> sorted, deduplicated sources map.
type Snapshot struct {
	byAuthor map[string][]string
	authors  []string
}

func (s *Snapshot) Authors() []string {
	return s.authors
}

// SourcesFor returns the sorted, deduplicated source titles for an
// author, or nil if the author is unknown.
func (s *Snapshot) SourcesFor(author string) []string {
	return s.byAuthor[author]
}

// AllSources returns every distinct source title across all authors.
func (s *Snapshot) AllSources() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, sources := range s.byAuthor {
		for _, src := range sources {
			if _, ok := seen[src]; !ok {
				seen[src] = struct{}{}
				out = append(out, src)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Store is a read-only (from the core's perspective) cache of
// (author, source_title) pairs, refreshed on a Postgres NOTIFY channel.
type Store struct {
	pool    *pgxpool.Pool
	channel string
	current atomic.Pointer[Snapshot]
}

// Open connects to Postgres, loads an initial snapshot, and starts the
// background LISTEN/NOTIFY refresher. The refresher runs until ctx is
// cancelled; it never touches turn state.
func Open(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	pool, err := newPool(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool, channel: cfg.NotifyChannel}
	if err := s.refresh(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initial metadata snapshot: %w", err)
	}
	if cfg.RefreshOnListen {
		go s.listen(ctx)
	}
	return s, nil
}

func newPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pcfg.MaxConns = 8
	pcfg.MinConns = 0
	pcfg.MaxConnLifetime = time.Hour
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Current returns the latest consistent snapshot.
func (s *Store) Current() *Snapshot {
	snap := s.current.Load()
	if snap == nil {
		return &Snapshot{byAuthor: map[string][]string{}}
	}
	return snap
}

func (s *Store) refresh(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT author, source_title FROM sources`)
	if err != nil {
		return err
	}
	defer rows.Close()

	byAuthor := make(map[string][]string)
	for rows.Next() {
		var author, title string
		if err := rows.Scan(&author, &title); err != nil {
			return err
		}
		byAuthor[author] = append(byAuthor[author], title)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	authors := make([]string, 0, len(byAuthor))
	for author, titles := range byAuthor {
		sort.Strings(titles)
		byAuthor[author] = dedupSorted(titles)
		authors = append(authors, author)
	}
	sort.Strings(authors)

	s.current.Store(&Snapshot{byAuthor: byAuthor, authors: authors})
	return nil
}

func dedupSorted(sorted []string) []string {
	out := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || sorted[i-1] != v {
			out = append(out, v)
		}
	}
	return out
}

func (s *Store) listen(ctx context.Context) {
	log := observability.LoggerWithTrace(ctx)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.listenOnce(ctx); err != nil {
			log.Warn().Err(err).Msg("metadata listener reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("LISTEN %s", s.channel)); err != nil {
		return err
	}

	log := observability.LoggerWithTrace(ctx)
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		log.Debug().Str("channel", notification.Channel).Msg("metadata refresh notification")
		if err := s.refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("metadata refresh failed")
		}
	}
}

func (s *Store) Close() {
	s.pool.Close()
}
