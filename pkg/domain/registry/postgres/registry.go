// Postgres-backed artifact store.
//
// Schema (applied by Schema()):
//
//	create table if not exists "artifact" (
//		"name" varchar not null,
//		"version" int not null,
//		"location" varchar not null,
//		"tags" jsonb not null default '{}',
//		"created_at" timestamp with time zone not null default now(),
//		primary key ("name", "version")
//	);
//
// Version numbers are allocated max+1 per name inside the inserting
// transaction. Two writers racing on one name both compute the same
// next version; the primary key rejects the loser with a
// unique-violation error instead of minting a duplicate.
package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/registry"
	xe "github.com/opsline/trainyard/pkg/errors"
)

const schema = `
create table if not exists "artifact" (
	"name" varchar not null,
	"version" int not null,
	"location" varchar not null,
	"tags" jsonb not null default '{}',
	"created_at" timestamp with time zone not null default now(),
	primary key ("name", "version")
);
create index if not exists "idx_artifact_tags" on "artifact" using gin ("tags");
`

type pgRegistry struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, url string) (registry.Interface, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, xe.Wrap(err)
	}
	return &pgRegistry{pool: pool}, nil
}

// Wrap builds a registry over an existing pool. The schema must be in
// place already.
func Wrap(pool *pgxpool.Pool) registry.Interface {
	return &pgRegistry{pool: pool}
}

func (r *pgRegistry) CreateVersion(
	ctx context.Context, name string, location string, tags map[string]string,
) (domain.Artifact, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Artifact{}, xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	tagsJSON, err := json.Marshal(orEmpty(tags))
	if err != nil {
		return domain.Artifact{}, xe.Wrap(err)
	}

	artifact := domain.Artifact{Name: name, Location: location, Tags: orEmpty(tags)}
	err = tx.QueryRow(
		ctx,
		`
		insert into "artifact" ("name", "version", "location", "tags")
		select $1, coalesce(max("version"), 0) + 1, $2, $3
		from "artifact" where "name" = $1
		returning "version", "created_at"
		`,
		name, location, tagsJSON,
	).Scan(&artifact.Version, &artifact.CreatedAt)
	if err != nil {
		return domain.Artifact{}, xe.Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Artifact{}, xe.Wrap(err)
	}
	return artifact, nil
}

func (r *pgRegistry) Put(ctx context.Context, artifact domain.Artifact) error {
	tagsJSON, err := json.Marshal(orEmpty(artifact.Tags))
	if err != nil {
		return xe.Wrap(err)
	}

	_, err = r.pool.Exec(
		ctx,
		`
		insert into "artifact" ("name", "version", "location", "tags")
		values ($1, $2, $3, $4)
		`,
		artifact.Name, artifact.Version, artifact.Location, tagsJSON,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return registry.ErrAlreadyExists
		}
		return xe.Wrap(err)
	}
	return nil
}

func (r *pgRegistry) List(
	ctx context.Context, name string, filter registry.TagFilter,
) ([]domain.Artifact, error) {
	filterJSON, err := json.Marshal(orEmpty(filter))
	if err != nil {
		return nil, xe.Wrap(err)
	}

	rows, err := r.pool.Query(
		ctx,
		`
		select "name", "version", "location", "tags", "created_at"
		from "artifact"
		where "name" = $1 and "tags" @> $2
		order by "version"
		`,
		name, filterJSON,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer rows.Close()

	artifacts := []domain.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return artifacts, nil
}

func (r *pgRegistry) Get(ctx context.Context, name string, version int) (domain.Artifact, error) {
	rows, err := r.pool.Query(
		ctx,
		`
		select "name", "version", "location", "tags", "created_at"
		from "artifact"
		where "name" = $1 and "version" = $2
		`,
		name, version,
	)
	if err != nil {
		return domain.Artifact{}, xe.Wrap(err)
	}
	defer rows.Close()

	if !rows.Next() {
		return domain.Artifact{}, registry.ErrNotFound
	}
	return scanArtifact(rows)
}

func (r *pgRegistry) Empty(ctx context.Context) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(
		ctx, `select exists (select 1 from "artifact")`,
	).Scan(&exists)
	if err != nil {
		return false, xe.Wrap(err)
	}
	return !exists, nil
}

func scanArtifact(rows pgx.Rows) (domain.Artifact, error) {
	a := domain.Artifact{}
	tagsJSON := []byte{}
	if err := rows.Scan(&a.Name, &a.Version, &a.Location, &tagsJSON, &a.CreatedAt); err != nil {
		return domain.Artifact{}, xe.Wrap(err)
	}
	if err := json.Unmarshal(tagsJSON, &a.Tags); err != nil {
		return domain.Artifact{}, xe.Wrap(err)
	}
	return a, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
