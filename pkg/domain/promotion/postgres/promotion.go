package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/promotion"
	xe "github.com/opsline/trainyard/pkg/errors"
)

const schema = `
create table if not exists "promotion_request" (
	"id" uuid primary key default gen_random_uuid(),
	"artifact_name" varchar not null,
	"artifact_version" int not null,
	"approval" varchar not null default 'pending',
	"propagation" varchar not null default 'not_started',
	"opened_at" timestamp with time zone not null default now(),
	"resolved_at" timestamp with time zone,
	unique ("artifact_name", "artifact_version")
);
`

type pgPromotion struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, url string) (promotion.Interface, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, xe.Wrap(err)
	}
	return &pgPromotion{pool: pool}, nil
}

func Wrap(pool *pgxpool.Pool) promotion.Interface {
	return &pgPromotion{pool: pool}
}

func (p *pgPromotion) Open(ctx context.Context, artifact domain.Artifact) (domain.PromotionRequest, error) {
	req := domain.PromotionRequest{
		ArtifactName:    artifact.Name,
		ArtifactVersion: artifact.Version,
		Approval:        domain.ApprovalPending,
		Propagation:     domain.PropagationNotStarted,
	}
	err := p.pool.QueryRow(
		ctx,
		`
		insert into "promotion_request" ("artifact_name", "artifact_version")
		values ($1, $2)
		returning "id", "opened_at"
		`,
		artifact.Name, artifact.Version,
	).Scan(&req.ID, &req.OpenedAt)
	if err == nil {
		return req, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		// reopened after a restart; hand back the existing request
		return p.getBy(ctx, artifact.Name, artifact.Version)
	}
	return domain.PromotionRequest{}, xe.Wrap(err)
}

func (p *pgPromotion) Get(ctx context.Context, id string) (domain.PromotionRequest, error) {
	return p.get(ctx, `"id" = $1`, id)
}

func (p *pgPromotion) getBy(ctx context.Context, name string, version int) (domain.PromotionRequest, error) {
	return p.get(ctx, `"artifact_name" = $1 and "artifact_version" = $2`, name, version)
}

func (p *pgPromotion) get(ctx context.Context, where string, args ...any) (domain.PromotionRequest, error) {
	rows, err := p.pool.Query(
		ctx,
		`
		select "id", "artifact_name", "artifact_version",
		       "approval", "propagation", "opened_at", "resolved_at"
		from "promotion_request" where `+where,
		args...,
	)
	if err != nil {
		return domain.PromotionRequest{}, xe.Wrap(err)
	}
	defer rows.Close()

	if !rows.Next() {
		return domain.PromotionRequest{}, promotion.ErrNotFound
	}

	req := domain.PromotionRequest{}
	approval := ""
	propagation := ""
	if err := rows.Scan(
		&req.ID, &req.ArtifactName, &req.ArtifactVersion,
		&approval, &propagation, &req.OpenedAt, &req.ResolvedAt,
	); err != nil {
		return domain.PromotionRequest{}, xe.Wrap(err)
	}
	if req.Approval, err = domain.AsApprovalState(approval); err != nil {
		return domain.PromotionRequest{}, xe.Wrap(err)
	}
	if req.Propagation, err = domain.AsPropagationState(propagation); err != nil {
		return domain.PromotionRequest{}, xe.Wrap(err)
	}
	return req, nil
}

func (p *pgPromotion) SetApproval(ctx context.Context, id string, state domain.ApprovalState) error {
	tag, err := p.pool.Exec(
		ctx,
		`update "promotion_request" set "approval" = $2 where "id" = $1`,
		id, string(state),
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

func (p *pgPromotion) SetPropagation(ctx context.Context, id string, state domain.PropagationState) error {
	resolved := state == domain.PropagationConfirmed || state == domain.PropagationTimedOut
	tag, err := p.pool.Exec(
		ctx,
		`
		update "promotion_request"
		set "propagation" = $2,
		    "resolved_at" = case when $3 then now() else "resolved_at" end
		where "id" = $1
		`,
		id, string(state), resolved,
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}
