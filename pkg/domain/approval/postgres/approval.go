// Postgres-backed approval channel.
//
// Decisions wake waiters via LISTEN/NOTIFY, so Await suspends on the
// database connection instead of polling. The row is the source of
// truth; notifications are only wakeups, and Await re-reads the row
// after every one (a notification can be lost across restarts, a row
// cannot).
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/approval"
	xe "github.com/opsline/trainyard/pkg/errors"
)

const schema = `
create table if not exists "approval_request" (
	"id" uuid primary key default gen_random_uuid(),
	"kind" varchar not null,
	"subject" varchar not null,
	"summary" jsonb not null default '{}',
	"decision" varchar not null default 'pending',
	"opened_at" timestamp with time zone not null default now(),
	"decided_at" timestamp with time zone
);
`

const notifyChannel = "trainyard_approval_decision"

type pgApproval struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, url string) (approval.Interface, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, xe.Wrap(err)
	}
	return &pgApproval{pool: pool}, nil
}

func Wrap(pool *pgxpool.Pool) approval.Interface {
	return &pgApproval{pool: pool}
}

func (a *pgApproval) Open(
	ctx context.Context, kind approval.Kind, subject string, summary map[string]string,
) (approval.Request, error) {
	if summary == nil {
		summary = map[string]string{}
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return approval.Request{}, xe.Wrap(err)
	}

	req := approval.Request{
		Kind:     kind,
		Subject:  subject,
		Summary:  summary,
		Decision: domain.ApprovalPending,
	}
	err = a.pool.QueryRow(
		ctx,
		`
		insert into "approval_request" ("kind", "subject", "summary")
		values ($1, $2, $3)
		returning "id", "opened_at"
		`,
		string(kind), subject, summaryJSON,
	).Scan(&req.ID, &req.OpenedAt)
	if err != nil {
		return approval.Request{}, xe.Wrap(err)
	}
	return req, nil
}

func (a *pgApproval) Get(ctx context.Context, id string) (approval.Request, error) {
	rows, err := a.pool.Query(
		ctx,
		`
		select "id", "kind", "subject", "summary", "decision", "opened_at", "decided_at"
		from "approval_request" where "id" = $1
		`,
		id,
	)
	if err != nil {
		return approval.Request{}, xe.Wrap(err)
	}
	defer rows.Close()

	if !rows.Next() {
		return approval.Request{}, approval.ErrNotFound
	}

	req := approval.Request{}
	kind := ""
	decision := ""
	summaryJSON := []byte{}
	if err := rows.Scan(
		&req.ID, &kind, &req.Subject, &summaryJSON,
		&decision, &req.OpenedAt, &req.DecidedAt,
	); err != nil {
		return approval.Request{}, xe.Wrap(err)
	}
	req.Kind = approval.Kind(kind)
	if req.Decision, err = domain.AsApprovalState(decision); err != nil {
		return approval.Request{}, xe.Wrap(err)
	}
	if err := json.Unmarshal(summaryJSON, &req.Summary); err != nil {
		return approval.Request{}, xe.Wrap(err)
	}
	return req, nil
}

func (a *pgApproval) ListPending(ctx context.Context) ([]approval.Request, error) {
	rows, err := a.pool.Query(
		ctx,
		`
		select "id" from "approval_request"
		where "decision" = 'pending'
		order by "opened_at"
		`,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	ids := []string{}
	for rows.Next() {
		id := ""
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, xe.Wrap(err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, xe.Wrap(err)
	}

	pending := []approval.Request{}
	for _, id := range ids {
		req, err := a.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		pending = append(pending, req)
	}
	return pending, nil
}

func (a *pgApproval) Decide(ctx context.Context, id string, decision domain.ApprovalState) error {
	if decision != domain.ApprovalApproved && decision != domain.ApprovalRejected {
		return xe.New("decision must be approved or rejected: " + decision.String())
	}

	tag, err := a.pool.Exec(
		ctx,
		`
		update "approval_request"
		set "decision" = $2, "decided_at" = now()
		where "id" = $1 and "decision" = 'pending'
		`,
		id, string(decision),
	)
	if err != nil {
		return xe.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		// either unknown or already decided; disambiguate for the caller
		if _, err := a.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", approval.ErrAlreadyDecided, id)
	}

	if _, err := a.pool.Exec(
		ctx, `select pg_notify($1, $2)`, notifyChannel, id,
	); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

func (a *pgApproval) Await(
	ctx context.Context, id string, timeout time.Duration,
) (domain.ApprovalState, error) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// dedicated connection; LISTEN is per-connection state.
	conn, err := a.pool.Acquire(wctx)
	if err != nil {
		return "", xe.Wrap(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(wctx, `listen `+notifyChannel); err != nil {
		return "", xe.Wrap(err)
	}

	for {
		// the decision may have landed before LISTEN or between wakeups
		req, err := a.Get(wctx, id)
		if err != nil {
			return "", err
		}
		if req.Decision != domain.ApprovalPending {
			return req.Decision, nil
		}

		notification, err := conn.Conn().WaitForNotification(wctx)
		if err != nil {
			if wctx.Err() != nil && ctx.Err() == nil {
				return domain.ApprovalTimedOut, nil
			}
			return "", xe.Wrap(err)
		}
		if notification.Payload != id {
			continue
		}
	}
}
