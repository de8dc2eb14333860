package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

func (r *Repository) GetPendingEvents(ctx context.Context, limit int) ([]*domain.NotificationEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, target_kind, target_id, order_id, sub_order_id, payload, status, attempts, created_at
		 FROM notification_events WHERE status = 'PENDING' ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()

	var events []*domain.NotificationEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending event iteration: %w", err)
	}
	return events, nil
}

func (r *Repository) GetEventByID(ctx context.Context, id uuid.UUID) (*domain.NotificationEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, target_kind, target_id, order_id, sub_order_id, payload, status, attempts, created_at
		 FROM notification_events WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *Repository) MarkEventPublished(ctx context.Context, id uuid.UUID) error {
	return r.setEventStatus(ctx, id, domain.EventStatusPublished, -1)
}

func (r *Repository) MarkEventDelivered(ctx context.Context, id uuid.UUID) error {
	return r.setEventStatus(ctx, id, domain.EventStatusDelivered, -1)
}

func (r *Repository) MarkEventFailed(ctx context.Context, id uuid.UUID, attempts int) error {
	return r.setEventStatus(ctx, id, domain.EventStatusFailed, attempts)
}

func (r *Repository) setEventStatus(ctx context.Context, id uuid.UUID, status domain.EventStatus, attempts int) error {
	var err error
	if attempts >= 0 {
		_, err = r.db.ExecContext(ctx,
			`UPDATE notification_events SET status = $1, attempts = $2, updated_at = NOW() WHERE id = $3`,
			status, attempts, id)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE notification_events SET status = $1, updated_at = NOW() WHERE id = $2`,
			status, id)
	}
	if err != nil {
		return fmt.Errorf("set event %s status %s: %w", id, status, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*domain.NotificationEvent, error) {
	var ev domain.NotificationEvent
	var subOrderID uuid.NullUUID
	var payload []byte
	err := row.Scan(
		&ev.ID,
		&ev.Kind,
		&ev.Target,
		&ev.TargetID,
		&ev.OrderID,
		&subOrderID,
		&payload,
		&ev.Status,
		&ev.Attempts,
		&ev.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event row: %w", err)
	}
	if subOrderID.Valid {
		ev.SubOrderID = &subOrderID.UUID
	}
	ev.Payload = payload
	return &ev, nil
}
