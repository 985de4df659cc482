package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage persists requests, notifications and resolves recipients
// from PostgreSQL. Variable-shape fields (targets, delivery methods, info,
// config, stats) are stored as jsonb; see the migrations directory for the
// schema.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage wraps an established connection pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) SaveRequest(ctx context.Context, request *NotificationRequest) (*NotificationRequest, error) {
	saved := *request
	if saved.ID == uuid.Nil {
		saved.ID = uuid.New()
	}

	targets, err := json.Marshal(saved.Targets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request targets: %w", err)
	}
	methods, err := json.Marshal(saved.DeliveryMethods)
	if err != nil {
		return nil, fmt.Errorf("failed to encode delivery methods: %w", err)
	}
	info, err := json.Marshal(saved.Info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request info: %w", err)
	}
	var config []byte
	if saved.Config != nil {
		if config, err = json.Marshal(saved.Config); err != nil {
			return nil, fmt.Errorf("failed to encode request config: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notification_request
			(id, tenant_id, customer_id, targets, delivery_methods, notification_type,
			 info, originator_type, config, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			targets = EXCLUDED.targets,
			delivery_methods = EXCLUDED.delivery_methods,
			notification_type = EXCLUDED.notification_type,
			info = EXCLUDED.info,
			originator_type = EXCLUDED.originator_type,
			config = EXCLUDED.config,
			status = EXCLUDED.status`,
		saved.ID, saved.TenantID, saved.CustomerID, targets, methods, saved.NotificationType,
		info, saved.OriginatorType, config, saved.Status, saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save notification request: %w", err)
	}
	return &saved, nil
}

func (s *PostgresStorage) GetRequest(ctx context.Context, tenantID, requestID uuid.UUID) (*NotificationRequest, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, customer_id, targets, delivery_methods, notification_type,
		       info, originator_type, config, status, created_at
		FROM notification_request
		WHERE id = $1 AND tenant_id = $2`,
		requestID, tenantID)

	var (
		request NotificationRequest
		targets []byte
		methods []byte
		info    []byte
		config  []byte
	)
	err := row.Scan(&request.ID, &request.TenantID, &request.CustomerID, &targets, &methods,
		&request.NotificationType, &info, &request.OriginatorType, &config,
		&request.Status, &request.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification request: %w", err)
	}

	if err := json.Unmarshal(targets, &request.Targets); err != nil {
		return nil, fmt.Errorf("failed to decode request targets: %w", err)
	}
	if err := json.Unmarshal(methods, &request.DeliveryMethods); err != nil {
		return nil, fmt.Errorf("failed to decode delivery methods: %w", err)
	}
	if len(info) > 0 {
		if err := json.Unmarshal(info, &request.Info); err != nil {
			return nil, fmt.Errorf("failed to decode request info: %w", err)
		}
	}
	if len(config) > 0 {
		request.Config = &RequestConfig{}
		if err := json.Unmarshal(config, request.Config); err != nil {
			return nil, fmt.Errorf("failed to decode request config: %w", err)
		}
	}
	return &request, nil
}

func (s *PostgresStorage) DeleteRequest(ctx context.Context, tenantID, requestID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notification_request WHERE id = $1 AND tenant_id = $2`,
		requestID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete notification request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *PostgresStorage) UpdateRequestStats(ctx context.Context, tenantID, requestID uuid.UUID, stats StatsSnapshot) error {
	encoded, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode delivery stats: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE notification_request SET stats = $3 WHERE id = $1 AND tenant_id = $2`,
		requestID, tenantID, encoded)
	if err != nil {
		return fmt.Errorf("failed to update request stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *PostgresStorage) SaveNotification(ctx context.Context, tenantID uuid.UUID, notification Notification) (*Notification, error) {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}

	info, err := json.Marshal(notification.Info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification info: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notification
			(id, tenant_id, request_id, recipient_id, type, text, info,
			 originator_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		notification.ID, tenantID, notification.RequestID, notification.RecipientID,
		notification.Type, notification.Text, info, notification.OriginatorType,
		notification.Status, notification.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}
	return &notification, nil
}

func (s *PostgresStorage) GetNotification(ctx context.Context, tenantID, notificationID uuid.UUID) (*Notification, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, request_id, recipient_id, type, text, info, originator_type, status, created_at
		FROM notification
		WHERE id = $1 AND tenant_id = $2`,
		notificationID, tenantID)

	var (
		notification Notification
		info         []byte
	)
	err := row.Scan(&notification.ID, &notification.RequestID, &notification.RecipientID,
		&notification.Type, &notification.Text, &info, &notification.OriginatorType,
		&notification.Status, &notification.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}
	if len(info) > 0 {
		if err := json.Unmarshal(info, &notification.Info); err != nil {
			return nil, fmt.Errorf("failed to decode notification info: %w", err)
		}
	}
	return &notification, nil
}

func (s *PostgresStorage) MarkNotificationRead(ctx context.Context, tenantID, recipientID, notificationID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification SET status = $4
		WHERE id = $1 AND tenant_id = $2 AND recipient_id = $3 AND status = $5`,
		notificationID, tenantID, recipientID, NotificationStatusRead, NotificationStatusSent)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// No transition happened: either already read or not there at all.
	var exists bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notification
			WHERE id = $1 AND tenant_id = $2 AND recipient_id = $3
		)`,
		notificationID, tenantID, recipientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check notification existence: %w", err)
	}
	if !exists {
		return false, ErrNotificationNotFound
	}
	return false, nil
}

// FindRecipients pages through the users linked to a notification target,
// scoped to the tenant and optionally a customer. One extra row is fetched
// to detect whether another page follows.
func (s *PostgresStorage) FindRecipients(ctx context.Context, tenantID, customerID, targetID uuid.UUID, link PageLink) (RecipientPage, error) {
	if link.PageSize <= 0 {
		link.PageSize = DefaultRecipientBatchSize
	}

	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.tenant_id, u.customer_id, u.email, u.first_name, u.last_name
		FROM user_account u
		JOIN target_recipient tr ON tr.user_id = u.id
		WHERE tr.target_id = $1
		  AND u.tenant_id = $2
		  AND ($3::uuid = '00000000-0000-0000-0000-000000000000' OR u.customer_id = $3)
		ORDER BY u.email, u.id
		LIMIT $4 OFFSET $5`,
		targetID, tenantID, customerID, link.PageSize+1, link.Page*link.PageSize)
	if err != nil {
		return RecipientPage{}, fmt.Errorf("failed to query target recipients: %w", err)
	}
	defer rows.Close()

	var recipients []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.ID, &r.TenantID, &r.CustomerID, &r.Email, &r.FirstName, &r.LastName); err != nil {
			return RecipientPage{}, fmt.Errorf("failed to scan recipient row: %w", err)
		}
		recipients = append(recipients, r)
	}
	if err := rows.Err(); err != nil {
		return RecipientPage{}, fmt.Errorf("failed to read target recipients: %w", err)
	}

	page := RecipientPage{Recipients: recipients}
	if len(recipients) > link.PageSize {
		page.Recipients = recipients[:link.PageSize]
		page.HasNext = true
	}
	return page, nil
}
