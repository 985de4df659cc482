package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	requestsCollection      = "notification_requests"
	notificationsCollection = "notifications"
)

// MongoStorage persists requests and notifications in MongoDB. Identifiers
// are stored as strings to keep documents readable in shell queries.
type MongoStorage struct {
	requests      *mongo.Collection
	notifications *mongo.Collection
}

// NewMongoStorage wraps collections of the given database.
func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{
		requests:      db.Collection(requestsCollection),
		notifications: db.Collection(notificationsCollection),
	}
}

type requestConfigDoc struct {
	SendingDelaySec int `bson:"sending_delay_sec"`
}

type requestDoc struct {
	ID               string            `bson:"_id"`
	TenantID         string            `bson:"tenant_id"`
	CustomerID       string            `bson:"customer_id,omitempty"`
	Targets          []string          `bson:"targets"`
	DeliveryMethods  []string          `bson:"delivery_methods"`
	NotificationType string            `bson:"notification_type"`
	Info             map[string]string `bson:"info,omitempty"`
	OriginatorType   string            `bson:"originator_type,omitempty"`
	Config           *requestConfigDoc `bson:"config,omitempty"`
	Status           string            `bson:"status"`
	Stats            *StatsSnapshot    `bson:"stats,omitempty"`
	CreatedAt        time.Time         `bson:"created_at"`
}

type notificationDoc struct {
	ID             string            `bson:"_id"`
	TenantID       string            `bson:"tenant_id"`
	RequestID      string            `bson:"request_id"`
	RecipientID    string            `bson:"recipient_id"`
	Type           string            `bson:"type"`
	Text           string            `bson:"text"`
	Info           map[string]string `bson:"info,omitempty"`
	OriginatorType string            `bson:"originator_type,omitempty"`
	Status         string            `bson:"status"`
	CreatedAt      time.Time         `bson:"created_at"`
}

func (s *MongoStorage) SaveRequest(ctx context.Context, request *NotificationRequest) (*NotificationRequest, error) {
	saved := *request
	if saved.ID == uuid.Nil {
		saved.ID = uuid.New()
	}

	doc := toRequestDoc(&saved)
	_, err := s.requests.ReplaceOne(ctx,
		bson.M{"_id": doc.ID, "tenant_id": doc.TenantID},
		doc, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("failed to save notification request: %w", err)
	}
	return &saved, nil
}

func (s *MongoStorage) GetRequest(ctx context.Context, tenantID, requestID uuid.UUID) (*NotificationRequest, error) {
	var doc requestDoc
	err := s.requests.FindOne(ctx,
		bson.M{"_id": requestID.String(), "tenant_id": tenantID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification request: %w", err)
	}
	return fromRequestDoc(&doc)
}

func (s *MongoStorage) DeleteRequest(ctx context.Context, tenantID, requestID uuid.UUID) error {
	result, err := s.requests.DeleteOne(ctx,
		bson.M{"_id": requestID.String(), "tenant_id": tenantID.String()})
	if err != nil {
		return fmt.Errorf("failed to delete notification request: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *MongoStorage) UpdateRequestStats(ctx context.Context, tenantID, requestID uuid.UUID, stats StatsSnapshot) error {
	result, err := s.requests.UpdateOne(ctx,
		bson.M{"_id": requestID.String(), "tenant_id": tenantID.String()},
		bson.M{"$set": bson.M{"stats": stats}})
	if err != nil {
		return fmt.Errorf("failed to update request stats: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *MongoStorage) SaveNotification(ctx context.Context, tenantID uuid.UUID, notification Notification) (*Notification, error) {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}

	doc := notificationDoc{
		ID:             notification.ID.String(),
		TenantID:       tenantID.String(),
		RequestID:      notification.RequestID.String(),
		RecipientID:    notification.RecipientID.String(),
		Type:           notification.Type,
		Text:           notification.Text,
		Info:           notification.Info,
		OriginatorType: notification.OriginatorType,
		Status:         string(notification.Status),
		CreatedAt:      notification.CreatedAt,
	}
	if _, err := s.notifications.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save notification: %w", err)
	}
	return &notification, nil
}

func (s *MongoStorage) GetNotification(ctx context.Context, tenantID, notificationID uuid.UUID) (*Notification, error) {
	var doc notificationDoc
	err := s.notifications.FindOne(ctx,
		bson.M{"_id": notificationID.String(), "tenant_id": tenantID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}
	return fromNotificationDoc(&doc)
}

func (s *MongoStorage) MarkNotificationRead(ctx context.Context, tenantID, recipientID, notificationID uuid.UUID) (bool, error) {
	result, err := s.notifications.UpdateOne(ctx,
		bson.M{
			"_id":          notificationID.String(),
			"tenant_id":    tenantID.String(),
			"recipient_id": recipientID.String(),
			"status":       string(NotificationStatusSent),
		},
		bson.M{"$set": bson.M{"status": string(NotificationStatusRead)}})
	if err != nil {
		return false, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if result.ModifiedCount > 0 {
		return true, nil
	}

	count, err := s.notifications.CountDocuments(ctx, bson.M{
		"_id":          notificationID.String(),
		"tenant_id":    tenantID.String(),
		"recipient_id": recipientID.String(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check notification existence: %w", err)
	}
	if count == 0 {
		return false, ErrNotificationNotFound
	}
	return false, nil
}

func toRequestDoc(request *NotificationRequest) *requestDoc {
	doc := &requestDoc{
		ID:               request.ID.String(),
		TenantID:         request.TenantID.String(),
		Targets:          make([]string, 0, len(request.Targets)),
		DeliveryMethods:  make([]string, 0, len(request.DeliveryMethods)),
		NotificationType: request.NotificationType,
		Info:             request.Info,
		OriginatorType:   request.OriginatorType,
		Status:           string(request.Status),
		CreatedAt:        request.CreatedAt,
	}
	if request.CustomerID != uuid.Nil {
		doc.CustomerID = request.CustomerID.String()
	}
	for _, targetID := range request.Targets {
		doc.Targets = append(doc.Targets, targetID.String())
	}
	for _, method := range request.DeliveryMethods {
		doc.DeliveryMethods = append(doc.DeliveryMethods, string(method))
	}
	if request.Config != nil {
		doc.Config = &requestConfigDoc{SendingDelaySec: request.Config.SendingDelaySec}
	}
	return doc
}

func fromRequestDoc(doc *requestDoc) (*NotificationRequest, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid request id %q: %w", doc.ID, err)
	}
	tenantID, err := uuid.Parse(doc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id %q: %w", doc.TenantID, err)
	}

	request := &NotificationRequest{
		ID:               id,
		TenantID:         tenantID,
		NotificationType: doc.NotificationType,
		Info:             doc.Info,
		OriginatorType:   doc.OriginatorType,
		Status:           RequestStatus(doc.Status),
		CreatedAt:        doc.CreatedAt,
	}
	if doc.CustomerID != "" {
		if request.CustomerID, err = uuid.Parse(doc.CustomerID); err != nil {
			return nil, fmt.Errorf("invalid customer id %q: %w", doc.CustomerID, err)
		}
	}
	for _, raw := range doc.Targets {
		targetID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid target id %q: %w", raw, err)
		}
		request.Targets = append(request.Targets, targetID)
	}
	for _, method := range doc.DeliveryMethods {
		request.DeliveryMethods = append(request.DeliveryMethods, DeliveryMethod(method))
	}
	if doc.Config != nil {
		request.Config = &RequestConfig{SendingDelaySec: doc.Config.SendingDelaySec}
	}
	return request, nil
}

func fromNotificationDoc(doc *notificationDoc) (*Notification, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid notification id %q: %w", doc.ID, err)
	}
	requestID, err := uuid.Parse(doc.RequestID)
	if err != nil {
		return nil, fmt.Errorf("invalid request id %q: %w", doc.RequestID, err)
	}
	recipientID, err := uuid.Parse(doc.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient id %q: %w", doc.RecipientID, err)
	}

	return &Notification{
		ID:             id,
		RequestID:      requestID,
		RecipientID:    recipientID,
		Type:           doc.Type,
		Text:           doc.Text,
		Info:           doc.Info,
		OriginatorType: doc.OriginatorType,
		Status:         NotificationStatus(doc.Status),
		CreatedAt:      doc.CreatedAt,
	}, nil
}
