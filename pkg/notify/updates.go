package notify

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hl1221hl/thingsboard/pkg/cluster"
)

// NotificationUpdate is pushed to a recipient's live subscribers whenever a
// notification belonging to them is created or changes state.
type NotificationUpdate struct {
	Notification *Notification `json:"notification"`
	IsNew        bool          `json:"is_new"`
}

// RequestUpdate is pushed to tenant-level subscribers whenever a notification
// request is updated or deleted, so that sessions can drop or refresh
// notifications originating from it.
type RequestUpdate struct {
	RequestID uuid.UUID         `json:"request_id"`
	Info      map[string]string `json:"info,omitempty"`
	Deleted   bool              `json:"deleted"`
}

// UpdateKind discriminates the payloads carried over the per-node
// notifications topic.
type UpdateKind string

const (
	UpdateKindNotification UpdateKind = "NOTIFICATION"
	UpdateKindRequest      UpdateKind = "REQUEST"
	UpdateKindScheduler    UpdateKind = "SCHEDULER"
)

// UpdateEnvelope is the wire format for cross-node traffic on the
// notifications topic. Exactly one of the payload fields is set, selected by
// Kind.
type UpdateEnvelope struct {
	Kind         UpdateKind            `json:"kind"`
	TenantID     uuid.UUID             `json:"tenant_id"`
	RecipientID  uuid.UUID             `json:"recipient_id,omitempty"`
	Notification *NotificationUpdate   `json:"notification,omitempty"`
	Request      *RequestUpdate        `json:"request,omitempty"`
	Scheduler    *cluster.SchedulerMsg `json:"scheduler,omitempty"`
}

// DecodeUpdate parses an envelope from a bus message payload.
func DecodeUpdate(payload json.RawMessage) (*UpdateEnvelope, error) {
	var env UpdateEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to decode update envelope: %w", err)
	}
	return &env, nil
}
