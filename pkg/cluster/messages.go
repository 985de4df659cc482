package cluster

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is the unit of cross-node transport: an identified, serialized
// payload. The payload format is owned by the sending component; the cluster
// layer treats it as opaque bytes.
type Message struct {
	ID      uuid.UUID       `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage wraps the JSON encoding of payload in a Message with a fresh id.
func NewMessage(payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{ID: uuid.New(), Payload: raw}, nil
}

// SplitUUID decomposes a UUID into its most and least significant 64 bits,
// matching the wire representation used by the scheduler message schema.
func SplitUUID(id uuid.UUID) (msb, lsb uint64) {
	msb = binary.BigEndian.Uint64(id[:8])
	lsb = binary.BigEndian.Uint64(id[8:])
	return msb, lsb
}

// JoinUUID reassembles a UUID from its most and least significant 64 bits.
func JoinUUID(msb, lsb uint64) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[:8], msb)
	binary.BigEndian.PutUint64(id[8:], lsb)
	return id
}

// SchedulerMsg defers execution of a notification request to the node owning
// the tenant's core partition. Identifiers travel as split 128-bit values and
// the submission timestamp as unix milliseconds.
type SchedulerMsg struct {
	TenantIDMSB  uint64 `json:"tenant_id_msb"`
	TenantIDLSB  uint64 `json:"tenant_id_lsb"`
	RequestIDMSB uint64 `json:"request_id_msb"`
	RequestIDLSB uint64 `json:"request_id_lsb"`
	Ts           int64  `json:"ts"`
}

// NewSchedulerMsg builds a SchedulerMsg for the given tenant and request with
// the provided submission time.
func NewSchedulerMsg(tenantID, requestID uuid.UUID, ts time.Time) SchedulerMsg {
	tenantMSB, tenantLSB := SplitUUID(tenantID)
	requestMSB, requestLSB := SplitUUID(requestID)
	return SchedulerMsg{
		TenantIDMSB:  tenantMSB,
		TenantIDLSB:  tenantLSB,
		RequestIDMSB: requestMSB,
		RequestIDLSB: requestLSB,
		Ts:           ts.UnixMilli(),
	}
}

// TenantID reassembles the tenant identifier.
func (m SchedulerMsg) TenantID() uuid.UUID {
	return JoinUUID(m.TenantIDMSB, m.TenantIDLSB)
}

// RequestID reassembles the notification request identifier.
func (m SchedulerMsg) RequestID() uuid.UUID {
	return JoinUUID(m.RequestIDMSB, m.RequestIDLSB)
}

// Timestamp returns the submission time of the original request.
func (m SchedulerMsg) Timestamp() time.Time {
	return time.UnixMilli(m.Ts)
}
