package model

import "time"

type Status string

const (
	Pending   Status = "pending"
	Assigned  Status = "assigned"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// CanTransition reports whether a status change is a forward move.
// Terminal statuses never transition back.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return false
	}
	switch s {
	case Pending:
		return to == Assigned || to == Completed || to == Failed
	case Assigned:
		return to == Completed || to == Failed
	default:
		return false
	}
}

type OrderType string

const (
	TypeUnsafe   OrderType = "unsafe"
	TypeFund     OrderType = "fund"
	TypeSafeSlow OrderType = "safe_slow"
	TypeSafeFast OrderType = "safe_fast"
)

// ValidOrderTypes lists every supported order type.
var ValidOrderTypes = []OrderType{TypeUnsafe, TypeFund, TypeSafeSlow, TypeSafeFast}

func (t OrderType) Valid() bool {
	switch t {
	case TypeUnsafe, TypeFund, TypeSafeSlow, TypeSafeFast:
		return true
	}
	return false
}

// Order is one unit of work placed by a requester and fulfilled by workers.
type Order struct {
	OrderID   string
	Text      string
	CPAmount  int
	OrderType OrderType
	CreatedAt time.Time

	// WorkerID is zero until the first valid reply assigns a worker.
	WorkerID int64

	// Photos holds opaque content references, deduplicated by identity.
	Photos []string

	Status Status

	// ReplyMessageID is the outbound message workers must reply to,
	// set once the order has been broadcast.
	ReplyMessageID int64
}

// WorkerReply is one inbound message event. It is ephemeral input and is
// only retained in the audit history after processing.
type WorkerReply struct {
	UserID           int64
	MessageID        int64
	ReplyToMessageID int64
	Text             string
	Timestamp        time.Time
	Photos           []string
}
