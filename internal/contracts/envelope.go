package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrMalformed marks a message that can never be processed. Consumers
// dead-letter it instead of requeueing.
var ErrMalformed = errors.New("malformed message")

const EnvelopeVersion = 1

const (
	TypeVerificationRequested  = "VerificationRequested"
	TypeStockUpdate            = "StockUpdate"
	TypeStockReserved          = "StockReserved"
	TypeStockReservationFailed = "StockReservationFailed"
	TypeOrderApproved          = "OrderApproved"
	TypeOrderRejected          = "OrderRejected"
	TypeOrderCancelled         = "OrderCancelled"
	TypeNotification           = "Notification"
)

func init() {
	// amounts travel as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload for publishing. The correlation id is the order id.
func NewEnvelope(source, msgType, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return Envelope{
		ID:            uuid.NewString(),
		Type:          msgType,
		Version:       EnvelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Source:        source,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Parse decodes a raw message body into an envelope.
func Parse(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" || len(env.Payload) == 0 {
		return Envelope{}, fmt.Errorf("%w: missing type or payload", ErrMalformed)
	}
	if env.Version != EnvelopeVersion {
		return Envelope{}, fmt.Errorf("%w: unsupported version %d", ErrMalformed, env.Version)
	}
	return env, nil
}

type validator interface {
	Validate() error
}

// Decode unwraps the payload of env, which must carry one of the given types.
func Decode[T any](env Envelope, types ...string) (T, error) {
	var out T
	if !typeMatches(env.Type, types) {
		return out, fmt.Errorf("%w: unexpected type %q", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("%w: decode %s: %v", ErrMalformed, env.Type, err)
	}
	if v, ok := any(&out).(validator); ok {
		if err := v.Validate(); err != nil {
			return out, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return out, nil
}

func typeMatches(t string, types []string) bool {
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}
