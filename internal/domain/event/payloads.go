package event

import (
	"encoding/json"
	"fmt"
)

// Line is one requested product line, prices snapshotted at purchase time.
type Line struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// DispensedLine reports the per-line outcome of a dispense attempt.
type DispensedLine struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Dispensed int    `json:"dispensed"`
}

type PaymentRequested struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
	Lines         []Line  `json:"lines"`
}

type PaymentCompleted struct {
	TransactionID string  `json:"transaction_id"`
	PaymentID     string  `json:"payment_id"`
	Amount        float64 `json:"amount"`
}

type PaymentFailed struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

type DispensingRequested struct {
	TransactionID string `json:"transaction_id"`
	Lines         []Line `json:"lines"`
}

type DispensingCompleted struct {
	TransactionID string          `json:"transaction_id"`
	Lines         []DispensedLine `json:"lines"`
}

// FullyDispensed reports whether every requested unit was actually dispensed.
// A shortfall must never silently complete the purchase.
func (p *DispensingCompleted) FullyDispensed() bool {
	for _, l := range p.Lines {
		if l.Dispensed < l.Requested {
			return false
		}
	}
	return true
}

type DispensingFailed struct {
	TransactionID        string `json:"transaction_id"`
	Reason               string `json:"reason"`
	CompensationRequired bool   `json:"compensation_required"`
}

type TransactionCompleted struct {
	TransactionID string `json:"transaction_id"`
	Lines         []Line `json:"lines"`
}

type TransactionFailed struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

type TransactionCancelled struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

type RefundRequested struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
}

type ProductOutOfStock struct {
	ProductID string `json:"product_id"`
}

// Decode parses the envelope payload into its concrete type. The event kinds
// form a closed set; unknown types are the caller's concern (the router skips
// types it has no handler for before decoding).
func Decode(e *Envelope) (any, error) {
	var dst any
	switch e.Type {
	case TypePaymentRequested:
		dst = &PaymentRequested{}
	case TypePaymentCompleted:
		dst = &PaymentCompleted{}
	case TypePaymentFailed:
		dst = &PaymentFailed{}
	case TypeDispensingRequested:
		dst = &DispensingRequested{}
	case TypeDispensingCompleted:
		dst = &DispensingCompleted{}
	case TypeDispensingFailed:
		dst = &DispensingFailed{}
	case TypeTransactionCompleted:
		dst = &TransactionCompleted{}
	case TypeTransactionFailed:
		dst = &TransactionFailed{}
	case TypeTransactionCancelled:
		dst = &TransactionCancelled{}
	case TypeRefundRequested:
		dst = &RefundRequested{}
	case TypeProductOutOfStock:
		dst = &ProductOutOfStock{}
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}

	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return dst, nil
}
