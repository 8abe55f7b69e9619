package cashfree

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Webhook event types delivered by Cashfree.
const (
	EventPaymentSuccess = "PAYMENT_SUCCESS_WEBHOOK"
	EventPaymentFailed  = "PAYMENT_FAILED_WEBHOOK"
)

// ErrMalformedWebhook is returned when the payload is not a webhook event
// this integration understands. Handlers acknowledge such deliveries instead
// of asking the gateway to retry them.
var ErrMalformedWebhook = errors.New("malformed webhook payload")

// WebhookEvent is the subset of a Cashfree webhook delivery the reconciler
// needs. Raw keeps the full payload for the audit log.
type WebhookEvent struct {
	Type             string
	OrderID          string
	Amount           decimal.Decimal
	GatewayOrderID   string
	GatewayPaymentID string
	Raw              []byte
}

// Success reports whether the event signals a completed payment.
func (e *WebhookEvent) Success() bool {
	return e.Type == EventPaymentSuccess
}

// ParseWebhook decodes a webhook delivery. Unknown fields are skipped; a
// payload without a recognized type or an order id yields ErrMalformedWebhook.
func ParseWebhook(payload []byte) (*WebhookEvent, error) {
	ev := &WebhookEvent{Raw: payload}

	d := jx.DecodeBytes(payload)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "type":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "type")
			}
			ev.Type = v
			return nil
		case "data":
			return parseData(d, ev)
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrapf(ErrMalformedWebhook, "decode: %s", err)
	}

	if ev.Type != EventPaymentSuccess && ev.Type != EventPaymentFailed {
		return nil, errors.Wrapf(ErrMalformedWebhook, "unsupported type %q", ev.Type)
	}
	if ev.OrderID == "" {
		return nil, errors.Wrap(ErrMalformedWebhook, "missing order_id")
	}

	return ev, nil
}

func parseData(d *jx.Decoder, ev *WebhookEvent) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "order":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "order_id":
					v, err := d.Str()
					if err != nil {
						return errors.Wrap(err, "order_id")
					}
					ev.OrderID = v
					return nil
				case "order_amount":
					n, err := d.Num()
					if err != nil {
						return errors.Wrap(err, "order_amount")
					}
					amount, err := decimal.NewFromString(n.String())
					if err != nil {
						return errors.Wrap(err, "order_amount")
					}
					ev.Amount = amount
					return nil
				case "cf_order_id":
					return parseStringOrNumber(d, &ev.GatewayOrderID)
				default:
					return d.Skip()
				}
			})
		case "payment":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "cf_payment_id":
					return parseStringOrNumber(d, &ev.GatewayPaymentID)
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
}

// parseStringOrNumber reads a value Cashfree serializes inconsistently across
// API versions: numeric in some payloads, string in others.
func parseStringOrNumber(d *jx.Decoder, out *string) error {
	switch d.Next() {
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return err
		}
		*out = v
		return nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return err
		}
		*out = n.String()
		return nil
	default:
		return d.Skip()
	}
}
