package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/pawprint/internal/model"
	"github.com/d60-Lab/pawprint/internal/service"
)

// ErrMalformed marks a message that can never be decoded.
var ErrMalformed = errors.New("malformed event")

// IsPermanent reports whether redelivering the message is pointless.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMalformed) || service.Permanent(err)
}

// Applier applies one account event.
type Applier interface {
	Apply(ctx context.Context, ev service.AccountEvent) (*model.User, bool, error)
}

// Dispatcher decodes queue messages into account events.
type Dispatcher struct {
	svc      Applier
	validate *validator.Validate
}

func NewDispatcher(svc Applier) *Dispatcher {
	v := validator.New()
	v.SetTagName("binding")
	return &Dispatcher{svc: svc, validate: v}
}

// Handle is an events.Handler.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) error {
	var ev service.AccountEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := d.validate.Struct(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	_, _, err := d.svc.Apply(ctx, ev)
	return err
}
