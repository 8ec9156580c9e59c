package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/oksasatya/go-registration-form/internal/application"
	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	"github.com/oksasatya/go-registration-form/pkg/field"
)

// ErrDeclined is returned when the user chooses not to submit.
var ErrDeclined = errors.New("cli: submission declined")

// Runner walks a mounted form field by field on a terminal.
type Runner struct {
	Svc    *application.Service
	Driver PromptDriver
	// RevealSecrets shows secret fields as plain input.
	RevealSecrets bool
	// OfferReveal asks once per masked field whether to show it while typing.
	OfferReveal bool
	// MaxAttempts bounds the submit loop; zero means 3.
	MaxAttempts int

	offered map[string]bool
}

func NewRunner(svc *application.Service, driver PromptDriver, revealSecrets bool) *Runner {
	return &Runner{Svc: svc, Driver: driver, RevealSecrets: revealSecrets}
}

// Run prompts every field until it is valid, then submits. A failed
// submission keeps the values and asks again.
func (r *Runner) Run(ctx context.Context) (*entity.UserRecord, error) {
	if r.RevealSecrets {
		for _, fv := range r.Svc.View().Fields {
			if fv.Secret && !fv.Revealed {
				if _, err := r.Svc.ToggleVisibility(fv.Name); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := r.showNotices(ctx); err != nil {
		return nil, err
	}

	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		for _, name := range entity.FieldNames {
			if err := r.promptField(ctx, name); err != nil {
				return nil, err
			}
		}

		ok, err := r.Driver.Confirm(ctx, ConfirmConfig{Message: r.Svc.View().SubmitLabel + "?", Default: true})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDeclined
		}

		rec, err := r.Svc.Submit(ctx)
		if err == nil {
			if err := r.showNotices(ctx); err != nil {
				return nil, err
			}
			return rec, nil
		}
		lastErr = err

		var verr *application.ValidationError
		switch {
		case errors.As(err, &verr):
			for _, name := range entity.FieldNames {
				if msg, ok := verr.Errors[name]; ok {
					if err := r.Driver.Info(ctx, fmt.Sprintf("  %s: %s", name, msg)); err != nil {
						return nil, err
					}
				}
			}
		case errors.Is(err, application.ErrSubmission):
			if err := r.Driver.Info(ctx, "Registration could not be saved, please try again."); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

// promptField asks for one field until the controller accepts it.
func (r *Runner) promptField(ctx context.Context, name string) error {
	if err := r.offerReveal(ctx, name); err != nil {
		return err
	}
	for {
		fv, err := r.fieldView(name)
		if err != nil {
			return err
		}
		value, err := r.ask(ctx, fv)
		if err != nil {
			return err
		}
		if err := r.Svc.Change(name, value); err != nil {
			return err
		}
		if err := r.Svc.Blur(name); err != nil {
			return err
		}
		fv, err = r.fieldView(name)
		if err != nil {
			return err
		}
		if !fv.Error {
			return nil
		}
		if err := r.Driver.Info(ctx, "  "+fv.HelperText); err != nil {
			return err
		}
	}
}

func (r *Runner) offerReveal(ctx context.Context, name string) error {
	if !r.OfferReveal || r.offered[name] {
		return nil
	}
	fv, err := r.fieldView(name)
	if err != nil || !fv.Secret || fv.Revealed {
		return err
	}
	if r.offered == nil {
		r.offered = make(map[string]bool)
	}
	r.offered[name] = true
	show, err := r.Driver.Confirm(ctx, ConfirmConfig{Message: "Show " + fv.Label + " while typing?"})
	if err != nil || !show {
		return err
	}
	_, err = r.Svc.ToggleVisibility(name)
	return err
}

func (r *Runner) ask(ctx context.Context, fv field.View) (string, error) {
	cfg := InputConfig{Message: fv.Label + ":"}
	if fv.InputType == field.TypePassword {
		if fv.Value != "" {
			cfg.Help = "leave empty to keep the saved value"
		}
		v, err := r.Driver.Password(ctx, cfg)
		if err != nil {
			return "", err
		}
		if v == "" {
			return fv.Value, nil
		}
		return v, nil
	}
	cfg.Default = fv.Value
	return r.Driver.Input(ctx, cfg)
}

func (r *Runner) fieldView(name string) (field.View, error) {
	for _, fv := range r.Svc.View().Fields {
		if fv.Name == name {
			return fv, nil
		}
	}
	return field.View{}, fmt.Errorf("%w: %s", application.ErrUnknownField, name)
}

func (r *Runner) showNotices(ctx context.Context) error {
	for _, n := range r.Svc.View().Notices {
		if err := r.Driver.Info(ctx, n.Message); err != nil {
			return err
		}
	}
	return nil
}
