package cli

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-registration-form/internal/application"
	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	"github.com/oksasatya/go-registration-form/internal/domain/repository"
	"github.com/oksasatya/go-registration-form/internal/infrastructure/memory"
)

type stubDriver struct {
	inputs       []string
	passwords    []string
	confirm      []bool
	infoMessages []string
	inputPos     int
	passPos      int
	confirmPos   int
	abortInput   bool
}

func (s *stubDriver) Input(_ context.Context, _ InputConfig) (string, error) {
	if s.abortInput {
		return "", ErrAborted
	}
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Password(_ context.Context, _ InputConfig) (string, error) {
	if s.passPos >= len(s.passwords) {
		return "", errors.New("no password scripted")
	}
	val := s.passwords[s.passPos]
	s.passPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

type flakyRepo struct {
	failures int
	next     repository.UserRepository
}

func (r *flakyRepo) Append(ctx context.Context, u *entity.UserRecord) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("timeout")
	}
	return r.next.Append(ctx, u)
}

func newMountedService(t *testing.T, repo repository.UserRepository) *application.Service {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	drafts, err := application.NewDraftStore(memory.NewDraftStorage(), "")
	require.NoError(t, err)
	svc, err := application.NewService(repo, drafts, nil, logger)
	require.NoError(t, err)
	require.NoError(t, svc.Mount(context.Background()))
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func TestRunner_Submits(t *testing.T) {
	users := memory.NewUserRepository(nil)
	driver := &stubDriver{
		inputs:    []string{"Ada Lovelace", "ada@example.com"},
		passwords: []string{"Secret1!", "Secret1!"},
		confirm:   []bool{true},
	}
	rec, err := NewRunner(newMountedService(t, users), driver, false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", rec.Email)
	assert.Len(t, users.Records(), 1)
	assert.Contains(t, driver.infoMessages, "Registration successful!")
}

func TestRunner_RepromptsInvalidFields(t *testing.T) {
	users := memory.NewUserRepository(nil)
	driver := &stubDriver{
		inputs:    []string{"Ada 2", "Ada Lovelace", "ada@@example.com", "ada@example.com"},
		passwords: []string{"short", "Secret1!", "Secret1?", "Secret1!"},
		confirm:   []bool{true},
	}
	_, err := NewRunner(newMountedService(t, users), driver, false).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"  Full Name should not contain numbers or special characters",
		"  Invalid email address",
		"  Password must be at least 8 characters",
		"  Passwords must match",
		"Registration successful!",
	}, driver.infoMessages)
}

func TestRunner_RevealedSecretsUseInput(t *testing.T) {
	users := memory.NewUserRepository(nil)
	driver := &stubDriver{
		inputs:  []string{"Ada Lovelace", "ada@example.com", "Secret1!", "Secret1!"},
		confirm: []bool{true},
	}
	_, err := NewRunner(newMountedService(t, users), driver, true).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, driver.passPos)
}

func TestRunner_OffersRevealPerSecretField(t *testing.T) {
	users := memory.NewUserRepository(nil)
	driver := &stubDriver{
		inputs:    []string{"Ada Lovelace", "ada@example.com", "Secret1!"},
		passwords: []string{"Secret1!"},
		// Show password, keep confirmation masked, then submit.
		confirm: []bool{true, false, true},
	}
	svc := newMountedService(t, users)
	runner := NewRunner(svc, driver, false)
	runner.OfferReveal = true

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, driver.inputPos)
	assert.Equal(t, 1, driver.passPos)
	assert.Equal(t, 3, driver.confirmPos)
	require.Len(t, users.Records(), 1)

	for _, fv := range svc.View().Fields {
		switch fv.Name {
		case entity.FieldPassword:
			assert.True(t, fv.Revealed)
		case entity.FieldConfirmPassword:
			assert.False(t, fv.Revealed)
		}
	}
}

func TestRunner_RetriesAfterSubmissionFailure(t *testing.T) {
	users := memory.NewUserRepository(nil)
	driver := &stubDriver{
		// Second pass keeps the values: inputs default to them, empty
		// passwords keep the saved secret.
		inputs:    []string{"Ada Lovelace", "ada@example.com", "Ada Lovelace", "ada@example.com"},
		passwords: []string{"Secret1!", "Secret1!", "", ""},
		confirm:   []bool{true, true},
	}
	rec, err := NewRunner(newMountedService(t, &flakyRepo{failures: 1, next: users}), driver, false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Secret1!", users.Records()[0].Password)
	assert.NotEmpty(t, rec.ID)
	assert.Contains(t, driver.infoMessages, "Registration could not be saved, please try again.")
}

func TestRunner_Abort(t *testing.T) {
	driver := &stubDriver{abortInput: true}
	_, err := NewRunner(newMountedService(t, memory.NewUserRepository(nil)), driver, false).Run(context.Background())
	assert.ErrorIs(t, err, ErrAborted)
}

func TestRunner_Declined(t *testing.T) {
	users := memory.NewUserRepository(nil)
	driver := &stubDriver{
		inputs:    []string{"Ada Lovelace", "ada@example.com"},
		passwords: []string{"Secret1!", "Secret1!"},
		confirm:   []bool{false},
	}
	_, err := NewRunner(newMountedService(t, users), driver, false).Run(context.Background())
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Empty(t, users.Records())
}
