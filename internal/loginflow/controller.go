// Package loginflow sequences one login or registration attempt: validation,
// credential submission, token persistence and the follow-up profile fetch.
package loginflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/and161185/allin/internal/authclient"
	"github.com/and161185/allin/internal/errs"
	"github.com/and161185/allin/internal/model"
	"github.com/and161185/allin/internal/uistate"
	"github.com/and161185/allin/internal/validate"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// FallbackMessage is shown when a failed attempt carries no better explanation.
const FallbackMessage = "Login failed. Please try again."

// Phase is the controller's position in the submit state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseSubmitting
	PhaseTokenPersist
	PhaseProfileFetching
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseSubmitting:
		return "submitting"
	case PhaseTokenPersist:
		return "token-persist"
	case PhaseProfileFetching:
		return "profile-fetching"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Mode selects between signing in and signing up.
type Mode int

const (
	ModeSignIn Mode = iota
	ModeSignUp
)

func (m Mode) String() string {
	if m == ModeSignUp {
		return "sign-up"
	}
	return "sign-in"
}

// AuthAPI is the subset of the auth client the controller needs.
type AuthAPI interface {
	Register(ctx context.Context, username, password, emailID string) model.Result
	Login(ctx context.Context, emailID, password string) model.Result
	FetchProfile(ctx context.Context, emailID string) model.Result
}

// TokenWriter persists a session token.
type TokenWriter interface {
	SetToken(tok string, ttlDays int) error
}

// Form carries the field values of one submit.
type Form struct {
	Email    string
	Password string
	Name     string // sign-up only
}

// Controller runs submit attempts against injected collaborators.
type Controller struct {
	auth    AuthAPI
	tokens  TokenWriter
	ui      *uistate.Store
	ttlDays int
	log     *zap.Logger
	onPhase func(from, to Phase)

	mu     sync.Mutex
	phase  Phase
	mode   Mode
	errMsg string
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.log = l } }

// WithTokenTTLDays sets the lifetime of persisted tokens; non-positive keeps the store default.
func WithTokenTTLDays(days int) Option { return func(c *Controller) { c.ttlDays = days } }

// WithPhaseHook registers fn to observe every phase transition.
func WithPhaseHook(fn func(from, to Phase)) Option { return func(c *Controller) { c.onPhase = fn } }

// New builds a controller in sign-in mode.
func New(auth AuthAPI, tokens TokenWriter, ui *uistate.Store, opts ...Option) *Controller {
	c := &Controller{auth: auth, tokens: tokens, ui: ui, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Mode returns the current form mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// ToggleMode switches between sign-in and sign-up and returns the new mode.
func (c *Controller) ToggleMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeSignIn {
		c.mode = ModeSignUp
	} else {
		c.mode = ModeSignIn
	}
	return c.mode
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// ErrorMessage returns the message of the last failed attempt, "" after a success.
func (c *Controller) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Submit runs one attempt to completion. It returns errs.ErrSubmitInProgress
// without side effects when another attempt is running. A failed attempt
// returns an error wrapping errs.ErrValidation or errs.ErrAuth whose text is
// the user facing message, also available from ErrorMessage.
func (c *Controller) Submit(ctx context.Context, f Form) error {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return errs.ErrSubmitInProgress
	}
	c.phase = PhaseValidating
	c.errMsg = ""
	mode := c.mode
	c.mu.Unlock()
	c.notify(PhaseIdle, PhaseValidating)

	attempt := uuid.Must(uuid.NewV4())
	ctx = authclient.WithAttemptID(ctx, attempt)
	log := c.log.With(zap.String("attempt", attempt.String()), zap.Stringer("mode", mode))

	if msg := validate.Check(f.Email, f.Password, f.Name, mode == ModeSignIn); msg != "" {
		log.Debug("validation failed", zap.String("message", msg))
		return c.fail(PhaseValidating, fmt.Errorf("%w: %s", errs.ErrValidation, msg), msg)
	}

	c.transition(PhaseValidating, PhaseSubmitting)
	var res model.Result
	if mode == ModeSignUp {
		res = c.auth.Register(ctx, f.Name, f.Password, f.Email)
	} else {
		res = c.auth.Login(ctx, f.Email, f.Password)
	}
	tok := res.Token()
	if !res.OK || tok == "" {
		msg := failureMessage(res)
		log.Info("submit rejected", zap.Int("status", res.Status), zap.Bool("ok", res.OK), zap.NamedError("cause", res.Err))
		return c.fail(PhaseSubmitting, fmt.Errorf("%w: %s", errs.ErrAuth, msg), msg)
	}

	c.transition(PhaseSubmitting, PhaseTokenPersist)
	if err := c.tokens.SetToken(tok, c.ttlDays); err != nil {
		log.Error("persist token", zap.Error(err))
		return c.fail(PhaseTokenPersist, fmt.Errorf("persist token: %w", err), "Could not save session. Please try again.")
	}

	c.transition(PhaseTokenPersist, PhaseProfileFetching)
	c.fetchProfile(ctx, log, f.Email)
	c.transition(PhaseProfileFetching, PhaseIdle)
	log.Info("signed in")
	return nil
}

// fetchProfile brackets the profile request with the loading flag so it is
// cleared on every path. The stored profile always belongs to the account
// that just signed in: it is reset before the request and only set on success.
func (c *Controller) fetchProfile(ctx context.Context, log *zap.Logger, email string) {
	c.ui.SetProfileLoading(true)
	defer c.ui.SetProfileLoading(false)
	c.ui.SetProfileData(nil)
	c.ui.CloseLogin()

	res := c.auth.FetchProfile(ctx, email)
	if p := model.NewProfile(res); p != nil {
		c.ui.SetProfileData(p)
		return
	}
	log.Warn("profile fetch failed",
		zap.Int("status", res.Status),
		zap.String("message", failureMessage(res)),
	)
}

// failureMessage picks the most specific explanation a result offers.
func failureMessage(r model.Result) string {
	if m := r.Message(); m != "" {
		return m
	}
	if r.Error != "" {
		return r.Error
	}
	return FallbackMessage
}

func (c *Controller) fail(from Phase, err error, msg string) error {
	c.setError(msg)
	c.transition(from, PhaseFailed)
	c.transition(PhaseFailed, PhaseIdle)
	return &Failure{Message: msg, Err: err}
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()
}

func (c *Controller) transition(from, to Phase) {
	c.mu.Lock()
	c.phase = to
	c.mu.Unlock()
	c.notify(from, to)
}

func (c *Controller) notify(from, to Phase) {
	c.log.Debug("phase", zap.Stringer("from", from), zap.Stringer("to", to))
	if c.onPhase != nil {
		c.onPhase(from, to)
	}
}

// Failure is returned by Submit for a rejected attempt.
type Failure struct {
	Message string // shown to the user
	Err     error
}

func (f *Failure) Error() string { return f.Message }
func (f *Failure) Unwrap() error { return f.Err }
