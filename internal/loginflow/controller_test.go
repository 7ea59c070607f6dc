package loginflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/and161185/allin/internal/authclient"
	"github.com/and161185/allin/internal/errs"
	"github.com/and161185/allin/internal/model"
	"github.com/and161185/allin/internal/tokenstore"
	"github.com/and161185/allin/internal/uistate"
	"github.com/and161185/allin/internal/validate"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeAuth struct {
	mu sync.Mutex

	register model.Result
	login    model.Result
	profile  model.Result

	// block, when set, holds Login until closed.
	block chan struct{}
	// entered is signalled once Login has been called.
	entered chan struct{}

	calls []string
	ui    *uistate.Store
	// stateAtProfile records the UI state seen when FetchProfile runs.
	stateAtProfile uistate.State
	attemptSeen    bool
}

var _ AuthAPI = (*fakeAuth)(nil)

func (f *fakeAuth) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeAuth) Register(ctx context.Context, username, password, emailID string) model.Result {
	f.record("register:" + username + ":" + emailID)
	_, f.attemptSeen = authclient.AttemptIDFromCtx(ctx)
	return f.register
}

func (f *fakeAuth) Login(ctx context.Context, emailID, password string) model.Result {
	f.record("login:" + emailID)
	_, f.attemptSeen = authclient.AttemptIDFromCtx(ctx)
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	return f.login
}

func (f *fakeAuth) FetchProfile(_ context.Context, emailID string) model.Result {
	f.record("profile:" + emailID)
	if f.ui != nil {
		f.stateAtProfile = f.ui.Snapshot()
	}
	return f.profile
}

type fakeTokens struct {
	tok  string
	ttl  int
	err  error
	sets int
}

func (f *fakeTokens) SetToken(tok string, ttlDays int) error {
	f.sets++
	if f.err != nil {
		return f.err
	}
	f.tok, f.ttl = tok, ttlDays
	return nil
}

func ok(body string) model.Result {
	return model.Result{OK: true, Status: 200, Data: json.RawMessage(body)}
}

func rejected(status int, body string) model.Result {
	return model.Result{OK: false, Status: status, Data: json.RawMessage(body), Err: errs.ErrAuth}
}

type harness struct {
	auth   *fakeAuth
	tokens *fakeTokens
	ui     *uistate.Store
	ctrl   *Controller
	phases []Phase
}

func newHarness(t *testing.T, auth *fakeAuth) *harness {
	t.Helper()
	h := &harness{auth: auth, tokens: &fakeTokens{}, ui: uistate.New()}
	auth.ui = h.ui
	h.ctrl = New(auth, h.tokens, h.ui,
		WithLogger(zaptest.NewLogger(t)),
		WithTokenTTLDays(3),
		WithPhaseHook(func(_, to Phase) { h.phases = append(h.phases, to) }),
	)
	return h
}

var goodLogin = Form{Email: "a@b.com", Password: "Aa12345x"}

func TestSubmit_LoginSuccess(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeAuth{
		login:   ok(`{"token":"T"}`),
		profile: ok(`{"username":"Jane"}`),
	})
	h.ui.OpenLogin()

	require.NoError(t, h.ctrl.Submit(context.Background(), goodLogin))

	require.Equal(t, []string{"login:a@b.com", "profile:a@b.com"}, h.auth.calls)
	require.True(t, h.auth.attemptSeen)
	require.Equal(t, "T", h.tokens.tok)
	require.Equal(t, 3, h.tokens.ttl)

	require.True(t, h.auth.stateAtProfile.ProfileLoading, "loading during profile fetch")
	require.False(t, h.auth.stateAtProfile.ShowLoginModal, "modal closed before profile fetch")

	st := h.ui.Snapshot()
	require.False(t, st.ProfileLoading)
	require.Equal(t, "Jane", st.Profile.Username())
	require.Empty(t, h.ctrl.ErrorMessage())
	require.Equal(t, PhaseIdle, h.ctrl.Phase())
	require.Equal(t, []Phase{PhaseValidating, PhaseSubmitting, PhaseTokenPersist, PhaseProfileFetching, PhaseIdle}, h.phases)
}

func TestSubmit_RegisterUsesName(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeAuth{
		register: ok(`{"token":"R"}`),
		profile:  ok(`{"username":"Jane Doe"}`),
	})
	require.Equal(t, ModeSignUp, h.ctrl.ToggleMode())

	err := h.ctrl.Submit(context.Background(), Form{Email: "j@d.io", Password: "Aa12345x", Name: "Jane Doe"})
	require.NoError(t, err)
	require.Equal(t, []string{"register:Jane Doe:j@d.io", "profile:j@d.io"}, h.auth.calls)
	require.Equal(t, "R", h.tokens.tok)
}

func TestSubmit_ValidationBlocksNetwork(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeAuth{})

	err := h.ctrl.Submit(context.Background(), Form{Email: "bad", Password: "short"})
	require.ErrorIs(t, err, errs.ErrValidation)
	var f *Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, validate.MsgEmailPassword, f.Message)
	require.Equal(t, validate.MsgEmailPassword, h.ctrl.ErrorMessage())
	require.Empty(t, h.auth.calls)
	require.Zero(t, h.tokens.sets)
	require.Equal(t, []Phase{PhaseValidating, PhaseFailed, PhaseIdle}, h.phases)
}

func TestSubmit_SignUpChecksName(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeAuth{})
	h.ctrl.ToggleMode()

	err := h.ctrl.Submit(context.Background(), Form{Email: "a@b.com", Password: "Aa12345x", Name: "123"})
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Equal(t, validate.MsgName, h.ctrl.ErrorMessage())
}

func TestSubmit_FailureMessagePriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  model.Result
		want string
	}{
		{"server message", rejected(401, `{"message":"bad creds"}`), "bad creds"},
		{"transport error", model.Result{Error: "network error: refused", Err: errs.ErrNetwork}, "network error: refused"},
		{"message beats error", model.Result{Data: json.RawMessage(`{"message":"m"}`), Error: "e"}, "m"},
		{"fallback", rejected(500, `{}`), FallbackMessage},
		{"non-string message falls through", model.Result{Data: json.RawMessage(`{"message":false}`), Error: "e"}, "e"},
		{"numeric message falls back", rejected(400, `{"message":0}`), FallbackMessage},
		{"numeric token is no token", ok(`{"token":123}`), FallbackMessage},
		{"ok without token", ok(`{"user":"x"}`), FallbackMessage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, &fakeAuth{login: tc.res})
			err := h.ctrl.Submit(context.Background(), goodLogin)
			require.ErrorIs(t, err, errs.ErrAuth)
			require.Equal(t, tc.want, err.Error())
			require.Equal(t, tc.want, h.ctrl.ErrorMessage())
			require.Zero(t, h.tokens.sets)
			require.Equal(t, uistate.State{}, h.ui.Snapshot())
			require.Equal(t, []Phase{PhaseValidating, PhaseSubmitting, PhaseFailed, PhaseIdle}, h.phases)
		})
	}
}

func TestSubmit_ProfileFailureClearsLoading(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeAuth{
		login:   ok(`{"token":"T"}`),
		profile: rejected(403, `{"message":"forbidden"}`),
	})

	var loading []bool
	uistate.Select(h.ui, uistate.ProfileLoading, func(v bool) { loading = append(loading, v) })

	require.NoError(t, h.ctrl.Submit(context.Background(), goodLogin))
	st := h.ui.Snapshot()
	require.False(t, st.ProfileLoading)
	require.Nil(t, st.Profile, "failed fetch never stores a profile")
	require.Equal(t, []bool{true, false}, loading)
}

func TestSubmit_ProfileFailureDropsPreviousProfile(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeAuth{
		login:   ok(`{"token":"A"}`),
		profile: ok(`{"username":"Alice"}`),
	})
	require.NoError(t, h.ctrl.Submit(context.Background(), goodLogin))
	require.Equal(t, "Alice", h.ui.Snapshot().Profile.Username())

	h.auth.login = ok(`{"token":"B"}`)
	h.auth.profile = rejected(500, `{"message":"boom"}`)
	require.NoError(t, h.ctrl.Submit(context.Background(), Form{Email: "bob@b.com", Password: "Aa12345x"}))

	require.Equal(t, "B", h.tokens.tok)
	require.Nil(t, h.auth.stateAtProfile.Profile, "reset before the second fetch")
	st := h.ui.Snapshot()
	require.False(t, st.ProfileLoading)
	require.Nil(t, st.Profile, "Alice's profile must not survive Bob's sign-in")
}

func TestSubmit_TokenPersistFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeAuth{login: ok(`{"token":"T"}`)})
	h.tokens.err = errors.New("disk full")

	err := h.ctrl.Submit(context.Background(), goodLogin)
	require.Error(t, err)
	require.NotEmpty(t, h.ctrl.ErrorMessage())
	require.Equal(t, []string{"login:a@b.com"}, h.auth.calls, "no profile fetch without a stored token")
	require.False(t, h.ui.Snapshot().ProfileLoading)
	require.Equal(t, PhaseIdle, h.ctrl.Phase())
}

func TestSubmit_RejectsReentrantSubmit(t *testing.T) {
	t.Parallel()
	auth := &fakeAuth{
		login:   ok(`{"token":"T"}`),
		profile: ok(`{"username":"Jane"}`),
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	h := newHarness(t, auth)
	h.ctrl = New(auth, h.tokens, h.ui)

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Submit(context.Background(), goodLogin) }()
	<-auth.entered

	require.Equal(t, PhaseSubmitting, h.ctrl.Phase())
	require.ErrorIs(t, h.ctrl.Submit(context.Background(), goodLogin), errs.ErrSubmitInProgress)

	close(auth.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, h.tokens.sets)
	require.Equal(t, PhaseIdle, h.ctrl.Phase())
}

func TestSubmit_ClearsPreviousError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeAuth{login: ok(`{"token":"T"}`), profile: ok(`{}`)})

	require.Error(t, h.ctrl.Submit(context.Background(), Form{Email: "bad", Password: "Aa12345x"}))
	require.Equal(t, validate.MsgEmail, h.ctrl.ErrorMessage())

	require.NoError(t, h.ctrl.Submit(context.Background(), goodLogin))
	require.Empty(t, h.ctrl.ErrorMessage())
}

func TestModeAndPhaseStrings(t *testing.T) {
	t.Parallel()
	require.Equal(t, "sign-in", ModeSignIn.String())
	require.Equal(t, "sign-up", ModeSignUp.String())
	require.Equal(t, "profile-fetching", PhaseProfileFetching.String())
	require.Equal(t, "phase(42)", Phase(42).String())

	c := New(&fakeAuth{}, &fakeTokens{}, uistate.New(), WithLogger(nil))
	require.Equal(t, ModeSignIn, c.Mode())
	c.ToggleMode()
	require.Equal(t, ModeSignUp, c.Mode())
	c.ToggleMode()
	require.Equal(t, ModeSignIn, c.Mode())
}

// TestSubmit_EndToEnd wires the real client and token store against a test server.
func TestSubmit_EndToEnd(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc(authclient.LoginPath, func(w http.ResponseWriter, r *http.Request) {
		var c model.Credentials
		_ = json.NewDecoder(r.Body).Decode(&c)
		if c.Password != "Aa12345x" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"bad creds"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"tok en/1"}`)
	})
	mux.HandleFunc(authclient.ProfilePath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok en/1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"unauthorized"}`)
			return
		}
		_, _ = io.WriteString(w, `{"username":"Jane"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := tokenstore.New(filepath.Join(t.TempDir(), "token"), false)
	client := authclient.New(srv.URL, store, authclient.WithLogger(zaptest.NewLogger(t)))
	ui := uistate.New()
	ctrl := New(client, store, ui, WithLogger(zaptest.NewLogger(t)))

	err := ctrl.Submit(context.Background(), Form{Email: "a@b.com", Password: "Wrong1234"})
	require.ErrorIs(t, err, errs.ErrAuth)
	require.Equal(t, "bad creds", ctrl.ErrorMessage())
	_, stored := store.Token()
	require.False(t, stored)

	require.NoError(t, ctrl.Submit(context.Background(), goodLogin))
	tok, stored := store.Token()
	require.True(t, stored)
	require.Equal(t, "tok en/1", tok)
	st := ui.Snapshot()
	require.Equal(t, "Jane", st.Profile.Username())
	require.False(t, st.ProfileLoading)
}
