package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-router"
)

type fakeRequest struct {
	ctx     context.Context
	cookies map[string]string
	set     []*router.Cookie
}

func newFakeRequest() *fakeRequest {
	return &fakeRequest{ctx: context.Background(), cookies: map[string]string{}}
}

func (r *fakeRequest) Context() context.Context { return r.ctx }

func (r *fakeRequest) Cookies(key string, defaultValue ...string) string {
	if v, ok := r.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (r *fakeRequest) Cookie(c *router.Cookie) {
	r.set = append(r.set, c)
	r.cookies[c.Name] = c.Value
}

type storedAccount struct {
	account  Account
	password string
	logins   []ExternalLoginInfo
}

type fakeStore struct {
	mu        sync.Mutex
	seq       int
	accounts  map[string]*storedAccount
	tokens    map[string]string // token -> purpose|accountID
	calls     []string
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: map[string]*storedAccount{},
		tokens:   map[string]string{},
	}
}

func (s *fakeStore) call(name string) {
	s.calls = append(s.calls, name)
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *fakeStore) CreateAccount(_ context.Context, account *Account, password string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.call("CreateAccount")
	if s.createErr != nil {
		return Result{}, s.createErr
	}
	return s.create(account, password, nil), nil
}

// create runs with mu held. login, when set, is stored with the account.
func (s *fakeStore) create(account *Account, password string, login *ExternalLoginInfo) Result {
	for _, a := range s.accounts {
		if strings.EqualFold(a.account.Email, account.Email) {
			return Failed(ResultError{
				Code:        "DuplicateEmail",
				Description: fmt.Sprintf("Email '%s' is already taken.", account.Email),
			})
		}
	}
	if password != "" && len(password) < 8 {
		return Failed(ResultError{Code: "PasswordTooShort", Description: "Passwords must be at least 8 characters."})
	}
	s.seq++
	account.ID = fmt.Sprintf("acc-%d", s.seq)
	account.HasPassword = password != ""
	stored := &storedAccount{account: *account, password: password}
	if login != nil {
		stored.logins = append(stored.logins, *login)
	}
	s.accounts[account.ID] = stored
	return Success()
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.call("FindByID")
	if a, ok := s.accounts[id]; ok {
		acc := a.account
		return &acc, nil
	}
	return nil, ErrAccountNotFound
}

func (s *fakeStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.call("FindByEmail")
	for _, a := range s.accounts {
		if strings.EqualFold(a.account.Email, email) {
			acc := a.account
			return &acc, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *fakeStore) issue(purpose string, account *Account) string {
	s.seq++
	token := fmt.Sprintf("%s-token-%d", purpose, s.seq)
	s.tokens[token] = purpose + "|" + account.ID
	return token
}

func (s *fakeStore) redeem(purpose string, account *Account, token string) bool {
	owner, ok := s.tokens[token]
	if !ok || owner != purpose+"|"+account.ID {
		return false
	}
	delete(s.tokens, token)
	return true
}

func (s *fakeStore) GenerateEmailConfirmationToken(_ context.Context, account *Account) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.call("GenerateEmailConfirmationToken")
	return s.issue("confirm", account), nil
}

func (s *fakeStore) ConfirmEmail(_ context.Context, account *Account, token string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.call("ConfirmEmail")
	if !s.redeem("confirm", account, token) {
		return Failed(ResultError{Code: "InvalidToken", Description: "Invalid token."}), nil
	}
	s.accounts[account.ID].account.EmailConfirmed = true
	return Success(), nil
}

func (s *fakeStore) GeneratePasswordResetToken(_ context.Context, account *Account) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.call("GeneratePasswordResetToken")
	return s.issue("reset", account), nil
}

func (s *fakeStore) ResetPassword(_ context.Context, account *Account, token, password string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.call("ResetPassword")
	if !s.redeem("reset", account, token) {
		return Failed(ResultError{Code: "InvalidToken", Description: "Invalid token."}), nil
	}
	s.accounts[account.ID].password = password
	return Success(), nil
}

func (s *fakeStore) AddExternalLogin(_ context.Context, account *Account, info *ExternalLoginInfo) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.call("AddExternalLogin")
	if s.accountForLogin(info.Provider, info.ProviderKey) != nil {
		return loginTaken(), nil
	}
	stored := s.accounts[account.ID]
	stored.logins = append(stored.logins, *info)
	return Success(), nil
}

func (s *fakeStore) CreateExternalAccount(_ context.Context, account *Account, info *ExternalLoginInfo) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.call("CreateExternalAccount")
	if s.createErr != nil {
		return Result{}, s.createErr
	}
	if s.accountForLogin(info.Provider, info.ProviderKey) != nil {
		return loginTaken(), nil
	}
	return s.create(account, "", info), nil
}

func loginTaken() Result {
	return Failed(ResultError{Code: "LoginAlreadyAssociated", Description: "A user with this login already exists."})
}

func (s *fakeStore) accountForLogin(provider, key string) *Account {
	for _, a := range s.accounts {
		for _, l := range a.logins {
			if l.Provider == provider && l.ProviderKey == key {
				acc := a.account
				return &acc
			}
		}
	}
	return nil
}

type signInCall struct {
	accountID  string
	persistent bool
}

type fakeSigner struct {
	store       *fakeStore
	maxFailures int
	failures    map[string]int
	signIns     []signInCall
	signOuts    int
	info        *ExternalLoginInfo
	infoErr     error
	challenges  []string
	tokenSaves  int
	providers   []ExternalProvider
}

func newFakeSigner(store *fakeStore) *fakeSigner {
	return &fakeSigner{
		store:       store,
		maxFailures: 3,
		failures:    map[string]int{},
		providers:   []ExternalProvider{{Name: "google", DisplayName: "Google"}},
	}
}

func (f *fakeSigner) PasswordSignIn(_ Request, email, password string, persistent, lockoutOnFailure bool) (SignInResult, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var stored *storedAccount
	for _, a := range f.store.accounts {
		if strings.EqualFold(a.account.Email, email) {
			stored = a
		}
	}
	if stored == nil {
		return SignInFailed, nil
	}
	if f.failures[stored.account.ID] >= f.maxFailures {
		return SignInLockedOut, nil
	}
	if stored.password != password {
		if lockoutOnFailure {
			f.failures[stored.account.ID]++
			if f.failures[stored.account.ID] >= f.maxFailures {
				return SignInLockedOut, nil
			}
		}
		return SignInFailed, nil
	}
	f.failures[stored.account.ID] = 0
	f.signIns = append(f.signIns, signInCall{accountID: stored.account.ID, persistent: persistent})
	return SignInSucceeded, nil
}

func (f *fakeSigner) SignIn(_ Request, account *Account, persistent bool) error {
	f.signIns = append(f.signIns, signInCall{accountID: account.ID, persistent: persistent})
	return nil
}

func (f *fakeSigner) SignOut(Request) error {
	f.signOuts++
	return nil
}

func (f *fakeSigner) ExternalChallenge(_ Request, provider, callbackURL string) (string, error) {
	for _, p := range f.providers {
		if p.Name == provider {
			f.challenges = append(f.challenges, callbackURL)
			return "https://provider.example/authorize?provider=" + provider, nil
		}
	}
	return "", ErrProviderNotFound
}

func (f *fakeSigner) ExternalLoginInfo(Request) (*ExternalLoginInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	if f.info == nil {
		return nil, nil
	}
	info := *f.info
	return &info, nil
}

func (f *fakeSigner) ExternalLoginSignIn(_ Request, provider, key string, persistent bool) (SignInResult, error) {
	f.store.mu.Lock()
	account := f.store.accountForLogin(provider, key)
	f.store.mu.Unlock()
	if account == nil {
		return SignInFailed, nil
	}
	f.signIns = append(f.signIns, signInCall{accountID: account.ID, persistent: persistent})
	return SignInSucceeded, nil
}

func (f *fakeSigner) UpdateExternalTokens(Request, *ExternalLoginInfo) error {
	f.tokenSaves++
	return nil
}

func (f *fakeSigner) ExternalProviders() []ExternalProvider {
	return f.providers
}

type sentEmail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentEmail
	err  error
}

func (m *fakeMailer) SendEmail(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

type recordingSink struct {
	events []ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, e ActivityEvent) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []ActivityEventType {
	out := make([]ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}

var errBoom = errors.New("boom")

type flowFixture struct {
	store  *fakeStore
	signer *fakeSigner
	mailer *fakeMailer
	sink   *recordingSink
	flow   *AccountFlow
}

func newFlowFixture(opts ...FlowOption) *flowFixture {
	store := newFakeStore()
	signer := newFakeSigner(store)
	mailer := &fakeMailer{}
	sink := &recordingSink{}

	base := []FlowOption{
		WithFlowLogger(silentLogger{}),
		WithActivitySink(sink),
		WithBaseURL("https://app.example"),
	}

	flow, err := NewAccountFlow(store, signer, mailer, append(base, opts...)...)
	if err != nil {
		panic(err)
	}

	return &flowFixture{
		store:  store,
		signer: signer,
		mailer: mailer,
		sink:   sink,
		flow:   flow,
	}
}

func (fx *flowFixture) seed(email, password string) *Account {
	account := NewAccount(email, "")
	res, err := fx.store.CreateAccount(context.Background(), account, password)
	if err != nil || !res.Succeeded() {
		panic(fmt.Sprintf("seed failed: %v %v", err, res.Descriptions()))
	}
	fx.store.calls = nil
	return account
}
