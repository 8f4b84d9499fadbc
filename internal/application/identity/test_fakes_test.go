package identity

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/civitas-platform/identity-service/internal/audit"
	"github.com/civitas-platform/identity-service/internal/domain"
)

/*
Fakes for ports
*/

type fakeUserRepo struct {
	mu sync.Mutex

	byID    map[string]domain.User
	byEmail map[string]domain.User

	// injected errors (if set, method returns error)
	getByIDErr    error
	getByEmailErr error
	createErr     error
	setResetErr   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    map[string]domain.User{},
		byEmail: map[string]domain.User{},
	}
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getByEmailErr != nil {
		return domain.User{}, f.getByEmailErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getByIDErr != nil {
		return domain.User{}, f.getByIDErr
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return domain.User{}, f.createErr
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return domain.User{}, domain.ErrEmailAlreadyExists()
	}
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUserRepo) SetResetToken(ctx context.Context, userID, token string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setResetErr != nil {
		return f.setResetErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	exp := expires
	u.ResetToken = token
	u.ResetTokenExpires = &exp
	f.byID[userID] = u
	f.byEmail[u.Email] = u
	return nil
}

// ConsumeResetToken mirrors the store contract: token equality plus an
// expiry strictly after now, then both fields cleared.
func (f *fakeUserRepo) ConsumeResetToken(ctx context.Context, token string, now time.Time) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, u := range f.byID {
		if u.ResetToken != token || u.ResetTokenExpires == nil {
			continue
		}
		if !u.ResetTokenExpires.After(now) {
			continue
		}
		u.ResetToken = ""
		u.ResetTokenExpires = nil
		f.byID[id] = u
		f.byEmail[u.Email] = u
		return u, nil
	}
	return domain.User{}, domain.ErrResetTokenInvalid()
}

type fakeDirectory struct {
	mu sync.Mutex

	createErr error
	authErr   error
	setPwdErr error

	created   []DirectoryUser
	auths     []struct{ login, password string }
	passwords map[string]string // login -> current password
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{passwords: map[string]string{}}
}

func (f *fakeDirectory) CreateUser(ctx context.Context, u DirectoryUser) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, u)
	f.passwords[u.Email] = u.Password
	return "uid=" + u.UID + ",ou=users,dc=test,dc=local", nil
}

func (f *fakeDirectory) AuthenticateByEmail(ctx context.Context, login, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.auths = append(f.auths, struct{ login, password string }{login, password})
	if f.authErr != nil {
		return f.authErr
	}
	if pw, ok := f.passwords[strings.ToLower(login)]; ok && pw == password {
		return nil
	}
	return domain.ErrInvalidCredentials()
}

func (f *fakeDirectory) SetPasswordByEmail(ctx context.Context, login, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setPwdErr != nil {
		return f.setPwdErr
	}
	f.passwords[strings.ToLower(login)] = newPassword
	return nil
}

type fakeSigner struct {
	signErr error
	signed  []TokenClaims
}

func (f *fakeSigner) SignAccessToken(claims TokenClaims, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	f.signed = append(f.signed, claims)
	return "token-for-" + claims.UserID, nil
}

func (f *fakeSigner) VerifyAccessToken(token string) (TokenClaims, error) {
	return TokenClaims{}, domain.ErrTokenInvalid()
}

type fakeSessions struct {
	mu sync.Mutex

	createErr  error
	getErr     error
	destroyErr error
	bySID      map[string]Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{bySID: map[string]Session{}}
}

func (f *fakeSessions) Create(ctx context.Context, s Session, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return "", f.createErr
	}
	sid := "sid-" + s.UserID
	f.bySID[sid] = s
	return sid, nil
}

func (f *fakeSessions) Get(ctx context.Context, sid string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return Session{}, f.getErr
	}
	s, ok := f.bySID[sid]
	if !ok {
		return Session{}, domain.ErrSessionMissing()
	}
	return s, nil
}

func (f *fakeSessions) Destroy(ctx context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.destroyErr != nil {
		return f.destroyErr
	}
	delete(f.bySID, sid)
	return nil
}

type fakeNotifications struct {
	mu        sync.Mutex
	createErr error
	created   []struct{ userID, kind, body string }
}

func (f *fakeNotifications) Create(ctx context.Context, userID, kind, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, struct{ userID, kind, body string }{userID, kind, body})
	return nil
}

type fakePublisher struct {
	mu sync.Mutex

	resetErr error

	signIns []SignInEvent
	resets  []PasswordResetEvent
	changes []PasswordChangedEvent
}

func (f *fakePublisher) PublishSignInNotice(ctx context.Context, evt SignInEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signIns = append(f.signIns, evt)
	return nil
}

func (f *fakePublisher) PublishPasswordReset(ctx context.Context, evt PasswordResetEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets = append(f.resets, evt)
	return nil
}

func (f *fakePublisher) PublishPasswordChanged(ctx context.Context, evt PasswordChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, evt)
	return nil
}

func (f *fakePublisher) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resets)
}

/*
Builder + assertions
*/

func newSvcForTest(t *testing.T) (*Service, *fakeUserRepo, *fakeDirectory, *fakeSigner, *fakeSessions, *fakeNotifications, *fakePublisher) {
	t.Helper()

	users := newFakeUserRepo()
	dir := newFakeDirectory()
	signer := &fakeSigner{}
	sessions := newFakeSessions()
	notifs := &fakeNotifications{}
	pub := &fakePublisher{}

	cfg := Config{
		AccessTTL:            24 * time.Hour,
		SessionTTL:           24 * time.Hour,
		PasswordResetTTL:     time.Hour,
		PasswordResetBaseURL: "https://fe/reset?token=",
	}

	svc := NewService(users, dir, signer, sessions, notifs, pub, audit.New(zerolog.Nop()), zerolog.Nop(), cfg)
	return svc, users, dir, signer, sessions, notifs, pub
}

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code=%q, got nil", code)
	}
	if !domain.Is(err, code) {
		t.Fatalf("expected code=%q, got err=%v", code, err)
	}
}

func seedUser(users *fakeUserRepo, dir *fakeDirectory, id, email, password string, roleID int) domain.User {
	u := domain.User{
		ID:        id,
		Email:     email,
		FirstName: "Ada",
		LastName:  "Lovelace",
		RoleID:    roleID,
	}
	users.byID[id] = u
	users.byEmail[email] = u
	if dir != nil {
		dir.passwords[email] = password
	}
	return u
}
