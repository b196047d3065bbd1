package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"huddler.io/internal/mail"
	"huddler.io/internal/roles"
)

const (
	defaultIssuer    = "huddler"
	defaultTokenTTL  = time.Hour
	defaultInviteTTL = 72 * time.Hour

	setupPasswordPath = "/auth/setup-password"
)

// Service implements the identity provider operations on top of a Store.
type Service struct {
	store     Store
	mailer    mail.Mailer
	secret    []byte
	issuer    string
	tokenTTL  time.Duration
	inviteTTL time.Duration
	baseURL   string
	now       func() time.Time
}

// Option customizes the Service.
type Option func(*Service)

// WithIssuer overrides the JWT issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithTokenTTL sets the session token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithInviteTTL sets the invite token lifetime.
func WithInviteTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.inviteTTL = ttl
		}
	}
}

// WithMailer sets the mailer used for invite email.
func WithMailer(m mail.Mailer) Option {
	return func(s *Service) {
		if m != nil {
			s.mailer = m
		}
	}
}

// WithBaseURL sets the public origin used to build invite links.
func WithBaseURL(base string) Option {
	return func(s *Service) {
		s.baseURL = strings.TrimRight(base, "/")
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds an identity service. secret signs all tokens and must not
// be empty.
func NewService(store Store, secret string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("identity store is required")
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	s := &Service{
		store:     store,
		mailer:    mail.NewLogMailer(nil),
		secret:    []byte(secret),
		issuer:    defaultIssuer,
		tokenTTL:  defaultTokenTTL,
		inviteTTL: defaultInviteTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Session is the result of a successful authentication.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  *Identity `json:"identity"`
}

// Invitation is the result of inviting a new account.
type Invitation struct {
	Identity *Identity `json:"identity"`
	Token    string    `json:"-"`
	Link     string    `json:"-"`
}

// Create registers a new identity with the given credentials and metadata.
func (s *Service) Create(ctx context.Context, email, password string, metadata map[string]string) (*Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	metadata, err = normalizeMetadata(metadata)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	ident := &Identity{
		Email:     email,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, ident, hash); err != nil {
		return nil, err
	}
	return ident, nil
}

// Authenticate checks credentials and mints a session token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	ident, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	hash, err := s.store.PasswordHash(ctx, ident.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := VerifyPassword(hash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.signToken(ident.ID, TokenTypeSession, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, Identity: ident}, nil
}

// AuthenticateToken validates a session token and loads the identity fresh,
// so role changes take effect on the next request, not at next sign-in.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.parseToken(token, TokenTypeSession)
	if err != nil {
		return nil, err
	}
	ident, err := s.store.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return ident, nil
}

// Invite creates an identity without credentials and mails a setup-password
// link. redirectTo overrides the default setup path when non-empty.
func (s *Service) Invite(ctx context.Context, email string, metadata map[string]string, redirectTo string) (*Invitation, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	metadata, err = normalizeMetadata(metadata)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	ident := &Identity{
		Email:     email,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, ident, ""); err != nil {
		return nil, err
	}

	token, _, err := s.signToken(ident.ID, TokenTypeInvite, s.inviteTTL)
	if err != nil {
		return nil, err
	}
	link := s.inviteLink(token, redirectTo)
	if err := s.mailer.SendInvite(ctx, email, link); err != nil {
		return nil, fmt.Errorf("send invite: %w", err)
	}
	return &Invitation{Identity: ident, Token: token, Link: link}, nil
}

// SetupPassword exchanges an invite token for a first password. The token is
// only accepted while the account still has no credentials.
func (s *Service) SetupPassword(ctx context.Context, inviteToken, password string) (*Identity, error) {
	claims, err := s.parseToken(inviteToken, TokenTypeInvite)
	if err != nil {
		return nil, err
	}
	ident, err := s.store.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	current, err := s.store.PasswordHash(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	if current != "" {
		return nil, ErrInvalidToken
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.SetPasswordHash(ctx, ident.ID, hash); err != nil {
		return nil, err
	}
	return ident, nil
}

// Find loads an identity by id.
func (s *Service) Find(ctx context.Context, id string) (*Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidInput
	}
	return s.store.Find(ctx, id)
}

// List returns every identity.
func (s *Service) List(ctx context.Context) ([]*Identity, error) {
	return s.store.List(ctx)
}

// UpdateMetadata merges patch into the identity's metadata bag and persists
// the result. An empty value in patch deletes the key.
func (s *Service) UpdateMetadata(ctx context.Context, id string, patch map[string]string) (*Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidInput
	}
	patch, err := normalizeMetadata(patch)
	if err != nil {
		return nil, err
	}
	ident, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]string, len(ident.Metadata)+len(patch))
	for k, v := range ident.Metadata {
		merged[k] = v
	}
	for k, v := range patch {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	if err := s.store.UpdateMetadata(ctx, id, merged); err != nil {
		return nil, err
	}
	ident.Metadata = merged
	ident.UpdatedAt = s.now().UTC()
	return ident, nil
}

func (s *Service) inviteLink(token, redirectTo string) string {
	target := s.baseURL + setupPasswordPath
	if redirectTo != "" {
		target = redirectTo
	}
	return target + "?token=" + url.QueryEscape(token)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return "", fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return email, nil
}

// normalizeMetadata copies the bag and rejects an invalid role value so an
// unknown role can never be persisted.
func normalizeMetadata(metadata map[string]string) (map[string]string, error) {
	if len(metadata) == 0 {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	if raw, ok := out[roles.MetadataKey]; ok && raw != "" {
		role, valid := roles.Parse(raw)
		if !valid {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
		}
		out[roles.MetadataKey] = role.String()
	}
	return out, nil
}
