package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/repository"
	"github.com/fastygo/foodbridge/usecase"
)

const minPasswordLength = 8

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   *Tokens
	notifier usecase.Notifier
	conns    usecase.Disconnector
	cost     int
	now      func() time.Time
	logger   *zap.Logger
}

func New(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *Tokens,
	notifier usecase.Notifier,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = usecase.NopNotifier{}
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		notifier: notifier,
		conns:    usecase.NopDisconnector,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		logger:   logger,
	}
}

// WithDisconnector closes the websocket connections of a session on logout.
func (uc *UseCase) WithDisconnector(d usecase.Disconnector) *UseCase {
	if d != nil {
		uc.conns = d
	}
	return uc
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (uc *UseCase) WithHashCost(cost int) *UseCase {
	uc.cost = cost
	return uc
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Role     domain.Role
	Profile  json.RawMessage
}

type LoginResult struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Register creates an unverified account and queues it for admin review.
func (uc *UseCase) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, domain.Validation("password must be at least %d characters", minPasswordLength)
	}
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return nil, domain.Validation("fullName is required")
	}
	switch in.Role {
	case domain.RoleDonor, domain.RoleNGO, domain.RoleVolunteer:
	case domain.RoleAdmin:
		return nil, domain.Validation("admin accounts cannot self-register")
	default:
		return nil, domain.Validation("unknown role %q", in.Role)
	}

	if len(in.Profile) == 0 {
		return nil, domain.Validation("%s profile is required", in.Role)
	}
	profile, err := domain.DecodeProfile(in.Role, in.Profile)
	if err != nil {
		return nil, err
	}
	if vp, ok := profile.(domain.VolunteerProfile); ok {
		vp.CompletedTasks = 0
		profile = vp
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), uc.cost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     name,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         in.Role,
		Profile:      profile,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	uc.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	uc.notifyAdmins(ctx, user)
	uc.notifier.Record(ctx, domain.Event{
		AggregateID: user.ID,
		Kind:        domain.AggregateUser,
		Name:        domain.EventUserRegistered,
		ActorID:     user.ID,
		Metadata:    map[string]string{"role": string(user.Role)},
	})
	return user, nil
}

// EnsureAdmin creates a verified admin when no account uses the email yet.
func (uc *UseCase) EnsureAdmin(ctx context.Context, email, password, fullName string) (*domain.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	existing, err := uc.users.GetByEmail(ctx, normalized)
	if err == nil {
		if existing.Role != domain.RoleAdmin {
			return nil, domain.Validation("bootstrap email %s belongs to a %s account", normalized, existing.Role)
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, domain.Validation("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), uc.cost)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(fullName) == "" {
		fullName = "Administrator"
	}
	admin := &domain.User{
		ID:           uuid.NewString(),
		Email:        normalized,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         domain.RoleAdmin,
		IsVerified:   true,
	}
	if err := uc.users.Create(ctx, admin); err != nil {
		return nil, err
	}
	uc.logger.Info("bootstrap admin created", zap.String("user_id", admin.ID))
	return admin, nil
}

// Login checks the password, opens a session and signs a token bound to it.
func (uc *UseCase) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	user, err := uc.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	now := uc.now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.tokens.TTL()),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	token, err := uc.tokens.Issue(session)
	if err != nil {
		_ = uc.sessions.Delete(ctx, session.ID)
		return nil, err
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Logout revokes the caller's session; the token stops working immediately.
func (uc *UseCase) Logout(ctx context.Context, actor *domain.Actor) error {
	if actor == nil || actor.SessionID == "" {
		return domain.ErrUnauthenticated
	}
	if err := uc.sessions.Delete(ctx, actor.SessionID); err != nil {
		return err
	}
	uc.conns.DisconnectSession(actor.SessionID)
	return nil
}

func (uc *UseCase) Me(ctx context.Context, actor *domain.Actor) (*domain.User, error) {
	if actor == nil || actor.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return uc.users.GetByID(ctx, actor.UserID)
}

// Authenticate resolves a bearer token into an Actor. The verification flag is read
// from storage so an admin's decision applies without a new login.
func (uc *UseCase) Authenticate(ctx context.Context, raw string) (*domain.Actor, error) {
	if raw == "" {
		return nil, domain.ErrUnauthenticated
	}
	claims, err := uc.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}

	session, err := uc.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	if session.UserID != claims.UserID || session.IsExpired(uc.now()) {
		return nil, domain.ErrUnauthenticated
	}

	user, err := uc.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	return &domain.Actor{
		UserID:     user.ID,
		Role:       user.Role,
		IsVerified: user.IsVerified,
		SessionID:  session.ID,
	}, nil
}

func (uc *UseCase) notifyAdmins(ctx context.Context, user *domain.User) {
	var notes []domain.Notification
	for offset := 0; ; offset += repository.MaxLimit {
		admins, err := uc.users.List(ctx, repository.UserFilter{
			Role:   domain.RoleAdmin,
			Limit:  repository.MaxLimit,
			Offset: offset,
		})
		if err != nil {
			uc.logger.Error("list admins failed", zap.Error(err))
			break
		}
		for _, admin := range admins {
			notes = append(notes, domain.Notification{
				UserID:    admin.ID,
				Title:     "New registration awaiting verification",
				Message:   fmt.Sprintf("%s registered as %s.", user.FullName, user.Role),
				Kind:      domain.NotifyUserRegistered,
				RelatedID: user.ID,
			})
		}
		if len(admins) < repository.MaxLimit {
			break
		}
	}
	uc.notifier.Notify(ctx, notes...)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.Validation("invalid email address")
	}
	return email, nil
}
