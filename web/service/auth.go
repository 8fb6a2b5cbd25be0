package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/util/crypto"
	"github.com/gameshub/uvlhub/web/session"
)

type LoginState int

const (
	StateAuthenticated LoginState = iota
	StatePendingSecondFactor
)

func (s LoginState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StatePendingSecondFactor:
		return "pending_second_factor"
	}
	return "unknown"
}

// LoginResult is the outcome of a successful password check.
type LoginResult struct {
	State    LoginState
	User     *model.User
	Remember bool
}

// Pending builds the session marker for a StatePendingSecondFactor result.
func (r *LoginResult) Pending(now time.Time) session.PendingLogin {
	return session.PendingLogin{AccountId: r.User.Id, Remember: r.Remember, CreatedAt: now}
}

// SignupForm carries the fields of the signup page.
type SignupForm struct {
	Email       string `form:"email"`
	Password    string `form:"password"`
	Name        string `form:"name"`
	Surname     string `form:"surname"`
	Affiliation string `form:"affiliation"`
	Orcid       string `form:"orcid"`
}

type AuthService struct {
	users      *UserService
	pendingTTL time.Duration
}

func NewAuthService(users *UserService, pendingTTL time.Duration) *AuthService {
	return &AuthService{users: users, pendingTTL: pendingTTL}
}

func (s *AuthService) PendingTTL() time.Duration {
	return s.pendingTTL
}

// Login checks the password of the account registered under email. Unknown
// emails and wrong passwords both give ErrInvalidCredentials.
func (s *AuthService) Login(email, password string, remember bool) (*LoginResult, error) {
	user, err := s.users.GetByEmail(strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		crypto.CheckPasswordHash("", password)
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, err
	}
	if !crypto.CheckPasswordHash(user.Password, password) {
		logger.Debugf("wrong password for user %d", user.Id)
		return nil, ErrInvalidCredentials
	}

	result := &LoginResult{State: StateAuthenticated, User: user, Remember: remember}
	if user.TwoFactorEnabled {
		result.State = StatePendingSecondFactor
	}
	return result, nil
}

// VerifySecondFactor completes a pending login. A missing or expired marker
// gives ErrUnauthorized, a wrong code ErrInvalidOtp.
func (s *AuthService) VerifySecondFactor(pending *session.PendingLogin, code string, now time.Time) (*model.User, error) {
	if pending == nil || pending.Expired(now, s.pendingTTL) {
		return nil, ErrUnauthorized
	}
	user, err := s.users.GetById(pending.AccountId)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthorized
	} else if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled || !ValidateTOTP(user.TotpSecret, strings.TrimSpace(code), now) {
		return nil, ErrInvalidOtp
	}
	return user, nil
}

// Signup creates a standard account together with its profile.
func (s *AuthService) Signup(form SignupForm) (*model.User, error) {
	email := strings.TrimSpace(form.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email %q", ErrInvalidInput, email)
	}
	if strings.TrimSpace(form.Name) == "" || strings.TrimSpace(form.Surname) == "" {
		return nil, fmt.Errorf("%w: name and surname are required", ErrInvalidInput)
	}
	profile := &model.UserProfile{
		Name:        strings.TrimSpace(form.Name),
		Surname:     strings.TrimSpace(form.Surname),
		Affiliation: strings.TrimSpace(form.Affiliation),
		Orcid:       strings.TrimSpace(form.Orcid),
	}
	user, err := s.users.CreateUser(email, form.Password, model.DefaultRole, profile)
	if err != nil {
		return nil, err
	}
	logger.Infof("new account %d registered", user.Id)
	return user, nil
}
