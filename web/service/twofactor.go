package service

import (
	"fmt"
	"time"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
	"github.com/xlzd/gotp"
)

const (
	totpPeriod = 30
	totpSkew   = 1
	qrCodeSize = 256
)

// TwoFactorSetup is what the user needs to register the account in an
// authenticator app.
type TwoFactorSetup struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
}

type TwoFactorService struct {
	users  *UserService
	issuer string
}

// NewTwoFactorService uses issuer in provisioning URIs.
func NewTwoFactorService(users *UserService, issuer string) *TwoFactorService {
	return &TwoFactorService{users: users, issuer: issuer}
}

// ValidateTOTP checks a 6-digit SHA1 code with a 30 second step, accepting
// the previous and next step. Malformed input is simply invalid.
func ValidateTOTP(secret, code string, at time.Time) bool {
	if secret == "" || len(code) != 6 {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		logger.Debug("totp validation failed:", err)
		return false
	}
	return ok
}

// Setup creates the account's secret on first use and returns it with its
// provisioning URI. Two-factor stays disabled until Confirm succeeds.
func (s *TwoFactorService) Setup(user *model.User) (*TwoFactorSetup, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	if !user.HasTotpSecret() {
		secret := gotp.RandomSecret(32)
		err := s.users.update(user.Id, map[string]any{
			"totp_secret":        secret,
			"two_factor_enabled": false,
		})
		if err != nil {
			return nil, fmt.Errorf("store totp secret: %w", err)
		}
		user.TotpSecret = secret
		user.TwoFactorEnabled = false
	}
	return &TwoFactorSetup{
		Secret:          user.TotpSecret,
		ProvisioningURI: s.provisioningURI(user),
	}, nil
}

func (s *TwoFactorService) provisioningURI(user *model.User) string {
	return gotp.NewDefaultTOTP(user.TotpSecret).ProvisioningUri(user.Email, s.issuer)
}

// QRCode renders the provisioning URI as a PNG.
func (s *TwoFactorService) QRCode(user *model.User) ([]byte, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}
	if !user.HasTotpSecret() {
		return nil, ErrNotFound
	}
	png, err := qrcode.Encode(s.provisioningURI(user), qrcode.Medium, qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

// Confirm enables two-factor when code matches the stored secret at now.
func (s *TwoFactorService) Confirm(user *model.User, code string, now time.Time) error {
	if user == nil {
		return ErrUnauthorized
	}
	if !user.HasTotpSecret() {
		return ErrNotFound
	}
	if !ValidateTOTP(user.TotpSecret, code, now) {
		return ErrInvalidOtp
	}
	if err := s.users.update(user.Id, map[string]any{"two_factor_enabled": true}); err != nil {
		return err
	}
	user.TwoFactorEnabled = true
	logger.Infof("two-factor enabled for user %d", user.Id)
	return nil
}

// Disable clears the secret and turns two-factor off.
func (s *TwoFactorService) Disable(userId int) error {
	err := s.users.update(userId, map[string]any{
		"totp_secret":        "",
		"two_factor_enabled": false,
	})
	if err != nil {
		return err
	}
	logger.Infof("two-factor disabled for user %d", userId)
	return nil
}
