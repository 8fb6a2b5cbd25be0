package service

import (
	"bytes"
	"image/png"
	"net/url"
	"testing"

	"github.com/gameshub/uvlhub/database/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupCreatesSecretOnce(t *testing.T) {
	s := newTestServices(t)
	u := createUser(t, s, "ada@example.com", model.RoleStandard)

	first, err := s.TwoFactor.Setup(u)
	require.NoError(t, err)
	assert.Len(t, first.Secret, 32)
	assert.False(t, u.TwoFactorEnabled)

	uri, err := url.Parse(first.ProvisioningURI)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", uri.Scheme)
	assert.Equal(t, "totp", uri.Host)
	assert.Contains(t, uri.Path, "ada@example.com")
	assert.Equal(t, first.Secret, uri.Query().Get("secret"))

	reloaded, err := s.Users.GetById(u.Id)
	require.NoError(t, err)
	assert.Equal(t, first.Secret, reloaded.TotpSecret)
	assert.False(t, reloaded.TwoFactorEnabled)

	again, err := s.TwoFactor.Setup(reloaded)
	require.NoError(t, err)
	assert.Equal(t, first.Secret, again.Secret)

	_, err = s.TwoFactor.Setup(nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestConfirm(t *testing.T) {
	s := newTestServices(t)
	u := createUser(t, s, "ada@example.com", model.RoleStandard)

	assert.ErrorIs(t, s.TwoFactor.Confirm(u, "123456", testNow), ErrNotFound)
	assert.ErrorIs(t, s.TwoFactor.Confirm(nil, "123456", testNow), ErrUnauthorized)

	setup, err := s.TwoFactor.Setup(u)
	require.NoError(t, err)

	err = s.TwoFactor.Confirm(u, codeOutsideWindow(t, setup.Secret, testNow), testNow)
	assert.ErrorIs(t, err, ErrInvalidOtp)
	reloaded, err := s.Users.GetById(u.Id)
	require.NoError(t, err)
	assert.False(t, reloaded.TwoFactorEnabled)

	require.NoError(t, s.TwoFactor.Confirm(u, codeAt(t, setup.Secret, testNow), testNow))
	reloaded, err = s.Users.GetById(u.Id)
	require.NoError(t, err)
	assert.True(t, reloaded.TwoFactorEnabled)
}

func TestQRCode(t *testing.T) {
	s := newTestServices(t)
	u := createUser(t, s, "ada@example.com", model.RoleStandard)

	_, err := s.TwoFactor.QRCode(nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = s.TwoFactor.QRCode(u)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.TwoFactor.Setup(u)
	require.NoError(t, err)
	data, err := s.TwoFactor.QRCode(u)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestDisable(t *testing.T) {
	s := newTestServices(t)
	u := createUser(t, s, "ada@example.com", model.RoleStandard)
	enableTwoFactor(t, s, u)

	require.NoError(t, s.TwoFactor.Disable(u.Id))
	reloaded, err := s.Users.GetById(u.Id)
	require.NoError(t, err)
	assert.False(t, reloaded.TwoFactorEnabled)
	assert.Empty(t, reloaded.TotpSecret)

	result, err := s.Auth.Login("ada@example.com", "secret", false)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, result.State)

	assert.ErrorIs(t, s.TwoFactor.Disable(424242), ErrNotFound)
}

func TestValidateTOTP(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	assert.True(t, ValidateTOTP(secret, codeAt(t, secret, testNow), testNow))
	assert.False(t, ValidateTOTP(secret, codeOutsideWindow(t, secret, testNow), testNow))
	assert.False(t, ValidateTOTP("", "123456", testNow))
	assert.False(t, ValidateTOTP(secret, "12345", testNow))
	assert.False(t, ValidateTOTP("not base32!", "123456", testNow))
}
