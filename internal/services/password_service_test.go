package services

import (
	"strings"
	"testing"

	"bankledger/internal/config"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

// PasswordServiceTestSuite defines the test suite for PasswordService
type PasswordServiceTestSuite struct {
	suite.Suite
	service PasswordServiceInterface
}

// SetupTest runs before each test
func (s *PasswordServiceTestSuite) SetupTest() {
	s.service = NewPasswordService(config.SecurityConfig{
		BCryptCost:          bcrypt.MinCost,
		PasswordMinLength:   8,
		RequireUppercase:    true,
		RequireLowercase:    true,
		RequireNumbers:      true,
		RequireSpecialChars: true,
	})
}

// TestPasswordServiceSuite runs the test suite
func TestPasswordServiceSuite(t *testing.T) {
	suite.Run(t, new(PasswordServiceTestSuite))
}

func (s *PasswordServiceTestSuite) TestValidatePassword() {
	tests := []struct {
		password string
		wantErr  error
	}{
		{"Secure1!", nil},
		{"", ErrPasswordEmpty},
		{"Sh0rt!", ErrPasswordTooShort},
		{strings.Repeat("Aa1!", 19), ErrPasswordTooLong},
		{"secure1!pass", ErrPasswordNoUppercase},
		{"SECURE1!PASS", ErrPasswordNoLowercase},
		{"Secure!pass", ErrPasswordNoNumber},
		{"Secure1pass", ErrPasswordNoSpecial},
	}

	for _, tt := range tests {
		err := s.service.ValidatePassword(tt.password)
		if tt.wantErr == nil {
			s.NoError(err, tt.password)
			continue
		}
		s.ErrorIs(err, tt.wantErr, tt.password)
	}
}

func (s *PasswordServiceTestSuite) TestValidatePassword_RelaxedPolicy() {
	service := NewPasswordService(config.SecurityConfig{PasswordMinLength: 4})

	s.NoError(service.ValidatePassword("abcd"))
	s.ErrorIs(service.ValidatePassword("abc"), ErrPasswordTooShort)
}

func (s *PasswordServiceTestSuite) TestHashAndCompare() {
	hash, err := s.service.HashPassword("Secure1!pass")
	s.Require().NoError(err)
	s.NotEqual("Secure1!pass", hash)

	s.True(s.service.ComparePassword("Secure1!pass", hash))
	s.False(s.service.ComparePassword("Secure1!pasS", hash))
	s.False(s.service.ComparePassword("Secure1!pass", "not-a-hash"))
}

func (s *PasswordServiceTestSuite) TestHashPassword_RejectsWeakPassword() {
	_, err := s.service.HashPassword("weak")
	s.ErrorIs(err, ErrPasswordTooShort)
}
