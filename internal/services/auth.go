package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strconv"
	"strings"
	"time"

	"reviewhub/internal/models"
	"reviewhub/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const (
	MinPasswordLength = 8
	tokenIssuer       = "reviewhub"
)

// Claims represents the JWT claims for our application
type Claims struct {
	UserID uint        `json:"uid"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService verifies identities. It only issues and checks credentials; account
// management beyond register/login is out of its scope.
type AuthService struct {
	db          *gorm.DB
	secret      []byte
	tokenTTL    time.Duration
	adminEmails []string
	now         func() time.Time
}

func NewAuthService(db *gorm.DB, secret string, tokenTTL time.Duration, adminEmails []string) *AuthService {
	return &AuthService{
		db:          db,
		secret:      []byte(secret),
		tokenTTL:    tokenTTL,
		adminEmails: adminEmails,
		now:         time.Now,
	}
}

// Register creates an account. Emails listed as admin get the admin role.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, utils.NewValidationError("a valid email is required")
	}
	if len(password) < MinPasswordLength {
		return nil, utils.NewValidationError(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = strings.Split(email, "@")[0]
	}
	if len([]rune(username)) > 50 {
		return nil, utils.NewValidationError("username must be at most 50 characters")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, utils.NewInternalError("failed to hash password", err)
	}

	user := models.User{Username: username, Email: email, Password: hash, Role: models.RoleUser}
	if slices.Contains(s.adminEmails, email) {
		user.Role = models.RoleAdmin
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return utils.NewInternalError("failed to check email", err)
		}
		if count > 0 {
			return utils.NewConflictError("email already registered")
		}
		if err := tx.Create(&user).Error; err != nil {
			return utils.NewInternalError("failed to create user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.issue(&user)
}

// Login checks a password and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil && !isNotFound(err) {
		return nil, utils.NewInternalError("failed to load user", err)
	}
	if err != nil || !utils.CheckPassword(password, user.Password) {
		return nil, utils.NewUnauthorizedError("invalid email or password")
	}
	return s.issue(&user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, utils.NewInternalError("failed to sign token", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// GenerateToken creates a new JWT token for the given user
func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken validates the provided JWT token
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// UserByID loads the current user for a verified identity. The role always comes
// from the database, never from the token.
func (s *AuthService) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NewUnauthorizedError("account no longer exists")
		}
		return nil, utils.NewInternalError("failed to load user", err)
	}
	return &user, nil
}
