package auth

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sevakart/sevakart-backend/internal/referral"
	"github.com/sevakart/sevakart-backend/internal/users"
	pkgauth "github.com/sevakart/sevakart-backend/pkg/auth"
	"github.com/sevakart/sevakart-backend/pkg/config"
	"github.com/sevakart/sevakart-backend/pkg/db/models"
	"github.com/sevakart/sevakart-backend/pkg/enums"
	pkgerrors "github.com/sevakart/sevakart-backend/pkg/errors"
	"github.com/sevakart/sevakart-backend/pkg/logger"
)

type fakeReferrals struct {
	signupCalls []string
}

func (f *fakeReferrals) Apply(ctx context.Context, refereeID uuid.UUID, code string) (*models.Referral, error) {
	return nil, nil
}

func (f *fakeReferrals) ApplyOnSignup(ctx context.Context, refereeID uuid.UUID, code string) {
	f.signupCalls = append(f.signupCalls, code)
}

func (f *fakeReferrals) StatsByReferrer(ctx context.Context, referrerID uuid.UUID) (*referral.Stats, error) {
	return &referral.Stats{}, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:auth_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.Exec(`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'customer',
		is_active INTEGER NOT NULL DEFAULT 1,
		money_balance NUMERIC NOT NULL DEFAULT 0,
		coin_balance INTEGER NOT NULL DEFAULT 0,
		referral_code TEXT NOT NULL UNIQUE,
		referred_by TEXT,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`).Error
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret-test-secret-test-secret",
		Issuer:            "sevakart-test",
		ExpirationMinutes: 30,
	}
}

func newTestService(t *testing.T, db *gorm.DB, refs referral.Service) Service {
	t.Helper()
	usersRepo := users.NewRepository(db)
	usersSvc, err := users.NewService(usersRepo)
	if err != nil {
		t.Fatalf("users service: %v", err)
	}
	svc, err := NewService(Params{
		Users:     usersSvc,
		UsersRepo: usersRepo,
		Referrals: refs,
		JWT:       testJWTConfig(),
		Logger:    logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	refs := &fakeReferrals{}
	svc := newTestService(t, db, refs)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{
		Name:         "Asha",
		Email:        "Asha@Example.com",
		Password:     "correct horse battery",
		ReferralCode: "FRIEND99",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.AccessToken == "" {
		t.Fatal("no access token issued")
	}
	if session.User.Email != "asha@example.com" {
		t.Fatalf("email = %q, want lowercased", session.User.Email)
	}
	if session.User.ReferralCode == "" {
		t.Fatal("no referral code allocated")
	}
	if len(refs.signupCalls) != 1 || refs.signupCalls[0] != "FRIEND99" {
		t.Fatalf("signup referral calls = %v, want [FRIEND99]", refs.signupCalls)
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), session.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != session.User.ID || claims.Role != enums.UserRoleCustomer {
		t.Fatalf("claims = %v/%v, want %v/customer", claims.UserID, claims.Role, session.User.ID)
	}

	loggedIn, err := svc.Login(ctx, "asha@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.User.ID != session.User.ID {
		t.Fatalf("login user = %v, want %v", loggedIn.User.ID, session.User.ID)
	}

	var touched int64
	if err := db.Raw("SELECT COUNT(*) FROM users WHERE id = ? AND last_login_at IS NOT NULL", session.User.ID).Scan(&touched).Error; err != nil {
		t.Fatalf("read last login: %v", err)
	}
	if touched != 1 {
		t.Fatal("last_login_at not recorded")
	}
}

func TestRegisterWithoutReferralSkipsApply(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	refs := &fakeReferrals{}
	svc := newTestService(t, db, refs)

	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Ravi",
		Email:    "ravi@example.com",
		Password: "longenoughpassword",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(refs.signupCalls) != 0 {
		t.Fatalf("signup referral calls = %v, want none", refs.signupCalls)
	}
}

func TestRegisterShortPasswordRejected(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Ravi",
		Email:    "ravi@example.com",
		Password: "short",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	input := RegisterInput{Name: "Asha", Email: "asha@example.com", Password: "longenoughpassword"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{
		Name:     "Asha",
		Email:    "asha@example.com",
		Password: "longenoughpassword",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "asha@example.com", "wrong password"); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("wrong password err = %v, want unauthorized", err)
	}
	// Unknown account reads the same as a bad password.
	if _, err := svc.Login(ctx, "nobody@example.com", "whatever password"); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("unknown user err = %v, want unauthorized", err)
	}
}

func TestLoginDisabledAccountForbidden(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{
		Name:     "Asha",
		Email:    "asha@example.com",
		Password: "longenoughpassword",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := db.Exec("UPDATE users SET is_active = 0 WHERE id = ?", session.User.ID).Error; err != nil {
		t.Fatalf("disable account: %v", err)
	}

	if _, err := svc.Login(ctx, "asha@example.com", "longenoughpassword"); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}
