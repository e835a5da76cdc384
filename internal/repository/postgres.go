package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aicacia/go-auth/internal/domain"
)

// Compile-time interface assertions.
var (
	_ TenantRepository         = (*PostgresTenantRepo)(nil)
	_ UserRepository           = (*PostgresUserRepo)(nil)
	_ ServiceAccountRepository = (*PostgresServiceAccountRepo)(nil)
)

// PostgresTenantRepo implements TenantRepository on pgx.
type PostgresTenantRepo struct {
	db *pgxpool.Pool
}

func NewPostgresTenantRepo(pool *pgxpool.Pool) *PostgresTenantRepo {
	return &PostgresTenantRepo{db: pool}
}

const selectTenantSQL = `SELECT id, client_id, issuer, audience, algorithm, public_key, private_key,
	access_token_ttl_seconds, refresh_token_ttl_seconds, password_max_age_seconds, created_at, updated_at
FROM tenants `

func (r *PostgresTenantRepo) GetByID(ctx context.Context, tenantID int64) (domain.Tenant, error) {
	return r.scanTenant(ctx, selectTenantSQL+`WHERE id = $1`, tenantID)
}

func (r *PostgresTenantRepo) GetByClientID(ctx context.Context, clientID uuid.UUID) (domain.Tenant, error) {
	return r.scanTenant(ctx, selectTenantSQL+`WHERE client_id = $1`, clientID)
}

func (r *PostgresTenantRepo) scanTenant(ctx context.Context, sql string, arg any) (domain.Tenant, error) {
	var (
		t                                  domain.Tenant
		accessTTL, refreshTTL, passwordMax int64
	)
	row := r.db.QueryRow(ctx, sql, arg)
	if err := row.Scan(
		&t.ID,
		&t.ClientID,
		&t.Issuer,
		&t.Audience,
		&t.Algorithm,
		&t.PublicKey,
		&t.PrivateKey,
		&accessTTL,
		&refreshTTL,
		&passwordMax,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return domain.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	t.AccessTokenTTL = time.Duration(accessTTL) * time.Second
	t.RefreshTokenTTL = time.Duration(refreshTTL) * time.Second
	t.PasswordMaxAge = time.Duration(passwordMax) * time.Second
	return t, nil
}

// PostgresUserRepo implements UserRepository.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserSQL = `SELECT id, username, active, created_at, updated_at FROM users `

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	var u domain.User
	row := r.db.QueryRow(ctx, selectUserSQL+`WHERE id = $1`, userID)
	if err := row.Scan(&u.ID, &u.Username, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

const selectUserByIdentifierSQL = selectUserSQL + `WHERE username = $1
UNION
SELECT u.id, u.username, u.active, u.created_at, u.updated_at
FROM users u
JOIN user_emails e ON e.user_id = u.id
WHERE e.email = $1 AND (e."primary" OR e.verified)
LIMIT 1`

func (r *PostgresUserRepo) GetByIdentifier(ctx context.Context, identifier string) (domain.User, error) {
	var u domain.User
	row := r.db.QueryRow(ctx, selectUserByIdentifierSQL, identifier)
	if err := row.Scan(&u.ID, &u.Username, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, fmt.Errorf("get user by identifier: %w", err)
	}
	return u, nil
}

const selectActivePasswordSQL = `SELECT id, user_id, hash, active, created_at, updated_at
FROM user_passwords WHERE user_id = $1 AND active ORDER BY created_at DESC LIMIT 1`

func (r *PostgresUserRepo) GetActivePassword(ctx context.Context, userID int64) (domain.UserPassword, error) {
	var p domain.UserPassword
	row := r.db.QueryRow(ctx, selectActivePasswordSQL, userID)
	if err := row.Scan(&p.ID, &p.UserID, &p.Hash, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.UserPassword{}, fmt.Errorf("get active password: %w", err)
	}
	return p, nil
}

const selectMFASQL = `SELECT user_id, factor, created_at FROM user_mfas WHERE user_id = $1`

func (r *PostgresUserRepo) GetMFA(ctx context.Context, userID int64) (domain.UserMFA, error) {
	var m domain.UserMFA
	row := r.db.QueryRow(ctx, selectMFASQL, userID)
	if err := row.Scan(&m.UserID, &m.Factor, &m.CreatedAt); err != nil {
		return domain.UserMFA{}, fmt.Errorf("get user mfa: %w", err)
	}
	return m, nil
}

const selectActiveTOTPSQL = `SELECT id, user_id, secret, algorithm, digits, period, active, created_at
FROM user_totps WHERE user_id = $1 AND active LIMIT 1`

func (r *PostgresUserRepo) GetActiveTOTP(ctx context.Context, userID int64) (domain.UserTOTP, error) {
	var t domain.UserTOTP
	row := r.db.QueryRow(ctx, selectActiveTOTPSQL, userID)
	if err := row.Scan(&t.ID, &t.UserID, &t.Secret, &t.Algorithm, &t.Digits, &t.Period, &t.Active, &t.CreatedAt); err != nil {
		return domain.UserTOTP{}, fmt.Errorf("get user totp: %w", err)
	}
	return t, nil
}

const selectUserInfoSQL = `SELECT user_id, name, given_name, family_name, middle_name, nickname, picture,
	website, gender, birthdate, locale, zone_info, address, updated_at
FROM user_infos WHERE user_id = $1`

func (r *PostgresUserRepo) GetInfo(ctx context.Context, userID int64) (domain.UserInfo, error) {
	var i domain.UserInfo
	row := r.db.QueryRow(ctx, selectUserInfoSQL, userID)
	if err := row.Scan(
		&i.UserID,
		&i.Name,
		&i.GivenName,
		&i.FamilyName,
		&i.MiddleName,
		&i.Nickname,
		&i.Picture,
		&i.Website,
		&i.Gender,
		&i.Birthdate,
		&i.Locale,
		&i.ZoneInfo,
		&i.Address,
		&i.UpdatedAt,
	); err != nil {
		return domain.UserInfo{}, fmt.Errorf("get user info: %w", err)
	}
	return i, nil
}

const selectEmailsSQL = `SELECT id, user_id, email, "primary", verified, created_at
FROM user_emails WHERE user_id = $1 ORDER BY created_at`

func (r *PostgresUserRepo) ListEmails(ctx context.Context, userID int64) ([]domain.UserEmail, error) {
	rows, err := r.db.Query(ctx, selectEmailsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()
	var emails []domain.UserEmail
	for rows.Next() {
		var e domain.UserEmail
		if err := rows.Scan(&e.ID, &e.UserID, &e.Email, &e.Primary, &e.Verified, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

const selectPhoneNumbersSQL = `SELECT id, user_id, phone_number, "primary", verified, created_at
FROM user_phone_numbers WHERE user_id = $1 ORDER BY created_at`

func (r *PostgresUserRepo) ListPhoneNumbers(ctx context.Context, userID int64) ([]domain.UserPhoneNumber, error) {
	rows, err := r.db.Query(ctx, selectPhoneNumbersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list phone numbers: %w", err)
	}
	defer rows.Close()
	var phones []domain.UserPhoneNumber
	for rows.Next() {
		var p domain.UserPhoneNumber
		if err := rows.Scan(&p.ID, &p.UserID, &p.PhoneNumber, &p.Primary, &p.Verified, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan phone number: %w", err)
		}
		phones = append(phones, p)
	}
	return phones, rows.Err()
}

// PostgresServiceAccountRepo implements ServiceAccountRepository.
type PostgresServiceAccountRepo struct {
	db *pgxpool.Pool
}

func NewPostgresServiceAccountRepo(pool *pgxpool.Pool) *PostgresServiceAccountRepo {
	return &PostgresServiceAccountRepo{db: pool}
}

const selectServiceAccountSQL = `SELECT id, client_id, name, encrypted_secret, active, created_at, updated_at
FROM service_accounts `

func (r *PostgresServiceAccountRepo) GetByID(ctx context.Context, id int64) (domain.ServiceAccount, error) {
	return r.scan(ctx, selectServiceAccountSQL+`WHERE id = $1`, id)
}

func (r *PostgresServiceAccountRepo) GetByClientID(ctx context.Context, clientID uuid.UUID) (domain.ServiceAccount, error) {
	return r.scan(ctx, selectServiceAccountSQL+`WHERE client_id = $1`, clientID)
}

func (r *PostgresServiceAccountRepo) scan(ctx context.Context, sql string, arg any) (domain.ServiceAccount, error) {
	var sa domain.ServiceAccount
	row := r.db.QueryRow(ctx, sql, arg)
	if err := row.Scan(&sa.ID, &sa.ClientID, &sa.Name, &sa.EncryptedSecret, &sa.Active, &sa.CreatedAt, &sa.UpdatedAt); err != nil {
		return domain.ServiceAccount{}, fmt.Errorf("get service account: %w", err)
	}
	return sa, nil
}
