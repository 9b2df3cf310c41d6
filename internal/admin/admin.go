package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rpsarena/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound     = errors.New("admin account not found")
	ErrInvalidToken = errors.New("invalid token")
)

// Store keeps operator accounts and their audit trail
type Store interface {
	Get(ctx context.Context, username string) (*models.AdminAccount, error)
	Upsert(ctx context.Context, acct models.AdminAccount) error
	LogAction(ctx context.Context, entry models.AdminAudit) error
	Audit(ctx context.Context, limit, offset int) ([]models.AdminAudit, error)
}

// HashToken bcrypt-hashes a plain admin token
func HashToken(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(h), nil
}

// VerifyAdminToken checks if the provided token matches the stored hash
func VerifyAdminToken(hashedToken, plainToken string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedToken), []byte(plainToken)) == nil
}

// CreateAdminAccount creates or replaces an admin (used for seeding)
func CreateAdminAccount(ctx context.Context, s Store, username, displayName, plainToken string) error {
	if username == "" || plainToken == "" {
		return fmt.Errorf("username and token are required")
	}
	hash, err := HashToken(plainToken)
	if err != nil {
		return err
	}
	return s.Upsert(ctx, models.AdminAccount{
		Username:    username,
		DisplayName: displayName,
		TokenHash:   hash,
	})
}

// ValidateAdmin validates a username + token pair
func ValidateAdmin(ctx context.Context, s Store, username, token string) (*models.AdminAccount, error) {
	acct, err := s.Get(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Printf("[ADMIN] No admin account found for: %s", username)
			return nil, err
		}
		log.Printf("[ADMIN] Store error: %v", err)
		return nil, fmt.Errorf("admin store: %w", err)
	}

	if !VerifyAdminToken(acct.TokenHash, token) {
		log.Printf("[ADMIN] Token verification failed for: %s", username)
		return nil, ErrInvalidToken
	}
	return acct, nil
}

// LogAdminAction records an admin action in the audit log
func LogAdminAction(ctx context.Context, s Store, username, ip, route, action string, details map[string]interface{}, success bool) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		log.Printf("[ADMIN] Failed to marshal audit details: %v", err)
		detailsJSON = []byte("{}")
	}

	err = s.LogAction(ctx, models.AdminAudit{
		AdminUsername: username,
		IP:            ip,
		Route:         route,
		Action:        action,
		Details:       detailsJSON,
		Success:       success,
	})
	if err != nil {
		log.Printf("[ADMIN] Failed to log admin action: %v", err)
	}
	return err
}

// PostgresStore is the admin Store used with the postgres ledger
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Get(ctx context.Context, username string) (*models.AdminAccount, error) {
	var acct models.AdminAccount
	err := p.db.GetContext(ctx, &acct, `SELECT username, display_name, token_hash, created_at, updated_at FROM admin_accounts WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (p *PostgresStore) Upsert(ctx context.Context, acct models.AdminAccount) error {
	_, err := p.db.NamedExecContext(ctx, `
		INSERT INTO admin_accounts (username, display_name, token_hash, created_at, updated_at)
		VALUES (:username, :display_name, :token_hash, NOW(), NOW())
		ON CONFLICT (username) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			token_hash = EXCLUDED.token_hash,
			updated_at = NOW()
	`, acct)
	return err
}

func (p *PostgresStore) LogAction(ctx context.Context, entry models.AdminAudit) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO admin_audit (admin_username, ip, route, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, entry.AdminUsername, entry.IP, entry.Route, entry.Action, []byte(entry.Details), entry.Success)
	return err
}

func (p *PostgresStore) Audit(ctx context.Context, limit, offset int) ([]models.AdminAudit, error) {
	var logs []models.AdminAudit
	err := p.db.SelectContext(ctx, &logs, `
		SELECT id, admin_username, ip, route, action, details, success, created_at
		FROM admin_audit
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return logs, err
}

// MemoryStore backs admin auth when the ledger runs in memory
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]models.AdminAccount
	audit    []models.AdminAudit
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]models.AdminAccount)}
}

func (m *MemoryStore) Get(_ context.Context, username string) (*models.AdminAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &acct, nil
}

func (m *MemoryStore) Upsert(_ context.Context, acct models.AdminAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if old, ok := m.accounts[acct.Username]; ok {
		acct.CreatedAt = old.CreatedAt
	} else {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now
	m.accounts[acct.Username] = acct
	return nil
}

func (m *MemoryStore) LogAction(_ context.Context, entry models.AdminAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = len(m.audit) + 1
	entry.CreatedAt = time.Now()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *MemoryStore) Audit(_ context.Context, limit, offset int) ([]models.AdminAudit, error) {
	m.mu.Lock()
	out := append([]models.AdminAudit(nil), m.audit...)
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
