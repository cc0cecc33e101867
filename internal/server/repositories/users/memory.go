package users

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

// MemoryStore keeps users in process memory. Transactions run against a
// private copy and are merged back on success, so a failed unit of work
// leaves no trace.
type MemoryStore struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	users map[string]models.User
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]models.User), now: time.Now}
}

// Users returns a repository operating directly on the store.
func (s *MemoryStore) Users() Repository {
	return &MemoryRepository{mu: &s.mu, users: s.users, now: s.now}
}

// WithTx runs fn against a snapshot of the store. Records fn touched are
// written back only when fn returns nil. Transactions are serialised.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := maps.Clone(s.users)
	s.mu.RUnlock()

	tx := &MemoryRepository{mu: &sync.RWMutex{}, users: snapshot, now: s.now, dirty: map[string]struct{}{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range tx.dirty {
		u := snapshot[id]
		for otherID, other := range s.users {
			if otherID != id && strings.EqualFold(other.Email, u.Email) {
				return common.ErrorConflict
			}
		}
	}
	for id := range tx.dirty {
		s.users[id] = snapshot[id]
	}
	return nil
}

// MemoryRepository is a Repository over a map of users keyed by ID.
type MemoryRepository struct {
	mu    *sync.RWMutex
	users map[string]models.User
	now   func() time.Time
	dirty map[string]struct{}
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byEmail(email)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) Create(_ context.Context, nu models.NewUser) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail(nu.Email); ok {
		return nil, common.ErrorConflict
	}

	role := nu.Role
	if role == "" {
		role = common.DefaultRole
	}
	now := r.now().UTC()
	u := models.User{
		ID:           uuid.NewString(),
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		Phone:        nu.Phone,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.put(u)
	return &u, nil
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byEmail(email)
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = r.now().UTC()
	r.put(u)
	return nil
}

func (r *MemoryRepository) UpdateRefreshTokenHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.RefreshTokenHash = hash
	u.UpdatedAt = r.now().UTC()
	r.put(u)
	return nil
}

// SetActive flips the active flag. It exists for administration and tests;
// the auth flows never deactivate accounts.
func (r *MemoryRepository) SetActive(id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.IsActive = active
	r.put(u)
	return nil
}

func (r *MemoryRepository) byEmail(email string) (models.User, bool) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return models.User{}, false
}

func (r *MemoryRepository) put(u models.User) {
	r.users[u.ID] = u
	if r.dirty != nil {
		r.dirty[u.ID] = struct{}{}
	}
}
