package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"credit-hub-system/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	// InvalidateChannel carries account IDs whose state changed; every
	// subscribed session drops its local copy and refetches.
	InvalidateChannel = "acct:invalidate"

	// AnnounceChannel carries megaphone-style global broadcasts.
	AnnounceChannel = "global:announce"

	mirrorTTL = 5 * time.Minute
)

func mirrorKey(accountID string) string { return "acct:mirror:" + accountID }

// SyncCoordinator owns the relationship between the store of record
// (Postgres) and the read mirror (Redis plus a per-process session
// cache). Writes go remote-first, then refresh the mirror, then
// broadcast an invalidation so other open sessions refetch instead of
// acting on stale state. The broadcast is at-most-effort: consistency of
// the record itself comes from the version CAS on the database row, the
// mirror is only ever a read accelerator.
type SyncCoordinator struct {
	DB  *gorm.DB
	RDB *redis.Client

	mu    sync.RWMutex
	local map[string]models.Account
}

func NewSyncCoordinator(db *gorm.DB, rdb *redis.Client) *SyncCoordinator {
	return &SyncCoordinator{
		DB:    db,
		RDB:   rdb,
		local: make(map[string]models.Account),
	}
}

// GetAccount prefers the session cache, then the shared mirror, then the
// store of record (populating both on the way out).
func (s *SyncCoordinator) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	s.mu.RLock()
	if acct, ok := s.local[accountID]; ok {
		s.mu.RUnlock()
		return &acct, nil
	}
	s.mu.RUnlock()

	raw, err := s.RDB.Get(ctx, mirrorKey(accountID)).Result()
	if err == nil {
		var acct models.Account
		if jsonErr := json.Unmarshal([]byte(raw), &acct); jsonErr == nil {
			s.storeLocal(&acct)
			return &acct, nil
		}
		// corrupt mirror entry: fall through to the record
	} else if err != redis.Nil {
		log.Printf("[SYNC] mirror read failed for %s: %v", accountID, err)
	}

	var acct models.Account
	if err := s.DB.WithContext(ctx).Where("id = ?", accountID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	s.WriteThrough(ctx, &acct)
	return &acct, nil
}

// WriteThrough refreshes the mirror and session cache after a committed
// write. Mirror failures are logged, never surfaced: the record already
// landed.
func (s *SyncCoordinator) WriteThrough(ctx context.Context, acct *models.Account) {
	s.storeLocal(acct)
	raw, err := json.Marshal(acct)
	if err != nil {
		log.Printf("[SYNC] marshal failed for %s: %v", acct.ID, err)
		return
	}
	if err := s.RDB.Set(ctx, mirrorKey(acct.ID), raw, mirrorTTL).Err(); err != nil {
		log.Printf("[SYNC] mirror write failed for %s: %v", acct.ID, err)
	}
}

// Invalidate broadcasts the account ID so other open sessions drop their
// cached copy. Fire-and-forget.
func (s *SyncCoordinator) Invalidate(ctx context.Context, accountID string) {
	if err := s.RDB.Publish(ctx, InvalidateChannel, accountID).Err(); err != nil {
		log.Printf("[SYNC] invalidation broadcast failed for %s: %v", accountID, err)
	}
}

// Announce publishes a global user-visible broadcast (megaphone).
func (s *SyncCoordinator) Announce(ctx context.Context, message string) {
	if err := s.RDB.Publish(ctx, AnnounceChannel, message).Err(); err != nil {
		log.Printf("[SYNC] announce failed: %v", err)
	}
}

// Evict removes the account from both cache layers (account deletion).
func (s *SyncCoordinator) Evict(ctx context.Context, accountID string) {
	s.DropLocal(accountID)
	if err := s.RDB.Del(ctx, mirrorKey(accountID)).Err(); err != nil {
		log.Printf("[SYNC] mirror evict failed for %s: %v", accountID, err)
	}
}

// DropLocal removes only the per-process cached copy; the invalidation
// worker calls this when another session broadcasts a change.
func (s *SyncCoordinator) DropLocal(accountID string) {
	s.mu.Lock()
	delete(s.local, accountID)
	s.mu.Unlock()
}

func (s *SyncCoordinator) storeLocal(acct *models.Account) {
	s.mu.Lock()
	s.local[acct.ID] = *acct
	s.mu.Unlock()
}
