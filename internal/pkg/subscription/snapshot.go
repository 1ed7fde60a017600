package subscription

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/cache"
)

const snapshotTTL = 15 * time.Minute

// SnapshotStore mirrors user access cache rows into a fast store for hot
// read paths. Best effort: failures are logged, never propagated, because
// the DB row remains authoritative.
type SnapshotStore interface {
	Put(ua *models.UserAccess)
	Drop(userID uint)
}

type redisSnapshotStore struct{}

// NewRedisSnapshotStore mirrors snapshots into the shared Redis cache.
func NewRedisSnapshotStore() SnapshotStore {
	return &redisSnapshotStore{}
}

func snapshotKey(userID uint) string {
	return fmt.Sprintf("user_access:%d", userID)
}

func (s *redisSnapshotStore) Put(ua *models.UserAccess) {
	raw, err := json.Marshal(ua)
	if err != nil {
		return
	}
	if err := cache.Set(snapshotKey(ua.UserID), string(raw), snapshotTTL); err != nil {
		log.Warnf("access snapshot write for user %d failed: %v", ua.UserID, err)
	}
}

func (s *redisSnapshotStore) Drop(userID uint) {
	if err := cache.Delete(snapshotKey(userID)); err != nil {
		log.Warnf("access snapshot delete for user %d failed: %v", userID, err)
	}
}
