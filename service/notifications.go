package service

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mouleshgs/onboardX/model"
)

// NotificationStore holds nudge records keyed by recipient. The store
// is append-only; marking as read is the only mutation and it never
// reverses.
type NotificationStore struct {
	mu            sync.RWMutex
	notifications map[string]*model.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		notifications: make(map[string]*model.Notification),
	}
}

// Append records a new notification, assigning id and timestamp.
func (s *NotificationStore) Append(n model.Notification) model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = uuid.New().String()
	n.CreatedAt = time.Now().UTC()
	n.Read = false
	s.notifications[n.ID] = &n
	return n
}

// ListByRecipient returns the recipient's notifications, newest first.
func (s *NotificationStore) ListByRecipient(email string) []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Notification
	for _, n := range s.notifications {
		if n.To == email {
			result = append(result, *n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// MarkRead flips the given notifications to read and reports how many
// records changed. Unknown ids are skipped.
func (s *NotificationStore) MarkRead(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, id := range ids {
		if n, ok := s.notifications[id]; ok && !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed
}
