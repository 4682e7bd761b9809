package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"vlessbot/internal/config"
	"vlessbot/internal/models"
)

type fakeUserDir struct {
	users map[string]*models.User
}

func (d *fakeUserDir) FindByID(tgID string) (*models.User, error) {
	user, ok := d.users[tgID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type fakeServerDir struct {
	servers map[string]*models.Server
}

func (d *fakeServerDir) FindByID(id string) (*models.Server, error) {
	server, ok := d.servers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return server, nil
}

func (d *fakeServerDir) FindActive() ([]models.Server, error) {
	var out []models.Server
	for _, s := range d.servers {
		if s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (d *fakeServerDir) FindByIDs(ids []string) (map[string]models.Server, error) {
	out := make(map[string]models.Server)
	for _, id := range ids {
		if s, ok := d.servers[id]; ok {
			out[id] = *s
		}
	}
	return out, nil
}

type fakeJobSubStore struct {
	subs          []models.Subscription
	markedExpiry  []string
	markedTraffic map[string]bool
	usageBatches  []map[string]int64
	resetAnchors  map[string]time.Time
	deleted       []string
}

func newFakeJobSubStore(subs ...models.Subscription) *fakeJobSubStore {
	return &fakeJobSubStore{
		subs:          subs,
		markedTraffic: make(map[string]bool),
		resetAnchors:  make(map[string]time.Time),
	}
}

func (s *fakeJobSubStore) FindActive() ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range s.subs {
		if sub.Active {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeJobSubStore) FindExpiredBefore(cutoff time.Time) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range s.subs {
		if sub.Expiry.Before(cutoff) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeJobSubStore) FindExpiringBetween(from, to time.Time) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range s.subs {
		if sub.Active && sub.Expiry.After(from) && !sub.Expiry.After(to) && !sub.NotifyExpirySent {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeJobSubStore) UpdateTrafficUsedBatch(usage map[string]int64) error {
	s.usageBatches = append(s.usageBatches, usage)
	return nil
}

func (s *fakeJobSubStore) ResetUsage(id string, anchor time.Time) error {
	s.resetAnchors[id] = anchor
	return nil
}

func (s *fakeJobSubStore) MarkExpiryNotified(id string) error {
	s.markedExpiry = append(s.markedExpiry, id)
	for i := range s.subs {
		if s.subs[i].ID == id {
			s.subs[i].NotifyExpirySent = true
		}
	}
	return nil
}

func (s *fakeJobSubStore) MarkTrafficNotified(id string, critical bool) error {
	s.markedTraffic[id] = critical
	return nil
}

func (s *fakeJobSubStore) Delete(id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type fakeNoopPurger struct{}

func (fakeNoopPurger) PurgeStale(cutoff time.Time) (int64, error) { return 0, nil }

type recordingSender struct {
	sent []string
	err  error
}

func (r *recordingSender) Send(chatID, text string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, chatID)
	return nil
}

func newTestScheduler(users *fakeUserDir, subs *fakeJobSubStore, sender *recordingSender) *Scheduler {
	cfg := &config.Config{
		Jobs: config.JobsConfig{
			ExpiryWarnDays:      3,
			ExpiredLookbackDays: 1,
		},
	}
	repos := &JobRepos{
		User:         users,
		Server:       &fakeServerDir{servers: map[string]*models.Server{}},
		Subscription: subs,
		Payment:      fakeNoopPurger{},
	}
	return New(cfg, repos, nil, sender, nil, zap.NewNop())
}

func expiringSub(id, owner string) models.Subscription {
	return models.Subscription{
		ID:       id,
		UserTgID: owner,
		ServerID: "de-1",
		Expiry:   time.Now().UTC().Add(24 * time.Hour),
		Active:   true,
	}
}

func TestNotifyExpiryOptedOutStaysUnflagged(t *testing.T) {
	users := &fakeUserDir{users: map[string]*models.User{
		"42": {TgID: "42", NotifyExpiry: false},
	}}
	subs := newFakeJobSubStore(expiringSub("sub-1", "42"))
	sender := &recordingSender{}
	s := newTestScheduler(users, subs, sender)

	s.notifyExpiry(context.Background())

	if len(sender.sent) != 0 {
		t.Errorf("sent %d alerts to an opted-out user, want 0", len(sender.sent))
	}
	if len(subs.markedExpiry) != 0 {
		t.Fatalf("flagged %v for an opted-out user, want none", subs.markedExpiry)
	}

	// Opting back in while the condition still holds must deliver the alert.
	users.users["42"].NotifyExpiry = true
	s.notifyExpiry(context.Background())

	if len(sender.sent) != 1 {
		t.Errorf("sent %d alerts after opt-in, want 1", len(sender.sent))
	}
	if len(subs.markedExpiry) != 1 || subs.markedExpiry[0] != "sub-1" {
		t.Errorf("flagged %v after opt-in, want [sub-1]", subs.markedExpiry)
	}
}

func TestNotifyExpirySendFailureStaysUnflagged(t *testing.T) {
	users := &fakeUserDir{users: map[string]*models.User{
		"42": {TgID: "42", NotifyExpiry: true},
	}}
	subs := newFakeJobSubStore(expiringSub("sub-1", "42"))
	sender := &recordingSender{err: errors.New("telegram down")}
	s := newTestScheduler(users, subs, sender)

	s.notifyExpiry(context.Background())

	if len(subs.markedExpiry) != 0 {
		t.Errorf("flagged %v after a failed send, want none so the next cycle retries", subs.markedExpiry)
	}
}

func TestNotifyTrafficCriticalMarksBothTiers(t *testing.T) {
	users := &fakeUserDir{users: map[string]*models.User{
		"42": {TgID: "42", NotifyTraffic: true},
	}}
	sub := expiringSub("sub-1", "42")
	sub.TrafficLimitGB = 100
	sub.TrafficUsedBytes = sub.TrafficLimitBytes() * 96 / 100
	subs := newFakeJobSubStore(sub)
	sender := &recordingSender{}
	s := newTestScheduler(users, subs, sender)

	s.notifyTraffic(context.Background())

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d alerts, want 1", len(sender.sent))
	}
	critical, ok := subs.markedTraffic["sub-1"]
	if !ok || !critical {
		t.Errorf("markedTraffic[sub-1] = %v,%v; want the critical tier, which sets both flags", critical, ok)
	}
}

func TestNotifyTrafficOptedOutStaysUnflagged(t *testing.T) {
	users := &fakeUserDir{users: map[string]*models.User{
		"42": {TgID: "42", NotifyTraffic: false},
	}}
	sub := expiringSub("sub-1", "42")
	sub.TrafficLimitGB = 100
	sub.TrafficUsedBytes = sub.TrafficLimitBytes() * 85 / 100
	subs := newFakeJobSubStore(sub)
	sender := &recordingSender{}
	s := newTestScheduler(users, subs, sender)

	s.notifyTraffic(context.Background())

	if len(sender.sent) != 0 {
		t.Errorf("sent %d alerts to an opted-out user, want 0", len(sender.sent))
	}
	if len(subs.markedTraffic) != 0 {
		t.Errorf("flagged %v for an opted-out user, want none", subs.markedTraffic)
	}
}
