package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"vlessbot/internal/config"
	"vlessbot/internal/models"
	"vlessbot/internal/panel"
)

// UserStore is the slice of the user repository provisioning needs.
type UserStore interface {
	EnsureExists(tgID, username, firstName string) (*models.User, error)
	ZeroTrialDays(tgID string) error
}

// ServerStore resolves panel servers for placement and lookups.
type ServerStore interface {
	FindByID(id string) (*models.Server, error)
	FindFirstActive() (*models.Server, error)
}

// SubscriptionStore persists provisioned client records.
type SubscriptionStore interface {
	FindByIDAndOwner(id, userTgID string) (*models.Subscription, error)
	FindTrialsByUser(userTgID string) ([]models.Subscription, error)
	CountByUser(userTgID string) (int64, error)
	Create(sub *models.Subscription) error
	Update(id string, updates map[string]interface{}) error
	Delete(id string) error
}

// PanelClient is the slice of the panel client the provisioning service
// needs. Satisfied by *panel.Client; narrowed for tests.
type PanelClient interface {
	AddClient(ctx context.Context, inboundID int, email string, ownerID int64, comment string, expiryDays int, subID string, trafficGB int) (string, error)
	GetInbound(ctx context.Context, inboundID int) (*panel.Inbound, error)
	ExtendClientExpiry(ctx context.Context, inboundID int, email string, extraDays int) error
	UpdateClientTrafficLimit(ctx context.Context, inboundID int, email string, newTotalGB int) error
	GetClientTraffic(ctx context.Context, email string) (int64, error)
	ResetClientTraffic(ctx context.Context, inboundID int, email string) (bool, error)
	DeleteClientByEmail(ctx context.Context, inboundID int, email string) (bool, error)
	Backup(ctx context.Context) ([]byte, error)
	Close()
}

// PanelFactory opens a fresh panel client for one server. Each logical
// operation gets its own instance, used sequentially, then closed.
type PanelFactory func(server *models.Server) PanelClient

// NewPanelFactory builds the production factory over panel.NewClient.
func NewPanelFactory(certsDir string) PanelFactory {
	return func(server *models.Server) PanelClient {
		return panel.NewClient(server.PanelURL, server.PanelUsername, server.PanelPassword, server.ID, certsDir)
	}
}

// ProvisionResult is returned to the interactive path after a successful
// create or trial activation.
type ProvisionResult struct {
	Subscription     *models.Subscription
	VlessLink        string
	SubscriptionLink string
}

// ProvisioningService coordinates store writes with remote panel calls for
// subscription create, renew, delete, trial and traffic operations. Remote
// calls and local writes are not transactional across the boundary;
// divergence is logged rather than rolled back.
type ProvisioningService struct {
	users   UserStore
	servers ServerStore
	subs    SubscriptionStore
	panels  PanelFactory
	locker  *panel.InboundLocker
	trial   config.TrialConfig
	traffic config.TrafficConfig
	log     *zap.Logger
}

func NewProvisioningService(
	users UserStore,
	servers ServerStore,
	subs SubscriptionStore,
	panels PanelFactory,
	locker *panel.InboundLocker,
	trial config.TrialConfig,
	traffic config.TrafficConfig,
	log *zap.Logger,
) *ProvisioningService {
	return &ProvisioningService{
		users:   users,
		servers: servers,
		subs:    subs,
		panels:  panels,
		locker:  locker,
		trial:   trial,
		traffic: traffic,
		log:     log,
	}
}

// Create provisions a new subscription on the given server and returns its
// connection links. A remote success followed by a persistence failure is
// logged and surfaced as an error; the remote client is not compensated.
func (s *ProvisioningService) Create(ctx context.Context, userTgID, serverID string, durationDays, trafficGB int) (*ProvisionResult, error) {
	if durationDays <= 0 {
		return nil, ErrInvalidDuration
	}
	if trafficGB <= 0 {
		trafficGB = s.traffic.DefaultLimitGB
	}

	if _, err := s.users.EnsureExists(userTgID, "", ""); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	server, err := s.servers.FindByID(serverID)
	if err != nil {
		return nil, fmt.Errorf("find server: %w", err)
	}

	return s.create(ctx, userTgID, server, strconv.Itoa(durationDays), durationDays, trafficGB)
}

// create is shared by paid creation and fresh trial activation.
func (s *ProvisioningService) create(ctx context.Context, userTgID string, server *models.Server, baseTariff string, durationDays, trafficGB int) (*ProvisionResult, error) {
	count, err := s.subs.CountByUser(userTgID)
	if err != nil {
		return nil, fmt.Errorf("count subscriptions: %w", err)
	}
	email := fmt.Sprintf("%s_%s_%d", randomToken(3), userTgID, count+1)
	subID := randomToken(8)
	ownerID, _ := strconv.ParseInt(userTgID, 10, 64)

	unlock := s.locker.Lock(server.ID, server.InboundID)
	defer unlock()

	client := s.panels(server)
	defer client.Close()

	clientUUID, err := client.AddClient(ctx, server.InboundID, email, ownerID, server.Label(), durationDays, subID, trafficGB)
	if err != nil {
		return nil, fmt.Errorf("add client: %w", err)
	}
	inbound, err := client.GetInbound(ctx, server.InboundID)
	if err != nil {
		s.log.Error("client provisioned but inbound fetch failed, remote client may be orphaned",
			zap.String("server_id", server.ID),
			zap.String("email", email),
			zap.Error(err))
		return nil, fmt.Errorf("get inbound: %w", err)
	}

	now := time.Now().UTC()
	sub := &models.Subscription{
		ID:               clientUUID,
		UserTgID:         userTgID,
		ServerID:         server.ID,
		ClientEmail:      email,
		BaseTariff:       baseTariff,
		TrafficLimitGB:   trafficGB,
		Expiry:           now.Add(time.Duration(durationDays) * 24 * time.Hour),
		CreatedAt:        now,
		VlessLink:        BuildVlessLink(clientUUID, email, server, inbound),
		SubscriptionLink: BuildSubscriptionLink(server, subID),
		ClientSubID:      subID,
		Active:           true,
		Addons:           models.EncodeAddons(models.Addons{}),
	}
	if err := s.subs.Create(sub); err != nil {
		s.log.Error("client provisioned remotely but local persist failed",
			zap.String("server_id", server.ID),
			zap.String("email", email),
			zap.String("client_uuid", clientUUID),
			zap.Error(err))
		return nil, fmt.Errorf("persist subscription: %w", err)
	}

	s.log.Info("subscription created",
		zap.String("id", clientUUID),
		zap.String("user", userTgID),
		zap.String("server_id", server.ID),
		zap.Int("days", durationDays),
		zap.Int("traffic_gb", trafficGB))
	return &ProvisionResult{
		Subscription:     sub,
		VlessLink:        sub.VlessLink,
		SubscriptionLink: sub.SubscriptionLink,
	}, nil
}

// Renew extends a paid subscription by extraDays. Trial subscriptions are
// rejected outright. A renewal longer than a month seeds the monthly-reset
// anchor when none exists yet.
func (s *ProvisioningService) Renew(ctx context.Context, userTgID, subscriptionID string, extraDays int) error {
	if extraDays <= 0 {
		return ErrInvalidDuration
	}
	sub, err := s.subs.FindByIDAndOwner(subscriptionID, userTgID)
	if err != nil {
		return fmt.Errorf("find subscription: %w", err)
	}
	if sub.IsTrial() {
		return ErrTrialNotRenewable
	}
	server, err := s.servers.FindByID(sub.ServerID)
	if err != nil {
		return fmt.Errorf("find server: %w", err)
	}

	unlock := s.locker.Lock(server.ID, server.InboundID)
	defer unlock()

	client := s.panels(server)
	defer client.Close()
	if err := client.ExtendClientExpiry(ctx, server.InboundID, sub.ClientEmail, extraDays); err != nil {
		return fmt.Errorf("extend remote expiry: %w", err)
	}

	updates := map[string]interface{}{
		"expiry":             sub.Expiry.Add(time.Duration(extraDays) * 24 * time.Hour),
		"base_tariff":        strconv.Itoa(extraDays),
		"active":             true,
		"notify_expiry_sent": false,
	}
	if extraDays > 30 && sub.LastTrafficReset == nil {
		updates["last_traffic_reset"] = time.Now().UTC()
	}
	if err := s.subs.Update(sub.ID, updates); err != nil {
		s.log.Error("remote expiry extended but local update failed",
			zap.String("id", sub.ID), zap.Error(err))
		return fmt.Errorf("persist renewal: %w", err)
	}

	s.log.Info("subscription renewed",
		zap.String("id", sub.ID),
		zap.String("user", userTgID),
		zap.Int("extra_days", extraDays))
	return nil
}

// Delete removes the remote client first and the local row second. When
// remote deletion succeeds but the local delete fails the divergence is
// logged for manual cleanup.
func (s *ProvisioningService) Delete(ctx context.Context, userTgID, subscriptionID string) error {
	sub, err := s.subs.FindByIDAndOwner(subscriptionID, userTgID)
	if err != nil {
		return fmt.Errorf("find subscription: %w", err)
	}
	server, err := s.servers.FindByID(sub.ServerID)
	if err != nil {
		return fmt.Errorf("find server: %w", err)
	}

	client := s.panels(server)
	defer client.Close()
	if _, err := client.DeleteClientByEmail(ctx, server.InboundID, sub.ClientEmail); err != nil {
		return fmt.Errorf("delete remote client: %w", err)
	}
	if err := s.subs.Delete(sub.ID); err != nil {
		s.log.Error("remote client deleted but local row remains",
			zap.String("id", sub.ID), zap.Error(err))
		return fmt.Errorf("delete subscription row: %w", err)
	}

	s.log.Info("subscription deleted", zap.String("id", sub.ID), zap.String("user", userTgID))
	return nil
}

// randomToken returns n random bytes hex-encoded, used for client email
// prefixes and subscription identifiers.
func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf)
}
