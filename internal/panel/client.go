package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"vlessbot/internal/pkg/httpclient"
)

// Flow control mode assigned to every provisioned client.
const clientFlow = "xtls-rprx-vision"

// Per-client concurrent IP connection limit on the panel side.
const clientLimitIP = 2

// Client manages one authenticated session against a single 3x-ui panel.
// Instances are not safe for concurrent use: one instance, one login,
// sequential calls, then Close.
type Client struct {
	baseURL  string
	username string
	password string
	serverID string
	http     *httpclient.Client
	loggedIn bool
}

// NewClient builds a panel client for one server. When a PEM certificate
// named {serverID}.crt exists under certsDir it becomes the TLS trust
// anchor for this panel; otherwise verification is skipped, matching
// panels that serve self-signed certificates without published trust.
func NewClient(baseURL, username, password, serverID, certsDir string) *Client {
	hc := httpclient.New().
		WithTimeout(30 * time.Second).
		WithoutRetries().
		WithHeader("Accept", "application/json")

	certPath := filepath.Join(certsDir, serverID+".crt")
	if _, err := os.Stat(certPath); err == nil {
		hc.WithRootCertificate(certPath)
	} else {
		hc.WithInsecureSkipVerify()
	}

	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username: strings.TrimSpace(username),
		password: password,
		serverID: serverID,
		http:     hc,
	}
}

// apiResponse is the JSON envelope every panel endpoint answers with.
type apiResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

// Inbound is the descriptor of one listener on the panel. Settings and
// StreamSettings are nested JSON encoded as strings by the panel.
type Inbound struct {
	ID             int    `json:"id"`
	Port           int    `json:"port"`
	Protocol       string `json:"protocol"`
	Remark         string `json:"remark"`
	Settings       string `json:"settings"`
	StreamSettings string `json:"streamSettings"`
}

// InboundClient is one client entry inside an inbound's settings blob.
type InboundClient struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Flow       string `json:"flow"`
	LimitIP    int    `json:"limitIp"`
	TotalGB    int64  `json:"totalGB"`
	ExpiryTime int64  `json:"expiryTime"`
	Enable     bool   `json:"enable"`
	TgID       string `json:"tgId"`
	SubID      string `json:"subId"`
	Comment    string `json:"comment"`
	Reset      int    `json:"reset"`
}

type inboundSettings struct {
	Clients []InboundClient `json:"clients"`
}

// EnsureLogin lazily performs the credential login exactly once per
// client instance. Idempotent across repeated calls.
func (c *Client) EnsureLogin(ctx context.Context) error {
	if c.loggedIn {
		return nil
	}
	resp, err := c.http.Request().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": c.username,
			"password": c.password,
		}).
		Post(c.baseURL + "/login")
	if err != nil {
		return fmt.Errorf("panel login: %w", err)
	}

	var body apiResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return &ProtocolError{Op: "login", Excerpt: excerpt(resp.String())}
	}
	if resp.StatusCode() != 200 || !body.Success {
		return fmt.Errorf("%w: %s", ErrAuthentication, body.Msg)
	}
	c.loggedIn = true
	return nil
}

// AddClient provisions a new client on the inbound and returns its UUID.
// The UUID is generated locally so the caller can persist it without
// depending on the panel's response shape.
func (c *Client) AddClient(ctx context.Context, inboundID int, email string, ownerID int64, comment string, expiryDays int, subID string, trafficGB int) (string, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return "", err
	}

	clientUUID := uuid.NewString()
	entry := InboundClient{
		ID:         clientUUID,
		Email:      email,
		Flow:       clientFlow,
		LimitIP:    clientLimitIP,
		TotalGB:    gbToBytes(trafficGB),
		ExpiryTime: time.Now().UTC().Add(time.Duration(expiryDays) * 24 * time.Hour).UnixMilli(),
		Enable:     true,
		TgID:       strconv.FormatInt(ownerID, 10),
		SubID:      subID,
		Comment:    comment,
	}
	settings, _ := json.Marshal(inboundSettings{Clients: []InboundClient{entry}})

	resp, err := c.http.Request().
		SetContext(ctx).
		SetFormData(map[string]string{
			"id":       strconv.Itoa(inboundID),
			"settings": string(settings),
		}).
		Post(c.baseURL + "/panel/api/inbounds/addClient")
	if err != nil {
		return "", fmt.Errorf("panel addClient: %w", err)
	}
	if _, err := c.checkResponse(resp, "addClient"); err != nil {
		return "", err
	}
	return clientUUID, nil
}

// GetInbound fetches the inbound descriptor, used both for traffic-limit
// mutation and for connection link construction.
func (c *Client) GetInbound(ctx context.Context, inboundID int) (*Inbound, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return nil, err
	}
	resp, err := c.http.Request().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/panel/api/inbounds/get/%d", c.baseURL, inboundID))
	if err != nil {
		return nil, fmt.Errorf("panel getInbound: %w", err)
	}
	body, err := c.checkResponse(resp, "getInbound")
	if err != nil {
		return nil, err
	}

	var inbound Inbound
	if err := json.Unmarshal(body.Obj, &inbound); err != nil {
		return nil, &ProtocolError{Op: "getInbound", Excerpt: excerpt(string(body.Obj))}
	}
	return &inbound, nil
}

// ExtendClientExpiry adds extraDays to the stored expiry of the client
// identified by email, via read-modify-write against the inbound's client
// list. An unset or zero expiry becomes now+extraDays.
func (c *Client) ExtendClientExpiry(ctx context.Context, inboundID int, email string, extraDays int) error {
	entry, err := c.findClient(ctx, inboundID, email)
	if err != nil {
		return err
	}

	if entry.ExpiryTime == 0 {
		entry.ExpiryTime = time.Now().UTC().Add(time.Duration(extraDays) * 24 * time.Hour).UnixMilli()
	} else {
		entry.ExpiryTime += int64(extraDays) * 86400000
	}
	return c.updateClient(ctx, inboundID, entry)
}

// UpdateClientTrafficLimit replaces the client's total byte quota.
func (c *Client) UpdateClientTrafficLimit(ctx context.Context, inboundID int, email string, newTotalGB int) error {
	entry, err := c.findClient(ctx, inboundID, email)
	if err != nil {
		return err
	}
	entry.TotalGB = gbToBytes(newTotalGB)
	return c.updateClient(ctx, inboundID, entry)
}

// GetClientTraffic returns the client's downlink counter in bytes, which
// the billing model treats as used traffic.
func (c *Client) GetClientTraffic(ctx context.Context, email string) (int64, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return 0, err
	}
	resp, err := c.http.Request().
		SetContext(ctx).
		Get(c.baseURL + "/panel/api/inbounds/getClientTraffics/" + email)
	if err != nil {
		return 0, fmt.Errorf("panel getClientTraffics: %w", err)
	}
	body, err := c.checkResponse(resp, "getClientTraffics")
	if err != nil {
		return 0, err
	}

	var stats struct {
		Down int64 `json:"down"`
	}
	if len(body.Obj) > 0 && string(body.Obj) != "null" {
		if err := json.Unmarshal(body.Obj, &stats); err != nil {
			return 0, &ProtocolError{Op: "getClientTraffics", Excerpt: excerpt(string(body.Obj))}
		}
	}
	return stats.Down, nil
}

// ResetClientTraffic zeroes the panel-side usage counter. The local
// traffic_used value must be reset by the caller separately.
func (c *Client) ResetClientTraffic(ctx context.Context, inboundID int, email string) (bool, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return false, err
	}
	resp, err := c.http.Request().
		SetContext(ctx).
		Post(fmt.Sprintf("%s/panel/api/inbounds/%d/resetClientTraffic/%s", c.baseURL, inboundID, email))
	if err != nil {
		return false, fmt.Errorf("panel resetClientTraffic: %w", err)
	}
	if _, err := c.checkResponse(resp, "resetClientTraffic"); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteClientByEmail removes the client from the inbound.
func (c *Client) DeleteClientByEmail(ctx context.Context, inboundID int, email string) (bool, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return false, err
	}
	resp, err := c.http.Request().
		SetContext(ctx).
		Post(fmt.Sprintf("%s/panel/api/inbounds/%d/delClientByEmail/%s", c.baseURL, inboundID, email))
	if err != nil {
		return false, fmt.Errorf("panel delClientByEmail: %w", err)
	}
	body, err := c.checkResponse(resp, "delClientByEmail")
	if err != nil {
		return false, err
	}
	return body.Success, nil
}

// Backup downloads the panel's full configuration blob for operator use.
func (c *Client) Backup(ctx context.Context) ([]byte, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return nil, err
	}
	resp, err := c.http.Request().
		SetContext(ctx).
		Get(c.baseURL + "/panel/api/server/getConfigJson")
	if err != nil {
		return nil, fmt.Errorf("panel backup: %w", err)
	}
	body, err := c.checkResponse(resp, "getConfigJson")
	if err != nil {
		return nil, err
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(body.Obj, &pretty); err != nil {
		return nil, &ProtocolError{Op: "getConfigJson", Excerpt: excerpt(string(body.Obj))}
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	return out, nil
}

// Close releases the transport session. Safe to call multiple times.
func (c *Client) Close() {
	c.http.Raw().GetClient().CloseIdleConnections()
	c.loggedIn = false
}

func (c *Client) findClient(ctx context.Context, inboundID int, email string) (*InboundClient, error) {
	inbound, err := c.GetInbound(ctx, inboundID)
	if err != nil {
		return nil, err
	}

	var settings inboundSettings
	if err := json.Unmarshal([]byte(inbound.Settings), &settings); err != nil {
		return nil, &ProtocolError{Op: "getInbound", Excerpt: excerpt(inbound.Settings)}
	}
	for i := range settings.Clients {
		if settings.Clients[i].Email == email {
			return &settings.Clients[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrClientNotFound, email)
}

func (c *Client) updateClient(ctx context.Context, inboundID int, entry *InboundClient) error {
	settings, _ := json.Marshal(inboundSettings{Clients: []InboundClient{*entry}})
	resp, err := c.http.Request().
		SetContext(ctx).
		SetFormData(map[string]string{
			"id":       strconv.Itoa(inboundID),
			"settings": string(settings),
		}).
		Post(c.baseURL + "/panel/api/inbounds/updateClient/" + entry.ID)
	if err != nil {
		return fmt.Errorf("panel updateClient: %w", err)
	}
	_, err = c.checkResponse(resp, "updateClient")
	return err
}

// checkResponse is the single validation funnel for panel responses:
// a JSON content type and a success flag in the envelope are required.
func (c *Client) checkResponse(resp *resty.Response, op string) (*apiResponse, error) {
	contentType := strings.ToLower(resp.Header().Get("Content-Type"))
	if !strings.Contains(contentType, "application/json") {
		return nil, &ProtocolError{Op: op, Excerpt: excerpt(resp.String())}
	}

	var body apiResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, &ProtocolError{Op: op, Excerpt: excerpt(resp.String())}
	}
	if !body.Success {
		msg := body.Msg
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &ProvisioningError{Op: op, Msg: msg}
	}
	return &body, nil
}

func gbToBytes(gb int) int64 {
	return int64(gb) * 1024 * 1024 * 1024
}
