package service

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"vlessbot/internal/models"
	"vlessbot/internal/panel"
)

// realityStream is the slice of an inbound's streamSettings blob needed
// for link construction.
type realityStream struct {
	Network         string `json:"network"`
	Security        string `json:"security"`
	RealitySettings struct {
		Settings struct {
			PublicKey   string `json:"publicKey"`
			Fingerprint string `json:"fingerprint"`
			SpiderX     string `json:"spiderX"`
		} `json:"settings"`
		ServerNames []string `json:"serverNames"`
		ShortIDs    []string `json:"shortIds"`
	} `json:"realitySettings"`
}

// BuildVlessLink constructs the direct connection URI for a provisioned
// client from the inbound's transport and security parameters. When the
// stream settings cannot be parsed as a REALITY configuration, a minimal
// fallback link is produced so provisioning never fails on link cosmetics.
func BuildVlessLink(clientUUID, email string, server *models.Server, inbound *panel.Inbound) string {
	host := serverHost(server)
	remark := "Reality-" + email

	var stream realityStream
	if err := json.Unmarshal([]byte(inbound.StreamSettings), &stream); err != nil ||
		stream.Security != "reality" {
		return fmt.Sprintf("vless://%s@%s:%d?type=tcp&security=none#%s",
			clientUUID, host, inbound.Port, url.PathEscape(remark))
	}

	sni := ""
	if len(stream.RealitySettings.ServerNames) > 0 {
		sni = stream.RealitySettings.ServerNames[0]
	}
	sid := ""
	if len(stream.RealitySettings.ShortIDs) > 0 {
		sid = stream.RealitySettings.ShortIDs[0]
	}
	spx := stream.RealitySettings.Settings.SpiderX
	if spx == "" {
		spx = "/"
	}

	params := url.Values{}
	params.Set("type", stream.Network)
	params.Set("encryption", "none")
	params.Set("security", "reality")
	params.Set("pbk", stream.RealitySettings.Settings.PublicKey)
	params.Set("fp", stream.RealitySettings.Settings.Fingerprint)
	params.Set("sni", sni)
	params.Set("sid", sid)
	params.Set("spx", spx)
	params.Set("flow", "xtls-rprx-vision")

	return fmt.Sprintf("vless://%s@%s:%d?%s#%s",
		clientUUID, host, inbound.Port, params.Encode(), url.PathEscape(remark))
}

// BuildSubscriptionLink is the aggregation URL a client application polls
// for the current link set.
func BuildSubscriptionLink(server *models.Server, subID string) string {
	path := server.SubscriptionPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("http://%s:%s%s/%s", serverHost(server), server.SubscriptionPort, path, subID)
}

func serverHost(server *models.Server) string {
	u, err := url.Parse(server.PanelURL)
	if err != nil || u.Hostname() == "" {
		return strings.TrimPrefix(strings.TrimPrefix(server.PanelURL, "https://"), "http://")
	}
	return u.Hostname()
}
