package service

import (
	"net/url"
	"strings"
	"testing"

	"vlessbot/internal/models"
	"vlessbot/internal/panel"
)

func testServer() *models.Server {
	return &models.Server{
		ID:               "de-1",
		Country:          "Germany",
		City:             "Berlin",
		PanelURL:         "https://198.51.100.7:2053",
		SubscriptionPath: "/sub",
		SubscriptionPort: "2096",
	}
}

func TestBuildVlessLinkReality(t *testing.T) {
	inbound := &panel.Inbound{
		ID:   3,
		Port: 443,
		StreamSettings: `{
			"network": "tcp",
			"security": "reality",
			"realitySettings": {
				"settings": {"publicKey": "pbk-value", "fingerprint": "chrome", "spiderX": "/"},
				"serverNames": ["cdn.example.com"],
				"shortIds": ["ab12cd"]
			}
		}`,
	}

	link := BuildVlessLink("uuid-1", "ab12cd_42_1", testServer(), inbound)

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("link does not parse: %v", err)
	}
	if u.Scheme != "vless" {
		t.Errorf("scheme = %q, want vless", u.Scheme)
	}
	if u.User.Username() != "uuid-1" {
		t.Errorf("client uuid = %q, want uuid-1", u.User.Username())
	}
	if u.Host != "198.51.100.7:443" {
		t.Errorf("host = %q, want 198.51.100.7:443", u.Host)
	}

	q := u.Query()
	for key, want := range map[string]string{
		"type":       "tcp",
		"encryption": "none",
		"security":   "reality",
		"pbk":        "pbk-value",
		"fp":         "chrome",
		"sni":        "cdn.example.com",
		"sid":        "ab12cd",
		"spx":        "/",
		"flow":       "xtls-rprx-vision",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}
	if u.Fragment != "Reality-ab12cd_42_1" {
		t.Errorf("remark = %q, want Reality-ab12cd_42_1", u.Fragment)
	}
}

func TestBuildVlessLinkFallback(t *testing.T) {
	tests := []struct {
		name           string
		streamSettings string
	}{
		{"malformed settings", "not json"},
		{"non-reality security", `{"network":"ws","security":"tls"}`},
		{"empty settings", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inbound := &panel.Inbound{Port: 443, StreamSettings: tt.streamSettings}
			link := BuildVlessLink("uuid-1", "ab12cd_42_1", testServer(), inbound)

			if !strings.HasPrefix(link, "vless://uuid-1@198.51.100.7:443?") {
				t.Errorf("fallback link = %q, want vless://uuid-1@198.51.100.7:443?...", link)
			}
			if strings.Contains(link, "security=reality") {
				t.Errorf("fallback link %q must not claim reality security", link)
			}
		})
	}
}

func TestBuildSubscriptionLink(t *testing.T) {
	got := BuildSubscriptionLink(testServer(), "cafebabe")
	want := "http://198.51.100.7:2096/sub/cafebabe"
	if got != want {
		t.Errorf("BuildSubscriptionLink() = %q, want %q", got, want)
	}
}

func TestBuildSubscriptionLinkAddsLeadingSlash(t *testing.T) {
	server := testServer()
	server.SubscriptionPath = "sub"
	got := BuildSubscriptionLink(server, "cafebabe")
	if got != "http://198.51.100.7:2096/sub/cafebabe" {
		t.Errorf("BuildSubscriptionLink() = %q, want normalized path", got)
	}
}
