// Package security は外部URLの取得と外部コンテンツの取り込みに関する安全対策を提供する。
package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var (
	// ErrInvalidURL はURLとして解釈できない、またはスキームが許可されていないことを表す。
	ErrInvalidURL = errors.New("security: invalid url")
	// ErrBlockedURL は内部ネットワーク宛てなど取得が禁止されたURLであることを表す。
	ErrBlockedURL = errors.New("security: blocked url")
)

var allowedSchemes = []string{"http", "https"}

// blockedNetworks は静的検証で拒否するアドレス範囲。
// 名前解決後のアドレスは safeurl のダイヤラーが検証する。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"100.64.0.0/10",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

var blockedHostnames = []string{"localhost", "metadata.google.internal"}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("security: invalid CIDR %s: %v", cidr, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// URLGuard は講座インポート時の外部URL取得を制限する。
type URLGuard struct {
	ports []int
}

// NewURLGuard は80/443番ポートのみを許可する URLGuard を生成する。
func NewURLGuard() *URLGuard {
	return &URLGuard{ports: []int{80, 443}}
}

// Client は内部アドレスへの接続をダイヤル時に拒否するHTTPクライアントを返す。
// DNSリバインディングで内部アドレスに解決された場合も接続しない。
func (g *URLGuard) Client(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.ports...).
		Build()
	return safeurl.Client(cfg).Client
}

// Validate は名前解決を行わずにURLを検証する。
// 形式不正とスキーム違反は ErrInvalidURL、内部アドレスとホスト名は ErrBlockedURL を返す。
func (g *URLGuard) Validate(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, n := range blockedNetworks {
			if n.Contains(ip) {
				return fmt.Errorf("%w: %s", ErrBlockedURL, ip)
			}
		}
		return nil
	}

	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	for _, blocked := range blockedHostnames {
		if lower == blocked || strings.HasSuffix(lower, "."+blocked) {
			return fmt.Errorf("%w: %s", ErrBlockedURL, host)
		}
	}
	return nil
}
