package dns

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// UpdateClient sends RFC 2136 dynamic updates, optionally TSIG-signed.
type UpdateClient struct {
	Server     string // host:port of the primary
	Zone       string
	TTL        uint32
	TsigName   string
	TsigSecret string // base64, hmac-sha256
	Net        string // "udp" (default) or "tcp"
	Timeout    time.Duration
}

func (c *UpdateClient) record(ip, alias string) (*dns.A, error) {
	addr := net.ParseIP(ip).To4()
	if addr == nil {
		return nil, fmt.Errorf("rfc2136: %q is not an IPv4 address", ip)
	}
	return &dns.A{
		Hdr: dns.RR_Header{
			Name:   dns.Fqdn(alias),
			Rrtype: dns.TypeA,
			Class:  dns.ClassINET,
			Ttl:    c.TTL,
		},
		A: addr,
	}, nil
}

func (c *UpdateClient) exchange(ctx context.Context, m *dns.Msg) error {
	client := &dns.Client{Net: c.Net, Timeout: c.Timeout}
	if c.Timeout == 0 {
		client.Timeout = 5 * time.Second
	}
	if c.TsigName != "" {
		name := dns.Fqdn(c.TsigName)
		client.TsigSecret = map[string]string{name: c.TsigSecret}
		m.SetTsig(name, dns.HmacSHA256, 300, time.Now().Unix())
	}

	res, _, err := client.ExchangeContext(ctx, m, c.Server)
	if err != nil {
		return fmt.Errorf("rfc2136: exchange with %s: %w", c.Server, err)
	}
	if res.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("rfc2136: update refused: %s", dns.RcodeToString[res.Rcode])
	}
	return nil
}

// SetHost replaces the A RRset of alias with ip in one update.
func (c *UpdateClient) SetHost(ctx context.Context, ip, alias string) error {
	rr, err := c.record(ip, alias)
	if err != nil {
		return err
	}
	m := new(dns.Msg)
	m.SetUpdate(dns.Fqdn(c.Zone))
	m.RemoveRRset([]dns.RR{&dns.A{Hdr: dns.RR_Header{Name: rr.Hdr.Name, Rrtype: dns.TypeA}}})
	m.Insert([]dns.RR{rr})
	return c.exchange(ctx, m)
}

// RemoveHost deletes the single record alias -> ip.
// Deleting an absent RR is a no-op for the server, so ErrRecordAbsent is never returned.
func (c *UpdateClient) RemoveHost(ctx context.Context, ip, alias string) error {
	rr, err := c.record(ip, alias)
	if err != nil {
		return err
	}
	m := new(dns.Msg)
	m.SetUpdate(dns.Fqdn(c.Zone))
	m.Remove([]dns.RR{rr})
	return c.exchange(ctx, m)
}
