// Package advert decodes and produces peer advertisements, the
// out-of-band bootstrap codes (QR payloads, share links, pasted strings)
// used to introduce two nodes to each other.
//
// Three encodings are recognized, tried in order:
//  1. JSON: {"node_id":..,"address":..,"port":..,"public_key":..,
//     "capabilities":[..],"timestamp":..}
//  2. URI:  crumb://host:port?key=<pk>&capabilities=a,b&ts=<epoch>
//  3. Pipe: nodeId|address|port|publicKey[|capabilities[|timestamp]]
//
// A structurally valid advertisement older than one hour is rejected as
// stale so long-dead codes cannot reintroduce vanished peers.
package advert

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crumbnet/crumb/internal/domain"
)

// MaxAge is the advertisement freshness window.
const MaxAge = time.Hour

// DefaultPort is assumed when the URI form omits a port.
const DefaultPort = 8888

// Advertisement is a decoded peer advertisement. It is transient: the
// caller uses it once to attempt a connection and optionally records it
// in the scan history.
type Advertisement struct {
	NodeID       string    `json:"node_id"`
	Address      string    `json:"address"`
	Port         int       `json:"port"`
	PublicKey    string    `json:"public_key"`
	Capabilities []string  `json:"capabilities"`
	Timestamp    time.Time `json:"timestamp"`
}

// Descriptor converts the advertisement into a registry descriptor.
// Advertisements carry no latency measurement.
func (a *Advertisement) Descriptor() domain.PeerDescriptor {
	return domain.PeerDescriptor{
		NodeID:       a.NodeID,
		Address:      a.Address,
		Port:         a.Port,
		PublicKey:    a.PublicKey,
		Capabilities: a.Capabilities,
		Latency:      -1,
	}
}

// Parse decodes a scanned or pasted advertisement string. It returns
// domain.ErrMalformedAdvertisement when no grammar matches or required
// fields are missing, and domain.ErrStaleAdvertisement when the
// advertisement is more than MaxAge old.
func Parse(s string) (*Advertisement, error) {
	return parseAt(s, time.Now())
}

func parseAt(s string, now time.Time) (*Advertisement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, domain.ErrMalformedAdvertisement
	}

	ad, ok := parseJSON(s, now)
	if !ok {
		ad, ok = parseURI(s, now)
	}
	if !ok {
		ad, ok = parsePipe(s, now)
	}
	if !ok {
		return nil, domain.ErrMalformedAdvertisement
	}

	if now.Sub(ad.Timestamp) > MaxAge {
		return nil, fmt.Errorf("%w: advertised %s ago",
			domain.ErrStaleAdvertisement, now.Sub(ad.Timestamp).Round(time.Minute))
	}
	return ad, nil
}

// ─── Grammar 1: JSON ────────────────────────────────────────────────────────

func parseJSON(s string, now time.Time) (*Advertisement, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}

	ad := &Advertisement{
		NodeID:    stringField(raw, "node_id", "nodeId"),
		Address:   stringField(raw, "address"),
		PublicKey: stringField(raw, "public_key", "publicKey"),
	}

	port, ok := intField(raw, "port")
	if !ok {
		return nil, false
	}
	ad.Port = port

	if caps, ok := raw["capabilities"].([]interface{}); ok {
		for _, c := range caps {
			if s, ok := c.(string); ok {
				ad.Capabilities = append(ad.Capabilities, s)
			}
		}
	}

	if ts, ok := intField(raw, "timestamp"); ok {
		ad.Timestamp = time.Unix(int64(ts), 0)
	} else {
		ad.Timestamp = now
	}

	if !ad.valid() {
		return nil, false
	}
	return ad, true
}

func stringField(raw map[string]interface{}, names ...string) string {
	for _, n := range names {
		if v, ok := raw[n].(string); ok {
			return v
		}
	}
	return ""
}

// intField reads a numeric field that may arrive as a JSON number or a
// numeric string (QR generators disagree on this).
func intField(raw map[string]interface{}, name string) (int, bool) {
	switch v := raw[name].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// ─── Grammar 2: URI ─────────────────────────────────────────────────────────

func parseURI(s string, now time.Time) (*Advertisement, bool) {
	if !strings.Contains(s, "://") {
		return nil, false
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return nil, false
	}

	host := u.Hostname()
	if host == "" {
		return nil, false
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
	}

	q := u.Query()
	ad := &Advertisement{
		// The host doubles as node identity in the URI form.
		NodeID:    host,
		Address:   host,
		Port:      port,
		PublicKey: q.Get("key"),
		Timestamp: now,
	}

	if caps := q.Get("capabilities"); caps != "" {
		ad.Capabilities = splitList(caps)
	}
	if ts := q.Get("ts"); ts != "" {
		epoch, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, false
		}
		ad.Timestamp = time.Unix(epoch, 0)
	}

	if !ad.valid() {
		return nil, false
	}
	return ad, true
}

// ─── Grammar 3: Pipe-delimited ──────────────────────────────────────────────

func parsePipe(s string, now time.Time) (*Advertisement, bool) {
	parts := strings.Split(s, "|")
	if len(parts) < 4 {
		return nil, false
	}

	port, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, false
	}

	ad := &Advertisement{
		NodeID:    strings.TrimSpace(parts[0]),
		Address:   strings.TrimSpace(parts[1]),
		Port:      port,
		PublicKey: strings.TrimSpace(parts[3]),
		Timestamp: now,
	}

	if len(parts) > 4 && strings.TrimSpace(parts[4]) != "" {
		ad.Capabilities = splitList(parts[4])
	}
	if len(parts) > 5 && strings.TrimSpace(parts[5]) != "" {
		epoch, err := strconv.ParseInt(strings.TrimSpace(parts[5]), 10, 64)
		if err != nil {
			return nil, false
		}
		ad.Timestamp = time.Unix(epoch, 0)
	}

	if !ad.valid() {
		return nil, false
	}
	return ad, true
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (a *Advertisement) valid() bool {
	return a.NodeID != "" && a.Address != "" && a.Port > 0 && a.Port <= 65535
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// EncodeJSON returns the canonical JSON payload for sharing this node.
// This is what goes inside the QR code.
func (a *Advertisement) EncodeJSON() (string, error) {
	type wire struct {
		NodeID       string   `json:"node_id"`
		Address      string   `json:"address"`
		Port         int      `json:"port"`
		PublicKey    string   `json:"public_key"`
		Capabilities []string `json:"capabilities"`
		Timestamp    int64    `json:"timestamp"`
	}
	caps := a.Capabilities
	if caps == nil {
		caps = []string{}
	}
	b, err := json.Marshal(wire{
		NodeID:       a.NodeID,
		Address:      a.Address,
		Port:         a.Port,
		PublicKey:    a.PublicKey,
		Capabilities: caps,
		Timestamp:    a.Timestamp.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode advertisement: %w", err)
	}
	return string(b), nil
}

// EncodeURI returns the compact crumb:// share-link form.
func (a *Advertisement) EncodeURI() string {
	u := &url.URL{
		Scheme: "crumb",
		Host:   net.JoinHostPort(a.Address, strconv.Itoa(a.Port)),
	}
	q := url.Values{}
	q.Set("key", a.PublicKey)
	if len(a.Capabilities) > 0 {
		q.Set("capabilities", strings.Join(a.Capabilities, ","))
	}
	q.Set("ts", strconv.FormatInt(a.Timestamp.Unix(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}
