package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/crumbnet/crumb/internal/daemon"
)

// client is a thin HTTP client for the daemon's local API.
type client struct {
	base string
	http *http.Client
}

// newClient resolves the daemon address from config.
func newClient() *client {
	cfg, _ := daemon.LoadConfig()
	return &client{
		base: fmt.Sprintf("http://%s:%d", cfg.API.Host, cfg.API.Port),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return fmt.Errorf("is the daemon running? (crumb serve): %w", err)
	}
	return decodeResponse(resp, out)
}

func (c *client) post(path string, body, out interface{}) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *client) do(method, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? (crumb serve): %w", err)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s", apiErr.Error.Message)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// localIP returns this machine's outbound interface address, falling
// back to loopback. No packets are sent; the dial just picks a route.
func localIP() string {
	conn, err := net.Dial("udp", "192.0.2.1:9") // TEST-NET, never routed
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
