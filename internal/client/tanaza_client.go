package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TanazaClient calls the hotspot controller API: device lookup for admin
// import and the captive-portal login form for portal-system activations.
type TanazaClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewTanazaClient creates a new controller client.
func NewTanazaClient(baseURL, apiKey string) *TanazaClient {
	return &TanazaClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// DeviceInfo is the controller's view of an access point.
type DeviceInfo struct {
	MAC              string `json:"mac"`
	Label            string `json:"label"`
	Online           bool   `json:"online"`
	ConnectedClients int    `json:"connectedClients"`
}

// GetDeviceByMAC looks up an AP on the controller.
func (c *TanazaClient) GetDeviceByMAC(ctx context.Context, apMAC string) (*DeviceInfo, error) {
	u := fmt.Sprintf("%s/devices/%s", c.baseURL, url.PathEscape(apMAC))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("device %s not found on controller", apMAC)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("controller returned status %d", resp.StatusCode)
	}

	var info DeviceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &info, nil
}

// SubmitLogin posts a voucher code to the controller's captive-portal login
// form. loginURL comes from the validated redirect parameters; the controller
// answers with a redirect the browser will follow.
func (c *TanazaClient) SubmitLogin(ctx context.Context, loginURL, code, continueURL string) error {
	form := url.Values{}
	form.Set("voucher_code", code)
	if continueURL != "" {
		form.Set("continue_url", continueURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("portal login returned status %d", resp.StatusCode)
	}

	log.Printf("[TanazaClient] Login form submitted to %s", loginURL)
	return nil
}
