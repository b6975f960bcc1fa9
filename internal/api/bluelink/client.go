package bluelink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Token 认证令牌
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	CreatedAt   time.Time `json:"-"`
}

// IsExpired 检查 token 是否过期（提前 5 分钟视为过期）
func (t *Token) IsExpired() bool {
	return time.Now().After(t.CreatedAt.Add(time.Duration(t.ExpiresIn-300) * time.Second))
}

// 错误定义
var (
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrVehicleUnavailable = fmt.Errorf("vehicle unavailable")
	ErrRateLimited        = fmt.Errorf("rate limited")
)

// Client Bluelink API 客户端。除作为 HTTP 客户端外还持有所有
// 已知车辆的最新快照，采集循环只读这份缓存，
// 刷新接口负责更新它
type Client struct {
	httpClient *http.Client
	apiHost    string
	username   string
	password   string
	pin        string
	region     string
	brand      string

	mu           sync.RWMutex
	token        *Token
	vehicles     map[string]*VehicleSnapshot
	lastForcedAt time.Time
}

// NewClient 创建 Bluelink API 客户端
func NewClient(apiHost, username, password, pin, region, brand string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiHost:  apiHost,
		username: username,
		password: password,
		pin:      pin,
		region:   region,
		brand:    brand,
		vehicles: make(map[string]*VehicleSnapshot),
	}
}

// Login 用账号密码换取访问令牌
func (c *Client) Login(ctx context.Context) error {
	payload := map[string]string{
		"email":    c.username,
		"password": c.password,
		"pin":      c.pin,
		"region":   c.region,
		"brand":    c.brand,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiHost+"/api/v1/user/oauth2/token", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("login failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	token.CreatedAt = time.Now()

	c.mu.Lock()
	c.token = &token
	c.mu.Unlock()

	return nil
}

// doRequest 执行带认证的请求，token 过期时自动重新登录
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == nil {
		return nil, ErrNotAuthenticated
	}
	if token.IsExpired() {
		if err := c.Login(ctx); err != nil {
			return nil, fmt.Errorf("renew token: %w", err)
		}
		c.mu.RLock()
		token = c.token
		c.mu.RUnlock()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiHost+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Bluegazer/1.0")

	return c.httpClient.Do(req)
}

// apiResponse 通用 API 响应结构
type apiResponse struct {
	RetCode string          `json:"retCode"`
	ResMsg  json.RawMessage `json:"resMsg"`
}

func decodeResponse(resp *http.Response) (json.RawMessage, error) {
	switch resp.StatusCode {
	case http.StatusOK:
		// 正常
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return nil, ErrVehicleUnavailable
	case http.StatusUnauthorized:
		return nil, ErrNotAuthenticated
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.RetCode != "" && apiResp.RetCode != "S" {
		return nil, fmt.Errorf("api error: retCode=%s", apiResp.RetCode)
	}
	return apiResp.ResMsg, nil
}

// ListVehicles 获取账户下的车辆列表
func (c *Client) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/spa/vehicles", nil)
	if err != nil {
		return nil, fmt.Errorf("list vehicles request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := decodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}

	var result struct {
		Vehicles []Vehicle `json:"vehicles"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	return result.Vehicles, nil
}

// RefreshCached 刷新所有车辆的快照，只读服务端缓存的最新状态，
// 不会唤醒车辆
func (c *Client) RefreshCached(ctx context.Context) error {
	return c.refresh(ctx, false)
}

// RefreshForced 刷新所有车辆的快照，距上次强制刷新超过 staleness
// 时直接向车辆请求实时状态，否则退回缓存刷新。
// 强制刷新会唤醒车端模块，消耗小电瓶电量，调用方控制频率
func (c *Client) RefreshForced(ctx context.Context, staleness time.Duration) error {
	c.mu.RLock()
	last := c.lastForcedAt
	c.mu.RUnlock()

	if time.Since(last) < staleness {
		return c.refresh(ctx, false)
	}

	if err := c.refresh(ctx, true); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastForcedAt = time.Now()
	c.mu.Unlock()
	return nil
}

func (c *Client) refresh(ctx context.Context, forced bool) error {
	vehicles, err := c.ListVehicles(ctx)
	if err != nil {
		return fmt.Errorf("refresh vehicle list: %w", err)
	}

	for _, v := range vehicles {
		path := fmt.Sprintf("/api/v1/spa/vehicles/%s/status/latest", v.VehicleID)
		if forced {
			path = fmt.Sprintf("/api/v1/spa/vehicles/%s/status", v.VehicleID)
		}

		resp, err := c.doRequest(ctx, "GET", path, nil)
		if err != nil {
			return fmt.Errorf("fetch status for %s: %w", v.VehicleID, err)
		}

		raw, err := decodeResponse(resp)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("fetch status for %s: %w", v.VehicleID, err)
		}

		snap, err := ParseSnapshot(v, raw)
		if err != nil {
			return fmt.Errorf("parse snapshot for %s: %w", v.VehicleID, err)
		}

		c.mu.Lock()
		// 刷新不丢弃已拉取的行程明细
		if prev, ok := c.vehicles[v.VehicleID]; ok {
			snap.DayTrips = prev.DayTrips
		}
		c.vehicles[v.VehicleID] = snap
		c.mu.Unlock()
	}

	return nil
}

// Vehicles 返回当前缓存的全部车辆快照
func (c *Client) Vehicles() map[string]*VehicleSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]*VehicleSnapshot, len(c.vehicles))
	for id, snap := range c.vehicles {
		out[id] = snap
	}
	return out
}

// DayTrips 按日拉取某辆车的行程明细，day 为 "YYYYMMDD"。
// 返回该日的行程段，同时写入对应快照的 DayTrips 字段
func (c *Client) DayTrips(ctx context.Context, vehicleID, day string) ([]TripEntry, error) {
	payload := map[string]any{
		"tripPeriodType": 1,
		"setTripDay":     day,
	}
	body, _ := json.Marshal(payload)

	path := fmt.Sprintf("/api/v1/spa/vehicles/%s/tripinfo", vehicleID)
	resp, err := c.doRequest(ctx, "POST", path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("day trips request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := decodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("day trips for %s: %w", vehicleID, err)
	}

	var result struct {
		DayTripList []struct {
			TripList []TripEntry `json:"tripList"`
		} `json:"dayTripList"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode day trips: %w", err)
	}

	var trips []TripEntry
	for _, d := range result.DayTripList {
		trips = append(trips, d.TripList...)
	}

	c.mu.Lock()
	if snap, ok := c.vehicles[vehicleID]; ok {
		snap.DayTrips = trips
	}
	c.mu.Unlock()

	return trips, nil
}
