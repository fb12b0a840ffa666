// Package panel wraps the hosting control panel's HTTP API: account
// lifecycle operations with normalized error reporting. The remote
// signals success inconsistently across endpoints (status==1 on the
// older ones, metadata.result==1 on the newer ones); callers only ever
// see a nil error or a typed failure.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lanzaweb/internal/credentials"
)

type Client struct {
	baseURL  string
	apiToken string
	username string
	password string
	client   *http.Client
}

type Config struct {
	BaseURL  string
	APIToken string
	Username string
	Password string
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// RemoteError is a logical failure reported by a reachable panel, e.g.
// "username already exists" or "invalid package".
type RemoteError struct {
	Reason string
}

func (e *RemoteError) Error() string {
	return "panel: " + e.Reason
}

// IsConflict reports whether err is the remote telling us the account
// already exists. The orchestrator regenerates the username and retries
// on this; every other failure is final.
func IsConflict(err error) bool {
	var re *RemoteError
	if !errors.As(err, &re) {
		return false
	}
	reason := strings.ToLower(re.Reason)
	return strings.Contains(reason, "exist") || strings.Contains(reason, "in use")
}

type CreateAccountRequest struct {
	Username    string
	Password    string
	Domain      string
	Package     string
	Email       string
	QuotaMB     int
	BandwidthMB int
}

type CreateAccountResult struct {
	Username string
	Password string
	PanelURL string
}

var domainRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}$`)

// ValidDomain checks basic domain syntax: labels of letters, digits and
// hyphens, at least one dot, alphabetic TLD of 2+ characters.
func ValidDomain(domain string) bool {
	return domainRe.MatchString(strings.ToLower(domain))
}

// CreateAccount creates a live account on the panel. Not idempotent: a
// second call with the same username fails with a remote conflict.
func (c *Client) CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreateAccountResult, error) {
	if req.Username == "" || len(req.Username) > 16 {
		return nil, fmt.Errorf("panel: username must be 1-16 characters, got %q", req.Username)
	}
	if req.Password == "" {
		return nil, fmt.Errorf("panel: password must not be empty")
	}
	if !ValidDomain(req.Domain) {
		return nil, fmt.Errorf("panel: invalid domain %q", req.Domain)
	}
	if !credentials.KnownPackage(req.Package) {
		return nil, fmt.Errorf("panel: unknown package %q", req.Package)
	}

	params := url.Values{}
	params.Set("username", req.Username)
	params.Set("password", req.Password)
	params.Set("domain", req.Domain)
	params.Set("plan", req.Package)
	params.Set("contactemail", req.Email)
	params.Set("quota", strconv.Itoa(req.QuotaMB))
	params.Set("bwlimit", strconv.Itoa(req.BandwidthMB))

	if err := c.getJSON(ctx, "/json-api/createacct", params, nil); err != nil {
		return nil, err
	}
	return &CreateAccountResult{
		Username: req.Username,
		Password: req.Password,
		PanelURL: c.baseURL + ":2083",
	}, nil
}

func (c *Client) SuspendAccount(ctx context.Context, username, reason string) error {
	params := url.Values{}
	params.Set("user", username)
	params.Set("reason", reason)
	return c.getJSON(ctx, "/json-api/suspendacct", params, nil)
}

func (c *Client) UnsuspendAccount(ctx context.Context, username string) error {
	params := url.Values{}
	params.Set("user", username)
	return c.getJSON(ctx, "/json-api/unsuspendacct", params, nil)
}

type AccountInfo struct {
	Username  string `json:"user"`
	Domain    string `json:"domain"`
	Package   string `json:"plan"`
	Email     string `json:"email"`
	Suspended bool   `json:"suspended"`
	IP        string `json:"ip"`
}

func (c *Client) AccountInfo(ctx context.Context, username string) (*AccountInfo, error) {
	params := url.Values{}
	params.Set("user", username)
	var data struct {
		Acct []AccountInfo `json:"acct"`
	}
	if err := c.getJSON(ctx, "/json-api/accountsummary", params, &data); err != nil {
		return nil, err
	}
	if len(data.Acct) == 0 {
		return nil, &RemoteError{Reason: "account " + username + " not found"}
	}
	return &data.Acct[0], nil
}

type Package struct {
	Name        string `json:"name"`
	QuotaMB     string `json:"QUOTA"`
	BandwidthMB string `json:"BWLIMIT"`
}

func (c *Client) ListPackages(ctx context.Context) ([]Package, error) {
	var data struct {
		Pkg []Package `json:"pkg"`
	}
	if err := c.getJSON(ctx, "/json-api/listpkgs", nil, &data); err != nil {
		return nil, err
	}
	return data.Pkg, nil
}

// ChangePackage moves an existing account to another package. This is
// one of the newer endpoints and takes a JSON body.
func (c *Client) ChangePackage(ctx context.Context, username, pkg string) error {
	body := map[string]string{"user": username, "pkg": pkg}
	return c.postJSON(ctx, "/json-api/changepackage", body, nil)
}

type Usage struct {
	DiskUsedMB      string `json:"diskused"`
	DiskLimitMB     string `json:"disklimit"`
	BandwidthUsedMB string `json:"totalbytes"`
}

func (c *Client) AccountUsage(ctx context.Context, username string) (*Usage, error) {
	params := url.Values{}
	params.Set("searchtype", "user")
	params.Set("search", username)
	var data struct {
		Acct []Usage `json:"acct"`
	}
	if err := c.getJSON(ctx, "/json-api/showbw", params, &data); err != nil {
		return nil, err
	}
	if len(data.Acct) == 0 {
		return nil, &RemoteError{Reason: "no usage data for " + username}
	}
	return &data.Acct[0], nil
}

// apiResponse covers both success-signaling shapes the panel uses.
type apiResponse struct {
	Status    *int   `json:"status"`
	StatusMsg string `json:"statusmsg"`
	Metadata  *struct {
		Result int    `json:"result"`
		Reason string `json:"reason"`
	} `json:"metadata"`
	Data json.RawMessage `json:"data"`
}

func (r *apiResponse) failure() (string, bool) {
	if r.Metadata != nil {
		if r.Metadata.Result == 1 {
			return "", false
		}
		reason := r.Metadata.Reason
		if reason == "" {
			reason = "unspecified failure"
		}
		return reason, true
	}
	if r.Status != nil {
		if *r.Status == 1 {
			return "", false
		}
		reason := r.StatusMsg
		if reason == "" {
			reason = "unspecified failure"
		}
		return reason, true
	}
	return "response carried neither status nor metadata.result", true
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiToken != "" {
		req.Header.Set("Authorization", "WHM "+c.username+":"+c.apiToken)
	} else {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("panel request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return fmt.Errorf("panel http status %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("panel http status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("panel read response: %w", err)
	}
	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("panel parse response: %w", err)
	}
	if reason, failed := env.failure(); failed {
		return &RemoteError{Reason: reason}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("panel parse data: %w", err)
		}
	}
	return nil
}
