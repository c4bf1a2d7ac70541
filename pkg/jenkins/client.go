// Package jenkins is a minimal read-only client for the Jenkins REST API,
// covering the three calls the nightly reporter needs: job build lists,
// console text, and per-build JSON metadata.
package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const crumbHeader = "Jenkins-Crumb"

// Client talks to a single Jenkins instance. Construct one per run with
// NewClient; when credentials are supplied the anti-forgery crumb is fetched
// eagerly so that authentication problems surface before any work is done.
type Client struct {
	baseURL    string
	username   string
	apiToken   string
	crumb      string
	httpClient *http.Client
}

func NewClient(ctx context.Context, baseURL, username, apiToken string) (*Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 4
	retryClient.Logger = adapter{}
	httpClient := retryClient.StandardClient()
	httpClient.Timeout = 2 * time.Minute

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		apiToken:   apiToken,
		httpClient: httpClient,
	}

	if username != "" && apiToken != "" {
		crumb, err := c.fetchCrumb(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not fetch crumb: %w", err)
		}
		c.crumb = crumb
	}

	return c, nil
}

// adapter bridges retryablehttp's leveled logger onto logrus.
type adapter struct{}

func (a adapter) format(s string, i ...interface{}) string {
	builder := strings.Builder{}
	builder.WriteString(s)
	for _, x := range i {
		builder.WriteString(" ")
		builder.WriteString(fmt.Sprintf("%v", x))
	}
	return builder.String()
}

func (a adapter) Error(s string, i ...interface{}) {
	logrus.Error(a.format(s, i...))
}

func (a adapter) Info(s string, i ...interface{}) {
	logrus.Info(a.format(s, i...))
}

func (a adapter) Debug(s string, i ...interface{}) {
	logrus.Debug(a.format(s, i...))
}

func (a adapter) Warn(s string, i ...interface{}) {
	logrus.Warn(a.format(s, i...))
}

var _ retryablehttp.LeveledLogger = adapter{}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	logrus.WithField("url", url).Debug("Fetching from Jenkins")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if c.username != "" && c.apiToken != "" {
		req.SetBasicAuth(c.username, c.apiToken)
		if c.crumb != "" {
			req.Header.Set(crumbHeader, c.crumb)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request to %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var responseBody string
		if data, err := io.ReadAll(resp.Body); err != nil {
			logrus.WithError(err).Warn("Failed to read response body from Jenkins.")
		} else {
			responseBody = string(data)
		}
		return nil, fmt.Errorf("got unexpected http %d status code from %s: %s", resp.StatusCode, url, responseBody)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("could not parse response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) fetchCrumb(ctx context.Context) (string, error) {
	var response crumbResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/crumbIssuer/api/json", c.baseURL), &response); err != nil {
		return "", err
	}
	return response.Crumb, nil
}

// ServerDescription returns the description configured on the Jenkins
// controller. Only used for connectivity diagnostics.
func (c *Client) ServerDescription(ctx context.Context) (string, error) {
	var response struct {
		Description string `json:"description"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/api/json", c.baseURL), &response); err != nil {
		return "", err
	}
	return response.Description, nil
}

// JobInfo fetches a job's JSON representation. jobPath is the slash-separated
// path as it appears in Jenkins URLs, e.g. "Mystikos/job/Nightly-Pipeline-Scheduled".
// tree, when non-empty, is passed through as the API's field-subset selector.
func (c *Client) JobInfo(ctx context.Context, jobPath, tree string) (*JobInfo, error) {
	url := fmt.Sprintf("%s/job/%s/api/json", c.baseURL, jobPath)
	if tree != "" {
		url += "?tree=" + tree
	}
	info := &JobInfo{}
	if err := c.getJSON(ctx, url, info); err != nil {
		return nil, err
	}
	return info, nil
}

// BuildLog returns a build's console text.
func (c *Client) BuildLog(ctx context.Context, jobPath string, number int) (string, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/job/%s/%d/consoleText", c.baseURL, jobPath, number))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// BuildInfo returns a build's JSON metadata.
func (c *Client) BuildInfo(ctx context.Context, jobPath string, number int) (*BuildInfo, error) {
	info := &BuildInfo{}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/job/%s/%d/api/json", c.baseURL, jobPath, number), info); err != nil {
		return nil, err
	}
	return info, nil
}

// BaseURL returns the normalized Jenkins base URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ConsoleURL returns the classic console page for a build.
func ConsoleURL(baseURL, jobPath string, number int) string {
	return fmt.Sprintf("%s/job/%s/%d/console", strings.TrimRight(baseURL, "/"), jobPath, number)
}

// BlueOceanURL returns the Blue Ocean pipeline page for a build. folderPath is
// the plain folder path without "/job/" separators, e.g. "Mystikos/Standalone-Pipelines".
func BlueOceanURL(baseURL, folderPath, job string, number int) string {
	encodedFolder := strings.ReplaceAll(strings.Trim(folderPath, "/"), "/", "%2F")
	if encodedFolder != "" {
		encodedFolder += "%2F"
	}
	return fmt.Sprintf("%s/blue/organizations/jenkins/%s%s/detail/%s/%d/pipeline",
		strings.TrimRight(baseURL, "/"), encodedFolder, job, job, number)
}
