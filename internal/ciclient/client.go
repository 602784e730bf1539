// Package ciclient talks to the upstream Jenkins-like CI: listing
// artifacts, downloading them, paging build numbers and fetching job
// metadata, all basic-auth'd and retried with exponential backoff
// (spec §4.4).
package ciclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
	"github.com/jordigilh/regtrack/internal/platform/httpclient"
	"github.com/jordigilh/regtrack/internal/platform/logging"
	"github.com/jordigilh/regtrack/pkg/metrics"
)

// Config holds the credentials and tuning knobs for a Client.
type Config struct {
	Username   string
	Password   string
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultConfig returns the spec §4.4 baseline: 3 retries, 2^n second
// backoff.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

// Client is the CI Client (spec C4). A gobreaker.CircuitBreaker sits
// underneath the retry loop so a sustained upstream outage stops
// hammering the Jenkins instance once the failure rate crosses the
// breaker's threshold, independent of the per-call retry budget.
type Client struct {
	http    *http.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	log     logr.Logger
}

// New builds a Client using the httpclient CI preset and a breaker
// that opens after 5 consecutive failures and probes again after 30s.
func New(cfg Config, log logr.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ci-client",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("ci client circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{
		http:    httpclient.NewClient(httpclient.CIClientConfig()),
		cfg:     cfg,
		breaker: breaker,
		log:     log,
	}
}

// JobInfo is the subset of Jenkins job metadata the ingestion
// pipeline needs.
type JobInfo struct {
	DisplayName string    `json:"displayName"`
	Timestamp   time.Time `json:"-"`
	RawTimestamp int64    `json:"timestamp"`
	URL         string    `json:"url"`
}

type jenkinsArtifact struct {
	RelativePath string `json:"relativePath"`
}

type jenkinsArtifactsResponse struct {
	Artifacts []jenkinsArtifact `json:"artifacts"`
}

// GetArtifactsList returns the relative paths of every archived
// artifact for a build.
func (c *Client) GetArtifactsList(ctx context.Context, jobURL string) ([]string, error) {
	var resp jenkinsArtifactsResponse
	if err := c.getJSON(ctx, strings.TrimRight(jobURL, "/")+"/api/json?tree=artifacts[relativePath]", &resp); err != nil {
		return nil, err
	}
	paths := make([]string, len(resp.Artifacts))
	for i, a := range resp.Artifacts {
		paths[i] = a.RelativePath
	}
	return paths, nil
}

// DownloadArtifact streams a single archived artifact to destPath,
// creating parent directories as needed.
func (c *Client) DownloadArtifact(ctx context.Context, jobURL, relPath, destPath string) error {
	url := strings.TrimRight(jobURL, "/") + "/artifact/" + relPath
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeCIRequest, "create artifact destination directory")
	}
	f, err := os.Create(destPath)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeCIRequest, "create artifact destination file")
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeCIRequest, "write artifact")
	}
	return nil
}

type jenkinsBuildsResponse struct {
	Builds []struct {
		Number int `json:"number"`
	} `json:"builds"`
}

// GetJobBuilds returns build numbers >= minBuild, descending.
func (c *Client) GetJobBuilds(ctx context.Context, jobURL string, minBuild int64) ([]int64, error) {
	var resp jenkinsBuildsResponse
	if err := c.getJSON(ctx, strings.TrimRight(jobURL, "/")+"/api/json?tree=builds[number]", &resp); err != nil {
		return nil, err
	}
	var builds []int64
	for _, b := range resp.Builds {
		if int64(b.Number) >= minBuild {
			builds = append(builds, int64(b.Number))
		}
	}
	sortDesc(builds)
	return builds, nil
}

func sortDesc(xs []int64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j] > xs[j-1]; j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}

// GetJobInfo fetches displayName/timestamp/url for a job.
func (c *Client) GetJobInfo(ctx context.Context, jobURL string) (*JobInfo, error) {
	var info JobInfo
	if err := c.getJSON(ctx, strings.TrimRight(jobURL, "/")+"/api/json?tree=displayName,timestamp,url", &info); err != nil {
		return nil, err
	}
	info.Timestamp = time.UnixMilli(info.RawTimestamp)
	return &info, nil
}

// DownloadBuildMap fetches and decodes the build manifest artifact
// (conventionally buildMap.json) for a parent build; returns nil, nil
// if the artifact does not exist.
func (c *Client) DownloadBuildMap(ctx context.Context, buildURL string) (map[string]any, error) {
	body, err := c.get(ctx, strings.TrimRight(buildURL, "/")+"/artifact/buildMap.json")
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Type == apperrors.ErrorTypeNotFound {
			return nil, nil
		}
		return nil, err
	}
	defer body.Close()

	var m map[string]any
	if err := json.NewDecoder(body).Decode(&m); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeCIRequest, "decode build map")
	}
	return m, nil
}

func (c *Client) getJSON(ctx context.Context, url string, dest any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeCIRequest, "decode ci response")
	}
	return nil
}

// get performs the GET with basic auth, retrying transient failures
// with 2^n second backoff up to cfg.MaxRetries times, behind the
// circuit breaker. 401/404 are fatal for the call and never retried
// (spec §4.4 failure classes).
func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	fields := logging.NewFields().Component("ciclient").Operation("get")

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * c.cfg.BaseDelay
			metrics.RecordCIRequestRetry()
			select {
			case <-ctx.Done():
				return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrorTypeCIRequest, "ci request cancelled during backoff")
			case <-time.After(delay):
			}
		}

		start := time.Now()
		result, err := c.breaker.Execute(func() (any, error) {
			return c.doOnce(ctx, url)
		})
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metrics.RecordCIRequest(operationFromURL(url), outcome, time.Since(start))

		if err == nil {
			return result.(io.ReadCloser), nil
		}
		if appErr, ok := apperrors.As(err); ok && (appErr.Type == apperrors.ErrorTypeAuth || appErr.Type == apperrors.ErrorTypeNotFound) {
			return nil, err
		}
		lastErr = err
		c.log.V(1).Info("ci request attempt failed, retrying", append(fields.KeysAndValues(), "attempt", attempt, "error", err)...)
	}
	return nil, apperrors.Wrap(lastErr, apperrors.ErrorTypeCIRequest, "ci request retries exhausted").WithDetails(url)
}

// operationFromURL classifies a request URL for the ci_request_duration
// "operation" label without needing every call site to thread one through.
func operationFromURL(url string) string {
	switch {
	case strings.Contains(url, "/artifact/buildMap.json"):
		return "download_build_map"
	case strings.Contains(url, "/artifact/"):
		return "download_artifact"
	case strings.Contains(url, "tree=builds"):
		return "get_job_builds"
	case strings.Contains(url, "tree=artifacts"):
		return "get_artifacts_list"
	case strings.Contains(url, "tree=displayName"):
		return "get_job_info"
	default:
		return "other"
	}
}

func (c *Client) doOnce(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeCIRequest, "build ci request")
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeCIRequest, "ci request transport error")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, apperrors.New(apperrors.ErrorTypeAuth, "ci authentication failed").WithDetails(url)
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, apperrors.New(apperrors.ErrorTypeNotFound, "ci resource not found").WithDetails(url)
	case resp.StatusCode >= 300:
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, apperrors.Newf(apperrors.ErrorTypeCIRequest, "ci request failed with status %d: %s", resp.StatusCode, string(b))
	}
	return resp.Body, nil
}

// ModuleNameNormalizationSuffixes are stripped, in order, from a
// Jenkins job name while deriving its normalized module name
// (spec §4.5 "Module-name normalization").
var ModuleNameNormalizationSuffixes = []string{"_module_esxi", "_esxi", "_module"}

// NormalizeModuleName lower-cases name, replaces '-' with '_', and
// strips one trailing normalization suffix if present.
func NormalizeModuleName(name string) string {
	n := strings.ToLower(name)
	n = strings.ReplaceAll(n, "-", "_")
	for _, suffix := range ModuleNameNormalizationSuffixes {
		if strings.HasSuffix(n, suffix) {
			return strings.TrimSuffix(n, suffix)
		}
	}
	return n
}

// ModuleJobURL builds the Jenkins job URL for a module sub-job:
// <base>/job/<jenkinsJobName with _ -> ->/<jobId>/.
func ModuleJobURL(base, jenkinsJobName, jobID string) string {
	dashed := strings.ReplaceAll(jenkinsJobName, "_", "-")
	return fmt.Sprintf("%s/job/%s/%s/", strings.TrimRight(base, "/"), dashed, jobID)
}

// MapVersionToRelease implements spec §4.5: take the first two dotted
// components of a version string ("X.Y.Z.W" -> "X.Y"); a value
// already in "X.Y" form is returned as-is; empty/whitespace-only
// input returns nil.
func MapVersionToRelease(version string) *string {
	trimmed := strings.TrimSpace(version)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ".")
	if len(parts) < 2 {
		return &trimmed
	}
	release := parts[0] + "." + parts[1]
	return &release
}

// ParseBuildNumber is a small helper for callers that receive build
// numbers as strings from JSON map keys.
func ParseBuildNumber(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrorTypeParse, "parse build number")
	}
	return n, nil
}
