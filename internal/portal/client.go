package portal

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/opengov-in/parivesh-sync/internal/model"
)

// ErrMalformed indicates the portal returned a payload that could not be
// interpreted as the expected envelope.
var ErrMalformed = eris.New("portal: malformed response")

// Options configures the portal client.
type Options struct {
	// BaseURL is the API root, e.g. https://parivesh.nic.in/parivesh_api.
	BaseURL string
	// SiteURL is the public site root visited once to seed session cookies.
	SiteURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RateLimit caps outgoing requests per second.
	RateLimit rate.Limit
	Burst     int
}

// Client talks to the proposal-tracking API.
type Client struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
	log     *zap.Logger

	bootstrapOnce sync.Once
	bootstrapErr  error
}

// New creates a Client with a cookie jar and retry-aware transport.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://parivesh.nic.in/parivesh_api"
	}
	if opts.SiteURL == "" {
		opts.SiteURL = "https://parivesh.nic.in"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "parivesh-sync/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 2
	}
	if opts.Burst == 0 {
		opts.Burst = 4
	}

	jar, _ := cookiejar.New(nil)
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			Jar:       jar,
		},
		opts:    opts,
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
		log:     zap.L().With(zap.String("component", "portal")),
	}
}

// bootstrap visits the site root once to pick up the session cookies the
// API endpoints expect.
func (c *Client) bootstrap(ctx context.Context) error {
	c.bootstrapOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.SiteURL, nil)
		if err != nil {
			c.bootstrapErr = eris.Wrap(err, "portal: create bootstrap request")
			return
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)

		resp, err := c.doWithRetry(ctx, req)
		if err != nil {
			c.bootstrapErr = eris.Wrap(err, "portal: bootstrap session")
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	})
	return c.bootstrapErr
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := range c.opts.MaxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "portal: rate limiter wait")
		}

		cloned := req.Clone(ctx)
		resp, err := c.client.Do(cloned)
		if err != nil {
			lastErr = err
			c.log.Warn("request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("portal: http %d from %s", resp.StatusCode, req.URL.String())
			c.log.Warn("retryable status, backing off",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			c.backoff(ctx, attempt)
			continue
		}

		return resp, nil
	}
	return nil, eris.Wrap(lastErr, "portal: all retries exhausted")
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// getJSON performs a GET against an API path and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.bootstrap(ctx); err != nil {
		return err
	}

	fullURL := c.opts.BaseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return eris.Wrapf(err, "portal: create request for %s", path)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("portal: unexpected status %d from %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrapf(err, "portal: read body from %s", path)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(ErrMalformed, "decode %s: %v", path, err)
	}
	return nil
}

// envelope is the {status, data} wrapper most endpoints respond with.
type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// unwrap returns the inner data payload, tolerating endpoints that reply
// with a bare payload instead of the envelope.
func unwrap(raw json.RawMessage) json.RawMessage {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		return env.Data
	}
	return raw
}

// SearchQuery selects which proposals to page through.
type SearchQuery struct {
	// MajorClearanceType defaults to 1 (environmental clearance).
	MajorClearanceType int
	StateID            string
	Year               int
	Status             string
	Sector             string
	Page               int
	Size               int
}

func (q SearchQuery) values() url.Values {
	if q.MajorClearanceType == 0 {
		q.MajorClearanceType = 1
	}
	if q.Size == 0 {
		q.Size = 30
	}
	v := url.Values{}
	v.Set("majorClearanceType", strconv.Itoa(q.MajorClearanceType))
	v.Set("state", q.StateID)
	v.Set("sector", q.Sector)
	v.Set("proposalStatus", q.Status)
	v.Set("proposalType", "")
	v.Set("issuingAuthority", "")
	v.Set("activityId", "")
	v.Set("category", "")
	v.Set("startDate", "")
	v.Set("endDate", "")
	v.Set("areaMin", "")
	v.Set("areaMax", "")
	v.Set("text", "")
	v.Set("area", "")
	if q.Year != 0 {
		v.Set("year", strconv.Itoa(q.Year))
	} else {
		v.Set("year", "")
	}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.Size))
	return v
}

// Search fetches a single page of advance-search results.
func (c *Client) Search(ctx context.Context, q SearchQuery) (*SearchPage, error) {
	var resp struct {
		Data  []map[string]any `json:"data"`
		Total int              `json:"totalElements"`
	}
	if err := c.getJSON(ctx, "/trackYourProposal/advanceSearchData", q.values(), &resp); err != nil {
		return nil, err
	}
	return &SearchPage{Records: resp.Data, Total: resp.Total}, nil
}

// SearchAll pages through every search result for the query.
func (c *Client) SearchAll(ctx context.Context, q SearchQuery) ([]map[string]any, error) {
	if q.Size == 0 {
		q.Size = 30
	}
	var all []map[string]any
	for page := 0; ; page++ {
		q.Page = page
		pageResult, err := c.Search(ctx, q)
		if err != nil {
			return nil, eris.Wrapf(err, "portal: search page %d", page)
		}
		all = append(all, pageResult.Records...)
		c.log.Debug("fetched search page",
			zap.Int("page", page),
			zap.Int("records", len(pageResult.Records)),
			zap.Int("total", len(all)),
		)
		if len(pageResult.Records) < q.Size {
			return all, nil
		}
	}
}

// Detail fetches the full detail blob for a proposal.
func (c *Client) Detail(ctx context.Context, proposalNo string) (json.RawMessage, error) {
	params := url.Values{"proposalNo": {proposalNo}}
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/trackYourProposal/dataOfProposalNo", params, &raw); err != nil {
		return nil, err
	}
	return unwrap(raw), nil
}

// Timeline fetches the approval-date history for a proposal.
func (c *Client) Timeline(ctx context.Context, proposalNo string) ([]TimelineItem, error) {
	params := url.Values{"proposalNo": {proposalNo}}
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/trackYourProposal/getApprovalDates", params, &raw); err != nil {
		return nil, err
	}

	var items []TimelineItem
	if err := json.Unmarshal(unwrap(raw), &items); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "decode timeline for %s: %v", proposalNo, err)
	}
	return items, nil
}

// Location fetches the project location payload by its clearance form id.
func (c *Client) Location(ctx context.Context, formID int64) (json.RawMessage, error) {
	params := url.Values{"formId": {strconv.FormatInt(formID, 10)}}
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/trackYourProposal/getKmlFile", params, &raw); err != nil {
		return nil, err
	}
	return unwrap(raw), nil
}

var formEndpoints = map[string]string{
	model.FormCAF:   "/trackYourProposal/getCaFormDetails",
	model.FormPartA: "/trackYourProposal/getPartADetails",
	model.FormPartB: "/trackYourProposal/getPartBDetails",
	model.FormPartC: "/trackYourProposal/getPartCDetails",
}

// Forms fetches the four clearance form payloads concurrently. Forms the
// portal does not have for the proposal are simply absent from the result.
func (c *Client) Forms(ctx context.Context, proposalNo string) (FormSet, error) {
	var mu sync.Mutex
	forms := make(FormSet)

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range model.FormKinds {
		path := formEndpoints[kind]
		g.Go(func() error {
			params := url.Values{"proposalNo": {proposalNo}}
			var raw json.RawMessage
			if err := c.getJSON(gctx, path, params, &raw); err != nil {
				c.log.Warn("form fetch failed",
					zap.String("proposal", proposalNo),
					zap.String("form", kind),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			forms[kind] = unwrap(raw)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return forms, nil
}

// Documents fetches the uploaded document references for a proposal.
func (c *Client) Documents(ctx context.Context, proposalNo string) ([]Document, error) {
	params := url.Values{"proposalNo": {proposalNo}}
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/trackYourProposal/getDocuments", params, &raw); err != nil {
		return nil, err
	}

	var docs []Document
	if err := json.Unmarshal(unwrap(raw), &docs); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "decode documents for %s: %v", proposalNo, err)
	}
	return docs, nil
}

// States fetches the state master list.
func (c *Client) States(ctx context.Context) ([]State, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/trackYourProposal/getListOfAllState", nil, &raw); err != nil {
		return nil, err
	}

	var states []State
	if err := json.Unmarshal(unwrap(raw), &states); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "decode states: %v", err)
	}
	return states, nil
}

// Statuses fetches the names of the status values proposals can carry.
// workgroupID 1 covers the environmental-clearance workflow.
func (c *Client) Statuses(ctx context.Context, workgroupID int) ([]string, error) {
	if workgroupID == 0 {
		workgroupID = 1
	}
	params := url.Values{"workgroupId": {strconv.Itoa(workgroupID)}}
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/trackYourProposal/getListOfStatus", params, &raw); err != nil {
		return nil, err
	}

	var items []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(unwrap(raw), &items); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "decode statuses: %v", err)
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		if it.Name != "" {
			names = append(names, it.Name)
		}
	}
	return names, nil
}

// ExtractFormID digs the clearance form id out of a detail blob. The portal
// has used both form_id and formId over time.
func ExtractFormID(detail json.RawMessage) (int64, bool) {
	var fields map[string]any
	if err := json.Unmarshal(detail, &fields); err != nil {
		return 0, false
	}
	for _, key := range []string{"form_id", "formId"} {
		switch v := fields[key].(type) {
		case float64:
			return int64(v), true
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}
