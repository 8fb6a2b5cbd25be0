package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gameshub/uvlhub/config"
	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/util/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
)

// ZenodoOptions configures the deposition client. BaseURL points at the
// depositions collection, e.g. http://localhost:5001/deposit/depositions.
type ZenodoOptions struct {
	BaseURL    string
	RetryTotal int
	Backoff    time.Duration
	RateWait   time.Duration
	Client     *http.Client
}

func DefaultZenodoOptions() ZenodoOptions {
	return ZenodoOptions{
		BaseURL:    config.GetFakenodoURL(),
		RetryTotal: config.GetZenodoRetryTotal(),
		Backoff:    config.GetZenodoBackoff(),
		RateWait:   config.GetZenodoRateWait(),
		Client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// DepositionId accepts both numeric and string ids.
type DepositionId string

func (id *DepositionId) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*id = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	*id = DepositionId(s)
	return nil
}

type Deposition struct {
	Id       DepositionId   `json:"id"`
	Metadata map[string]any `json:"metadata"`
	Files    []string       `json:"files"`
	Doi      string         `json:"doi"`
}

// StatusError is an unexpected response from the deposition API.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Status, strings.TrimSpace(e.Body))
}

// ConnectionReport is the outcome of TestFullConnection.
type ConnectionReport struct {
	Success  bool     `json:"success"`
	Messages []string `json:"messages"`
}

// ZenodoService talks to a Zenodo compatible deposition API. Transport
// errors, 429 and 5xx responses are retried with exponential backoff.
type ZenodoService struct {
	opts ZenodoOptions
}

func NewZenodoService(opts ZenodoOptions) *ZenodoService {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &ZenodoService{opts: opts}
}

func (s *ZenodoService) BaseURL() string {
	return s.opts.BaseURL
}

type request struct {
	method      string
	url         string
	body        []byte
	contentType string
	expect      int
}

// rateLimitedBackOff waits for the Retry-After of a 429 instead of the next
// exponential interval.
type rateLimitedBackOff struct {
	backoff.BackOff
	wait    time.Duration
	limited bool
}

func (b *rateLimitedBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next != backoff.Stop && b.limited {
		next = b.wait
	}
	b.limited = false
	return next
}

func (s *ZenodoService) newBackOff(ctx context.Context) (backoff.BackOff, *rateLimitedBackOff) {
	b := backoff.NewExponentialBackOff()
	if s.opts.Backoff > 0 {
		b.InitialInterval = s.opts.Backoff
	}
	retries := s.opts.RetryTotal
	if retries < 0 {
		retries = 0
	}
	limited := &rateLimitedBackOff{BackOff: backoff.WithMaxRetries(b, uint64(retries))}
	return backoff.WithContext(limited, ctx), limited
}

func (s *ZenodoService) do(ctx context.Context, r request) ([]byte, error) {
	var result []byte
	b, limited := s.newBackOff(ctx)
	operation := func() error {
		var body io.Reader
		if r.body != nil {
			body = bytes.NewReader(r.body)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		if r.contentType != "" {
			req.Header.Set("Content-Type", r.contentType)
		}
		resp, err := s.opts.Client.Do(req)
		if err != nil {
			logger.Warningf("deposition request %s %s failed: %v", r.method, r.url, err)
			metrics.DepositionRequests.WithLabelValues(r.method, "retry").Inc()
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		statusErr := &StatusError{Method: r.method, URL: r.url, Status: resp.StatusCode, Body: string(data)}
		switch {
		case resp.StatusCode == r.expect:
			metrics.DepositionRequests.WithLabelValues(r.method, "ok").Inc()
			result = data
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			metrics.DepositionRequests.WithLabelValues(r.method, "retry").Inc()
			limited.wait = retryAfter(resp.Header.Get("Retry-After"), s.opts.RateWait)
			limited.limited = true
			logger.Warningf("Rate limited (429). Waiting %v then retrying %s %s", limited.wait, r.method, r.url)
			return statusErr
		case resp.StatusCode >= 500:
			metrics.DepositionRequests.WithLabelValues(r.method, "retry").Inc()
			return statusErr
		default:
			metrics.DepositionRequests.WithLabelValues(r.method, "error").Inc()
			return backoff.Permanent(statusErr)
		}
	}
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return result, nil
}

func retryAfter(header string, def time.Duration) time.Duration {
	if header == "" {
		return def
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func (s *ZenodoService) doJSON(ctx context.Context, method, url string, in any, expect int, out any) error {
	var body []byte
	contentType := ""
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return err
		}
		contentType = "application/json"
	}
	data, err := s.do(ctx, request{method: method, url: url, body: body, contentType: contentType, expect: expect})
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, url, err)
	}
	return nil
}

func (s *ZenodoService) depositionURL(id DepositionId, suffix ...string) string {
	parts := append([]string{s.opts.BaseURL, string(id)}, suffix...)
	return strings.Join(parts, "/")
}

// TestConnection reports whether the depositions collection answers 200.
func (s *ZenodoService) TestConnection(ctx context.Context) bool {
	_, err := s.ListDepositions(ctx)
	if err != nil {
		logger.Warning("deposition API unreachable:", err)
		return false
	}
	return true
}

// TestFullConnection creates a deposition, uploads a small file to it and
// deletes it again.
func (s *ZenodoService) TestFullConnection(ctx context.Context) ConnectionReport {
	report := ConnectionReport{Success: true, Messages: []string{}}
	dep := &Deposition{}
	err := s.doJSON(ctx, http.MethodPost, s.opts.BaseURL, map[string]any{
		"metadata": map[string]any{
			"title":       "Test Deposition",
			"upload_type": "dataset",
			"description": "This is a test deposition created via Zenodo API",
			"creators":    []map[string]string{{"name": "John Doe"}},
		},
	}, http.StatusCreated, dep)
	if err != nil {
		return ConnectionReport{Success: false, Messages: []string{"Failed to create test deposition: " + err.Error()}}
	}

	content := []byte("This is a test file with some content.")
	if err := s.uploadBytes(ctx, dep.Id, "test_file.txt", content); err != nil {
		report.Success = false
		report.Messages = append(report.Messages, "Failed to upload test file: "+err.Error())
	}
	if _, err := s.do(ctx, request{method: http.MethodDelete, url: s.depositionURL(dep.Id), expect: http.StatusNoContent}); err != nil {
		report.Messages = append(report.Messages, "Failed to delete test deposition: "+err.Error())
	}
	return report
}

func (s *ZenodoService) ListDepositions(ctx context.Context) ([]Deposition, error) {
	var deps []Deposition
	err := s.doJSON(ctx, http.MethodGet, s.opts.BaseURL, nil, http.StatusOK, &deps)
	return deps, err
}

// DepositionMetadata maps a dataset onto Zenodo deposition metadata.
func DepositionMetadata(ds *model.DataSet) map[string]any {
	md := ds.DSMetaData
	uploadType := "publication"
	var publicationType any = string(md.PublicationType)
	if md.PublicationType == model.PublicationNone || md.PublicationType == "" {
		uploadType = "dataset"
		publicationType = nil
	}
	creators := make([]map[string]string, 0, len(md.Authors))
	for _, a := range md.Authors {
		c := map[string]string{"name": a.Name}
		if a.Affiliation != "" {
			c["affiliation"] = a.Affiliation
		}
		if a.Orcid != "" {
			c["orcid"] = a.Orcid
		}
		creators = append(creators, c)
	}
	keywords := []string{}
	for _, tag := range strings.Split(md.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			keywords = append(keywords, tag)
		}
	}
	keywords = append(keywords, "uvlhub")
	return map[string]any{
		"title":            md.Title,
		"upload_type":      uploadType,
		"publication_type": publicationType,
		"description":      md.Description,
		"creators":         creators,
		"keywords":         keywords,
		"access_right":     "open",
		"license":          "CC-BY-4.0",
	}
}

func (s *ZenodoService) CreateDeposition(ctx context.Context, ds *model.DataSet) (*Deposition, error) {
	dep := &Deposition{}
	err := s.doJSON(ctx, http.MethodPost, s.opts.BaseURL, map[string]any{"metadata": DepositionMetadata(ds)}, http.StatusCreated, dep)
	if err != nil {
		return nil, fmt.Errorf("create deposition: %w", err)
	}
	if dep.Id == "" {
		return nil, errors.New("create deposition: response has no id")
	}
	return dep, nil
}

// UploadFile sends the file at path as a multipart form named after its base name.
func (s *ZenodoService) UploadFile(ctx context.Context, id DepositionId, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.uploadBytes(ctx, id, filepath.Base(path), content)
}

func (s *ZenodoService) uploadBytes(ctx context.Context, id DepositionId, name string, content []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("name", name); err != nil {
		return err
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	_, err = s.do(ctx, request{
		method:      http.MethodPost,
		url:         s.depositionURL(id, "files"),
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
		expect:      http.StatusCreated,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func (s *ZenodoService) PublishDeposition(ctx context.Context, id DepositionId) (*Deposition, error) {
	dep := &Deposition{}
	if err := s.doJSON(ctx, http.MethodPost, s.depositionURL(id, "actions", "publish"), nil, http.StatusAccepted, dep); err != nil {
		return nil, fmt.Errorf("publish deposition %s: %w", id, err)
	}
	return dep, nil
}

func (s *ZenodoService) GetDeposition(ctx context.Context, id DepositionId) (*Deposition, error) {
	dep := &Deposition{}
	if err := s.doJSON(ctx, http.MethodGet, s.depositionURL(id), nil, http.StatusOK, dep); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get deposition %s: %w", id, err)
	}
	return dep, nil
}

// GetDOI returns the DOI of a deposition, empty while unpublished.
func (s *ZenodoService) GetDOI(ctx context.Context, id DepositionId) (string, error) {
	dep, err := s.GetDeposition(ctx, id)
	if err != nil {
		return "", err
	}
	return dep.Doi, nil
}
