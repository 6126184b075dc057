package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/batch"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/record"
)

const (
	DefaultBaseURL = "https://firestore.googleapis.com/v1"
	defaultTimeout = 30 * time.Second
	maxRetries     = 5
	maxBackoff     = 32 // seconds
	listPageSize   = 300

	// MaxWritesPerCommit is the store's limit on writes in one commit.
	MaxWritesPerCommit = 500
)

// Firestore is a Store backed by the Cloud Firestore REST API.
type Firestore struct {
	httpClient *http.Client
	baseURL    string
	project    string
	database   string
	limiter    *rate.Limiter
	logger     *slog.Logger
	backoff    func(attempt int) time.Duration
}

// Option configures a Firestore client.
type Option func(*Firestore)

// WithHTTPClient replaces the HTTP client. The token source passed to
// NewFirestore is ignored when this is set.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Firestore) {
		f.httpClient = c
	}
}

// WithBaseURL points the client at another endpoint, such as the emulator.
func WithBaseURL(u string) Option {
	return func(f *Firestore) {
		f.baseURL = strings.TrimRight(u, "/")
	}
}

// WithDatabase selects a named database instead of "(default)".
func WithDatabase(name string) Option {
	return func(f *Firestore) {
		f.database = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Firestore) {
		f.logger = logger
	}
}

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(qps float64) Option {
	return func(f *Firestore) {
		if qps <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(qps)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

// WithBackoff overrides the retry delay schedule.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(f *Firestore) {
		f.backoff = fn
	}
}

// NewFirestore creates a client for project. Requests are authorized with
// ts unless WithHTTPClient is given.
func NewFirestore(project string, ts oauth2.TokenSource, opts ...Option) (*Firestore, error) {
	if project == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}
	f := &Firestore{
		baseURL:  DefaultBaseURL,
		project:  project,
		database: "(default)",
		logger:   slog.Default(),
		backoff:  jitteredBackoff,
	}
	WithRateLimit(10)(f)
	for _, opt := range opts {
		opt(f)
	}
	if f.httpClient == nil {
		if ts == nil {
			return nil, fmt.Errorf("firestore client needs a token source")
		}
		f.httpClient = oauth2.NewClient(context.Background(), ts)
		f.httpClient.Timeout = defaultTimeout
	}
	return f, nil
}

func (f *Firestore) documentsURL() string {
	return fmt.Sprintf("%s/projects/%s/databases/%s/documents", f.baseURL, f.project, f.database)
}

func (f *Firestore) documentName(collection, id string) string {
	return fmt.Sprintf("projects/%s/databases/%s/documents/%s/%s", f.project, f.database, collection, id)
}

// List returns every document in collection, following page tokens.
func (f *Firestore) List(ctx context.Context, collection string) ([]record.Record, error) {
	var out []record.Record
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("pageSize", fmt.Sprint(listPageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		reqURL := f.documentsURL() + "/" + url.PathEscape(collection) + "?" + q.Encode()

		body, err := f.request(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}

		var resp listDocumentsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, eris.Wrapf(err, "decode list %s response", collection)
		}
		for _, doc := range resp.Documents {
			r, err := doc.toRecord()
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", collection, err)
			}
			out = append(out, r)
		}

		f.logger.Debug("listed page", "collection", collection, "documents", len(resp.Documents), "total", len(out))
		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

// Query returns documents in collection whose field equals value.
func (f *Firestore) Query(ctx context.Context, collection, field string, value any) ([]record.Record, error) {
	payload := map[string]any{
		"structuredQuery": map[string]any{
			"from": []any{map[string]any{"collectionId": collection}},
			"where": map[string]any{
				"fieldFilter": map[string]any{
					"field": map[string]any{"fieldPath": quoteFieldPath(field)},
					"op":    "EQUAL",
					"value": encodeValue(value),
				},
			},
		},
	}

	body, err := f.request(ctx, http.MethodPost, f.documentsURL()+":runQuery", payload)
	if err != nil {
		return nil, fmt.Errorf("query %s where %s: %w", collection, field, err)
	}

	var results []runQueryResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrapf(err, "decode query %s response", collection)
	}
	var out []record.Record
	for _, res := range results {
		if res.Document == nil {
			continue
		}
		r, err := res.Document.toRecord()
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Update sets fields on an existing document. A missing document yields
// *NotFoundError rather than creating it.
func (f *Firestore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	q := url.Values{}
	for _, p := range fieldPaths(fields) {
		q.Add("updateMask.fieldPaths", p)
	}
	q.Set("currentDocument.exists", "true")
	reqURL := f.documentsURL() + "/" + url.PathEscape(collection) + "/" + url.PathEscape(id) + "?" + q.Encode()

	if _, err := f.request(ctx, http.MethodPatch, reqURL, map[string]any{"fields": encodeFields(fields)}); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

// BatchUpdate applies fields to every id using atomic commits of at most
// MaxWritesPerCommit writes. If a later commit fails after earlier ones
// succeeded, the error is a *PartialError listing both sets.
func (f *Firestore) BatchUpdate(ctx context.Context, collection string, ids []string, fields map[string]any) error {
	chunks, err := batch.Partition(ids, MaxWritesPerCommit)
	if err != nil {
		return err
	}
	mask := fieldPaths(fields)
	encoded := encodeFields(fields)

	var committed []string
	for i, chunk := range chunks {
		writes := make([]any, len(chunk))
		for j, id := range chunk {
			writes[j] = map[string]any{
				"update": map[string]any{
					"name":   f.documentName(collection, id),
					"fields": encoded,
				},
				"updateMask":      map[string]any{"fieldPaths": mask},
				"currentDocument": map[string]any{"exists": true},
			}
		}

		if _, err := f.request(ctx, http.MethodPost, f.documentsURL()+":commit", map[string]any{"writes": writes}); err != nil {
			err = fmt.Errorf("commit %s batch %d/%d: %w", collection, i+1, len(chunks), err)
			if len(committed) == 0 {
				return err
			}
			return &PartialError{
				Committed: committed,
				Failed:    ids[len(committed):],
				Err:       err,
			}
		}
		committed = append(committed, chunk...)
		f.logger.Debug("committed batch", "collection", collection, "batch", i+1, "writes", len(chunk))
	}
	return nil
}

// request performs one API call with rate limiting and retries on
// throttling and server errors.
func (f *Firestore) request(ctx context.Context, method, reqURL string, payload any) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := f.backoff(attempt)
			f.logger.Debug("retrying request", "attempt", attempt, "backoff", wait, "method", method, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = eris.Wrap(err, "http request")
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = eris.Wrap(err, "read response")
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			lastErr = parseAPIError(resp.StatusCode, respBody)
			continue
		case http.StatusNotFound:
			return nil, &NotFoundError{Path: req.URL.Path}
		default:
			return nil, parseAPIError(resp.StatusCode, respBody)
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// jitteredBackoff is exponential backoff with full jitter.
func jitteredBackoff(attempt int) time.Duration {
	base := float64(uint(1) << uint(attempt))
	if base > maxBackoff {
		base = maxBackoff
	}
	return time.Duration(rand.Float64() * base * float64(time.Second))
}

func parseAPIError(code int, body []byte) *APIError {
	var env struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: code}
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		apiErr.Message = env.Error.Message
		apiErr.Status = env.Error.Status
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

var simpleFieldPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z_0-9]*$`)

// quoteFieldPath backquotes a field name that is not a plain identifier.
func quoteFieldPath(name string) string {
	if simpleFieldPath.MatchString(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

func fieldPaths(fields map[string]any) []string {
	paths := make([]string, 0, len(fields))
	for k := range fields {
		paths = append(paths, quoteFieldPath(k))
	}
	sort.Strings(paths)
	return paths
}

type document struct {
	Name   string                     `json:"name"`
	Fields map[string]json.RawMessage `json:"fields"`
}

func (d document) toRecord() (record.Record, error) {
	id := d.Name
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	fields, err := decodeFields(d.Fields)
	if err != nil {
		return record.Record{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return record.New(id, fields), nil
}

type listDocumentsResponse struct {
	Documents     []document `json:"documents"`
	NextPageToken string     `json:"nextPageToken"`
}

type runQueryResult struct {
	Document *document `json:"document"`
	ReadTime string    `json:"readTime"`
}
