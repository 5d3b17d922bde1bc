// Package decoder resolves aggregator redirect tokens to publisher URLs through
// the aggregator's batch-RPC endpoint.
package decoder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/failure"
)

const (
	DefaultEndpoint = "https://news.google.com"
	DefaultTimeout  = 10 * time.Second
	// DefaultRequestsPerSecond throttles decode calls so a large feed does not trip upstream rate limits.
	DefaultRequestsPerSecond = 2.0
	DefaultBurst             = 2

	batchExecutePath = "/_/DotsSplashUi/data/batchexecute"
	rpcID            = "Fbv4je"
	envelopePrefix   = ")]}'"
	resultTag        = "garturlres"
	maxResponseBytes = 1 << 20
)

// aggregatorHosts serve obfuscated article links. Publisher URLs that happen
// to contain an /articles/ path are not tokens.
var aggregatorHosts = map[string]bool{
	"news.google.com": true,
}

// ErrEmptyToken is returned when there is nothing to decode.
var ErrEmptyToken = errors.New("empty token")

// DecodeError is a failed decode. Retryability lives on the wrapped failure.
type DecodeError struct {
	Token   string
	Failure *failure.Error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode token %q: %v", e.Token, e.Failure)
}

func (e *DecodeError) Unwrap() error { return e.Failure }

// Config configures a Decoder.
type Config struct {
	Endpoint          string        `env:"DECODER_ENDPOINT"            yaml:"endpoint"`
	Timeout           time.Duration `env:"DECODER_TIMEOUT"             yaml:"timeout"`
	RequestsPerSecond float64       `env:"DECODER_REQUESTS_PER_SECOND" yaml:"requests_per_second"`
	Burst             int           `env:"DECODER_BURST"               yaml:"burst"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Timeout <= 0 || c.Timeout > DefaultTimeout {
		c.Timeout = DefaultTimeout
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
}

// Decoder issues one batch-RPC request per token. It never retries.
type Decoder struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	limiter  *rate.Limiter
	log      logger.Logger
}

// New creates a Decoder. A nil client gets a plain client bounded by cfg.Timeout.
func New(cfg Config, client *http.Client, log logger.Logger) *Decoder {
	cfg.SetDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Decoder{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		timeout:  cfg.Timeout,
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:      log,
	}
}

// TokenFromLink returns the last path segment of an aggregator article link
// such as https://news.google.com/rss/articles/<token>?oc=5. Links on any
// other host are rejected.
func TokenFromLink(link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}
	if !aggregatorHosts[strings.ToLower(u.Hostname())] {
		return "", fmt.Errorf("link %q is not an aggregator link", link)
	}
	path := strings.TrimRight(u.Path, "/")
	idx := strings.LastIndex(path, "/articles/")
	if idx < 0 {
		return "", fmt.Errorf("link %q has no articles path", link)
	}
	token := path[idx+len("/articles/"):]
	if token == "" || strings.Contains(token, "/") {
		return "", fmt.Errorf("link %q has no token", link)
	}
	return token, nil
}

// Resolve exchanges token for the publisher URL it points at.
func (d *Decoder) Resolve(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", d.permanent(token, failure.KindProtocol, ErrEmptyToken)
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return "", &DecodeError{Token: token, Failure: failure.ClassifyNetworkError(err, d.endpoint)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	target := d.endpoint + batchExecutePath + "?rpcids=" + rpcID
	form := url.Values{"f.req": {requestPayload(token)}}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return "", d.permanent(token, failure.KindInvalidURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return "", &DecodeError{Token: token, Failure: failure.ClassifyNetworkError(err, target)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &DecodeError{Token: token, Failure: failure.ClassifyHTTPStatus(resp.StatusCode, target)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &DecodeError{Token: token, Failure: failure.ClassifyNetworkError(err, target)}
	}

	resolved, err := parseResponse(body)
	if err != nil {
		return "", d.permanent(token, failure.KindProtocol, err)
	}

	d.log.Debug("Token decoded",
		logger.URL(resolved),
		logger.Duration("duration", time.Since(start)),
	)
	return resolved, nil
}

func (d *Decoder) permanent(token string, kind failure.Kind, cause error) *DecodeError {
	return &DecodeError{Token: token, Failure: failure.Permanent(kind, cause, d.endpoint)}
}

// requestPayload builds the f.req value. The locale block and the trailing
// timestamp pair are fixed values the endpoint expects.
func requestPayload(token string) string {
	inner := `["garturlreq",[["en-US","US",["FINANCE_TOP_INDICES","WEB_TEST_1_0_0"],` +
		`null,null,1,1,"US:en",null,180,null,null,null,null,null,0,null,null,[1608992183,723341000]],` +
		`"en-US","US",1,[2,3,4,8],1,0,"655000234",0,0,null,0],` + jsonString(token) + `]`
	return `[[["` + rpcID + `",` + jsonString(inner) + `,null,"generic"]]]`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// parseResponse walks the envelope lines for the wrb.fr row of our rpc and
// decodes the JSON string it carries.
func parseResponse(body []byte) (string, error) {
	text := strings.TrimPrefix(strings.TrimSpace(string(body)), envelopePrefix)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "[") {
			continue
		}

		var rows []json.RawMessage
		if err := json.Unmarshal([]byte(line), &rows); err != nil {
			continue
		}

		for _, raw := range rows {
			var row []any
			if err := json.Unmarshal(raw, &row); err != nil || len(row) < 3 {
				continue
			}
			if tag, _ := row[0].(string); tag != "wrb.fr" {
				continue
			}
			if id, _ := row[1].(string); id != rpcID {
				continue
			}
			payload, ok := row[2].(string)
			if !ok {
				return "", errors.New("result payload missing")
			}
			return extractURL(payload)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan envelope: %w", err)
	}
	return "", errors.New("result row not found in envelope")
}

func extractURL(payload string) (string, error) {
	var result []any
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return "", fmt.Errorf("unparsable result payload: %w", err)
	}
	if len(result) < 2 {
		return "", errors.New("result payload too short")
	}
	if tag, _ := result[0].(string); tag != resultTag {
		return "", fmt.Errorf("unexpected result tag %v", result[0])
	}
	resolved, _ := result[1].(string)
	resolved = strings.TrimSpace(resolved)
	if resolved == "" {
		return "", errors.New("empty url in result")
	}
	return resolved, nil
}
