package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/autopeer-io/stkwatch/internal/stkagent/core"
	"github.com/autopeer-io/stkwatch/pkg/options"
)

// envelope is the API response wrapper.
type envelope struct {
	Status int `json:"Status"`
	Data   any `json:"Data"`
}

// APIFetcher queries the keyed technical data API.
type APIFetcher struct {
	client *resty.Client

	url              string
	keyHeader        string
	registrationURL  string
	documentationURL string
}

var _ Fetcher = (*APIFetcher)(nil)

func NewAPIFetcher(opts *options.UpstreamOptions) *APIFetcher {
	c := newSession(opts.Timeout, opts.UserAgent).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &APIFetcher{
		client:           c,
		url:              opts.APIURL,
		keyHeader:        opts.KeyHeader,
		registrationURL:  opts.RegistrationURL,
		documentationURL: opts.DocumentationURL,
	}
}

func (f *APIFetcher) Source() core.Source { return core.SourceAPI }

func (f *APIFetcher) Close() error { return closeSession(f.client) }

// Fetch performs GET <url>?vin=<VIN>. A vehicle without a key fails with
// KindMissingCredential before any request is made.
func (f *APIFetcher) Fetch(ctx context.Context, q core.VehicleQuery) (*core.RawRecord, error) {
	if !q.HasCredential() {
		return nil, core.MissingCredential(f.registrationURL, f.documentationURL)
	}

	started := time.Now()
	resp, err := f.request(ctx, q.VIN, q.APIKey)
	observe(core.SourceAPI, resp, started)
	if err != nil {
		return nil, classify(err)
	}

	switch code := resp.StatusCode(); code {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, &core.Error{Kind: core.KindInvalidCredential, StatusCode: code, Message: "API key rejected"}
	case http.StatusNotFound:
		return nil, &core.Error{Kind: core.KindNotFound, StatusCode: code, Message: "vehicle not found"}
	case http.StatusTooManyRequests:
		return nil, &core.Error{Kind: core.KindRateLimitedUpstream, StatusCode: code, Message: "upstream rate limit reached"}
	default:
		return nil, core.HTTPError(code)
	}

	env, err := decodeEnvelope(resp.Body())
	if err != nil {
		return nil, core.WrapError(core.KindParse, err, "decode API response")
	}
	return &core.RawRecord{
		Source: core.SourceAPI,
		Status: env.Status,
		Data:   env.Data,
		Body:   resp.Body(),
	}, nil
}

func (f *APIFetcher) request(ctx context.Context, vin, key string) (*resty.Response, error) {
	return f.client.R().
		SetContext(ctx).
		SetHeaderVerbatim(f.keyHeader, key).
		SetQueryParam("vin", vin).
		Get(f.url)
}

// decodeEnvelope keeps numbers as json.Number so integer fields survive intact.
func decodeEnvelope(body []byte) (*envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	env := &envelope{}
	if err := dec.Decode(env); err != nil {
		return nil, err
	}
	return env, nil
}

// ProbeResult is the raw outcome of a diagnostic API call.
type ProbeResult struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       string              `json:"body"`
	JSON       any                 `json:"json,omitempty"`
	ParseError string              `json:"parse_error,omitempty"`
}

// Probe issues a single API request and reports the raw response without
// interpreting it. Only transport failures are returned as errors.
func (f *APIFetcher) Probe(ctx context.Context, vin, key string) (*ProbeResult, error) {
	started := time.Now()
	resp, err := f.request(ctx, vin, key)
	observe(core.SourceAPI, resp, started)
	if err != nil {
		return nil, classify(err)
	}

	res := &ProbeResult{
		StatusCode: resp.StatusCode(),
		Headers:    resp.Header(),
		Body:       string(resp.Body()),
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		res.ParseError = err.Error()
	} else {
		res.JSON = v
	}
	return res, nil
}
