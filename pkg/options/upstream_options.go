package options

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*UpstreamOptions)(nil)

const (
	StrategyAPI    = "api"
	StrategyScrape = "scrape"
)

// UpstreamOptions describes how vehicle data is retrieved from the register.
type UpstreamOptions struct {
	// Strategy is either "api" (structured JSON, needs a key) or "scrape" (public HTML search).
	Strategy string `json:"strategy" mapstructure:"strategy"`

	APIURL    string `json:"api-url" mapstructure:"api-url"`
	SearchURL string `json:"search-url" mapstructure:"search-url"`

	// KeyHeader is sent verbatim; the register expects the upper-case name.
	KeyHeader string `json:"key-header" mapstructure:"key-header"`

	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
	PolitenessDelay time.Duration `json:"politeness-delay" mapstructure:"politeness-delay"`
	UserAgent       string        `json:"user-agent" mapstructure:"user-agent"`

	RegistrationURL  string `json:"registration-url" mapstructure:"registration-url"`
	DocumentationURL string `json:"documentation-url" mapstructure:"documentation-url"`
}

// NewUpstreamOptions returns options pointing at the public dataovozidlech.cz endpoints.
func NewUpstreamOptions() *UpstreamOptions {
	return &UpstreamOptions{
		Strategy:         StrategyAPI,
		APIURL:           "https://api.dataovozidlech.cz/api/vehicletechnicaldata/v2",
		SearchURL:        "https://www.dataovozidlech.cz/vyhledavani",
		KeyHeader:        "API_KEY",
		Timeout:          10 * time.Second,
		PolitenessDelay:  time.Second,
		UserAgent:        "stkwatch/0.4.1",
		RegistrationURL:  "https://dataovozidlech.cz/registrace-api",
		DocumentationURL: "https://dataovozidlech.cz/api-dokumentace",
	}
}

func (o *UpstreamOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	switch o.Strategy {
	case StrategyAPI:
		if _, err := url.ParseRequestURI(o.APIURL); err != nil {
			errors = append(errors, fmt.Errorf("--upstream.api-url: %w", err))
		}
		if o.KeyHeader == "" {
			errors = append(errors, fmt.Errorf("--upstream.key-header must not be empty"))
		}
	case StrategyScrape:
		if _, err := url.ParseRequestURI(o.SearchURL); err != nil {
			errors = append(errors, fmt.Errorf("--upstream.search-url: %w", err))
		}
	default:
		errors = append(errors, fmt.Errorf("--upstream.strategy must be %q or %q, got %q", StrategyAPI, StrategyScrape, o.Strategy))
	}

	if o.Timeout <= 0 {
		errors = append(errors, fmt.Errorf("--upstream.timeout must be positive"))
	}
	if o.PolitenessDelay < 0 {
		errors = append(errors, fmt.Errorf("--upstream.politeness-delay must not be negative"))
	}

	return errors
}

func (o *UpstreamOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Strategy, "upstream.strategy", o.Strategy, "Fetch strategy: 'api' (JSON API, requires a key) or 'scrape' (public search page).")
	fs.StringVar(&o.APIURL, "upstream.api-url", o.APIURL, "Base URL of the vehicle technical data API.")
	fs.StringVar(&o.SearchURL, "upstream.search-url", o.SearchURL, "URL of the public vehicle search page.")
	fs.StringVar(&o.KeyHeader, "upstream.key-header", o.KeyHeader, "Request header carrying the API key.")
	fs.DurationVar(&o.Timeout, "upstream.timeout", o.Timeout, "Timeout for a single upstream request.")
	fs.DurationVar(&o.PolitenessDelay, "upstream.politeness-delay", o.PolitenessDelay, "Delay between the token request and the search request when scraping.")
	fs.StringVar(&o.UserAgent, "upstream.user-agent", o.UserAgent, "User-Agent sent to the API.")
	fs.StringVar(&o.RegistrationURL, "upstream.registration-url", o.RegistrationURL, "Where users register for an API key.")
	fs.StringVar(&o.DocumentationURL, "upstream.documentation-url", o.DocumentationURL, "API documentation URL.")
}
