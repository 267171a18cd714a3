package hec

import (
	"errors"
	"net/url"
	"time"

	"github.com/kon-rad/hec-ingest/internal/retry"
)

var (
	errEmptyURL = errors.New("URL must not be empty")
	errNotHTTP  = errors.New("URL must use http or https")
)

// Config configures a Client. New replaces a zero UserAgent, Timeout,
// MaxSockets, MaxQueueEntries, MaxRetries or RetryWaitTime with its
// default, so an explicit zero cannot be expressed for those fields.
// MaxQueueSize and FlushTime are pointers because both have a meaningful
// explicit-zero value: nil (not 0) is what "unset, apply the default"
// means for them. The boolean fields are used as given: a Config built
// as a struct literal has ValidateCertificate and RequestKeepAlive false
// (certificate verification and keep-alive off), while DefaultConfig
// returns both set to true.
type Config struct {
	// URL is the full collector endpoint, e.g.
	// "https://splunk.example.com:8088/services/collector".
	URL string
	// Token is the HEC token sent as "Authorization: Splunk <token>". A
	// null/empty Token is valid: the Authorization header is simply
	// omitted from every request.
	Token string

	UserAgent           string
	ValidateCertificate bool
	Timeout             time.Duration
	MaxSockets          int
	RequestKeepAlive    bool
	Gzip                bool

	// MultipleMetricFormatEnabled selects the single-envelope
	// "metric_name:<k>" encoding for MultiMetric instead of one envelope
	// per measurement.
	MultipleMetricFormatEnabled bool

	// MaxQueueSize is the byte threshold that triggers an eager flush
	// before a new message would push the queue over it. nil means
	// unset (the default applies); an explicit 0 disables the
	// byte-threshold trigger entirely.
	MaxQueueSize *int
	// MaxQueueEntries is the message-count threshold that triggers an
	// immediate flush. -1 disables the entry-count trigger.
	MaxQueueEntries int
	// FlushTime is how long the queue may sit idle before an automatic
	// flush fires. nil means unset (the default applies); an explicit 0
	// flushes on the next scheduler tick instead of ever idling.
	FlushTime *time.Duration

	MaxRetries    int
	RetryWaitTime retry.WaitLike

	DefaultMetadata Metadata
	DefaultFields   map[string]any
}

// DefaultConfig returns a Config with every documented default applied,
// missing only URL and Token.
func DefaultConfig() Config {
	maxQueueSize := 1 << 20 // 1MiB
	flushTime := 2 * time.Second
	return Config{
		UserAgent:           "hec-ingest-client",
		ValidateCertificate: true,
		Timeout:             30 * time.Second,
		MaxSockets:          256,
		RequestKeepAlive:    true,
		Gzip:                false,

		MaxQueueSize:    &maxQueueSize,
		MaxQueueEntries: -1,
		FlushTime:       &flushTime,

		MaxRetries:    3,
		RetryWaitTime: retry.Constant(2 * time.Second),
	}
}

// withDefaults returns a copy of cfg with every zero-valued field that has
// a documented default filled in. Fields whose zero value is meaningful
// (MaxQueueEntries=-1 to disable, Gzip=false, ValidateCertificate as
// given) are left alone unless genuinely unset in the zero-value sense
// that matters for that field.
func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxSockets == 0 {
		cfg.MaxSockets = def.MaxSockets
	}
	if cfg.MaxQueueSize == nil {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxQueueEntries == 0 {
		cfg.MaxQueueEntries = def.MaxQueueEntries
	}
	if cfg.FlushTime == nil {
		cfg.FlushTime = def.FlushTime
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryWaitTime == nil {
		cfg.RetryWaitTime = def.RetryWaitTime
	}
	return cfg
}

// validate rejects a Config that New cannot build a working client from.
func validate(cfg Config) error {
	if cfg.URL == "" {
		return &ConfigError{Field: "URL", Err: errEmptyURL}
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return &ConfigError{Field: "URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigError{Field: "URL", Err: errNotHTTP}
	}
	return nil
}

// ConfigOverrides is a partial Config for Clone: every field is optional,
// and a nil/zero pointer means "leave as-is" rather than "set to zero".
// DefaultFields, when non-nil, is deep-merged on top of the existing
// fields rather than replacing them wholesale.
type ConfigOverrides struct {
	URL                         *string
	Token                       *string
	UserAgent                   *string
	ValidateCertificate         *bool
	Timeout                     *time.Duration
	MaxSockets                  *int
	RequestKeepAlive            *bool
	Gzip                        *bool
	MultipleMetricFormatEnabled *bool
	MaxQueueSize                *int
	MaxQueueEntries             *int
	FlushTime                   *time.Duration
	MaxRetries                  *int
	RetryWaitTime               retry.WaitLike
	DefaultMetadata             *Metadata
	DefaultFields               map[string]any
}

func (o ConfigOverrides) isEmpty() bool {
	return o.URL == nil && o.Token == nil && o.UserAgent == nil &&
		o.ValidateCertificate == nil && o.Timeout == nil && o.MaxSockets == nil &&
		o.RequestKeepAlive == nil && o.Gzip == nil && o.MultipleMetricFormatEnabled == nil &&
		o.MaxQueueSize == nil && o.MaxQueueEntries == nil && o.FlushTime == nil &&
		o.MaxRetries == nil && o.RetryWaitTime == nil && o.DefaultMetadata == nil &&
		len(o.DefaultFields) == 0
}

// apply returns a deep-merged copy of base with every set override field
// applied.
func (o ConfigOverrides) apply(base Config) Config {
	out := base
	if o.URL != nil {
		out.URL = *o.URL
	}
	if o.Token != nil {
		out.Token = *o.Token
	}
	if o.UserAgent != nil {
		out.UserAgent = *o.UserAgent
	}
	if o.ValidateCertificate != nil {
		out.ValidateCertificate = *o.ValidateCertificate
	}
	if o.Timeout != nil {
		out.Timeout = *o.Timeout
	}
	if o.MaxSockets != nil {
		out.MaxSockets = *o.MaxSockets
	}
	if o.RequestKeepAlive != nil {
		out.RequestKeepAlive = *o.RequestKeepAlive
	}
	if o.Gzip != nil {
		out.Gzip = *o.Gzip
	}
	if o.MultipleMetricFormatEnabled != nil {
		out.MultipleMetricFormatEnabled = *o.MultipleMetricFormatEnabled
	}
	if o.MaxQueueSize != nil {
		out.MaxQueueSize = o.MaxQueueSize
	}
	if o.MaxQueueEntries != nil {
		out.MaxQueueEntries = *o.MaxQueueEntries
	}
	if o.FlushTime != nil {
		out.FlushTime = o.FlushTime
	}
	if o.MaxRetries != nil {
		out.MaxRetries = *o.MaxRetries
	}
	if o.RetryWaitTime != nil {
		out.RetryWaitTime = o.RetryWaitTime
	}
	if o.DefaultMetadata != nil {
		out.DefaultMetadata = *o.DefaultMetadata
	}
	if len(o.DefaultFields) > 0 {
		out.DefaultFields = deepMergeFields(out.DefaultFields, o.DefaultFields)
	}
	return out
}

// deepMergeFields mirrors serialize's field-merge semantics: nested maps
// recurse, anything else is replaced wholesale by overlay.
func deepMergeFields(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if baseVal, ok := out[k]; ok {
			baseMap, baseIsMap := baseVal.(map[string]any)
			overlayMap, overlayIsMap := v.(map[string]any)
			if baseIsMap && overlayIsMap {
				out[k] = deepMergeFields(baseMap, overlayMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}
