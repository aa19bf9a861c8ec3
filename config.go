package telemetry

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
)

// Parameter names understood by the listener.
const (
	KeyTestName               = "testName"
	KeyConnectionString       = "connectionString"
	KeyLicenceKey             = "licenceKey"
	KeySamplersList           = "samplersList"
	KeyUseRegexForSamplerList = "useRegexForSamplerList"
	KeyMetricBatchSize        = "metricBatchSize"
	KeyResponseHeaders        = "responseHeaders"

	// CustomPropertyPrefix marks parameters that are copied onto every observation.
	CustomPropertyPrefix = "ai."
)

const (
	DefaultTestName = "jmeter"

	// IngestProvider is the value of the ingestProvider common attribute.
	IngestProvider = "JMETER"
)

// HeaderList is a list of lowercase response header names.
type HeaderList []string

var headerListSeparator = regexp.MustCompile(`\s*` + SamplerListSeparator + `\s*`)

// ParseHeaderList splits a header list parameter such as "X-Foo ; X-Bar" into lowercase names.
func ParseHeaderList(list string) HeaderList {
	list = strings.ToLower(strings.TrimSpace(list))

	if list == "" {
		return nil
	}

	var names HeaderList

	for _, name := range headerListSeparator.Split(list, -1) {
		if name != "" {
			names = append(names, name)
		}
	}

	return names
}

// Config is the listener configuration built from the host's parameters.
type Config struct {
	TestName               string     `mapstructure:"testName"`
	ConnectionString       string     `mapstructure:"connectionString"`
	LicenceKey             string     `mapstructure:"licenceKey"`
	SamplersList           string     `mapstructure:"samplersList"`
	UseRegexForSamplerList bool       `mapstructure:"useRegexForSamplerList"`
	MetricBatchSize        int        `mapstructure:"metricBatchSize"`
	ResponseHeaders        HeaderList `mapstructure:"responseHeaders"`

	// CustomProperties holds every parameter starting with CustomPropertyPrefix, keyed by its full name.
	CustomProperties Attributes `mapstructure:"-"`

	// filter is built from SamplersList while validating.
	filter *SamplerFilter
}

// DefaultParameters returns the parameters the listener accepts, with their default values.
func DefaultParameters() map[string]string {
	return map[string]string{
		KeyTestName:               DefaultTestName,
		KeyConnectionString:       DefaultEndpoint,
		KeyLicenceKey:             "",
		KeySamplersList:           "",
		KeyUseRegexForSamplerList: strconv.FormatBool(false),
		KeyMetricBatchSize:        strconv.Itoa(DefaultBatchSize),
	}
}

// ParseConfig decodes the host's parameters over the defaults.
// It returns a *ConfigurationError listing every problem found.
func ParseConfig(params map[string]string) (Config, error) {
	cfg := Config{
		TestName:         DefaultTestName,
		ConnectionString: DefaultEndpoint,
		MetricBatchSize:  DefaultBatchSize,
		CustomProperties: Attributes{},
	}

	input := make(map[string]interface{}, len(params))

	for key, val := range params {
		if strings.HasPrefix(key, CustomPropertyPrefix) {
			cfg.CustomProperties[key] = val
		} else {
			input[key] = val
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       HeaderListHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}

	if err := decoder.Decode(input); err != nil {
		return Config{}, &ConfigurationError{Err: err}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, &ConfigurationError{Err: err}
	}

	return cfg, nil
}

// Filter returns the sampler filter built from SamplersList.
func (cfg Config) Filter() *SamplerFilter {
	return cfg.filter
}

func (cfg *Config) validate() error {
	var result *multierror.Error

	if err := validateEndpoint(cfg.ConnectionString); err != nil {
		result = multierror.Append(result, err)
	}

	if cfg.LicenceKey == "" {
		result = multierror.Append(result, errors.New("licence key is required"))
	}

	if cfg.MetricBatchSize <= 0 {
		result = multierror.Append(result, errors.New("metric batch size must be positive"))
	}

	filter, err := NewSamplerFilter(cfg.SamplersList, cfg.UseRegexForSamplerList)
	if err != nil {
		result = multierror.Append(result, err)
	} else {
		cfg.filter = filter
	}

	return result.ErrorOrNil()
}

// HeaderListHookFunc decodes a header list parameter into a HeaderList.
func HeaderListHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(HeaderList{}) {
			return data, nil
		}

		return ParseHeaderList(data.(string)), nil
	}
}
