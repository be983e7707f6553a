package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Limit is a fixed-window allowance.
type Limit struct {
	MaxRequests int           `mapstructure:"maxRequests"`
	Window      time.Duration `mapstructure:"window"`
}

// RateLimitPolicy is the reloadable part of rate limiting: a default limit and
// per-route overrides keyed by gin route pattern.
type RateLimitPolicy struct {
	Default   Limit            `mapstructure:"default"`
	Endpoints map[string]Limit `mapstructure:"endpoints"`
}

// For returns the limit that applies to endpoint.
func (p RateLimitPolicy) For(endpoint string) Limit {
	if l, ok := p.Endpoints[strings.TrimSpace(endpoint)]; ok {
		return l
	}
	return p.Default
}

type RateLimitHolder struct {
	current atomic.Value // holds RateLimitPolicy
	log     *zap.Logger
}

func NewRateLimitHolder(cfg Config, log *zap.Logger) (*RateLimitHolder, error) {
	v := viper.New()

	v.SetConfigName("ratelimit")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/fieldops")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FIELDOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return newRateLimitHolder(v, cfg.RateLimit, log, true)
}

func newRateLimitHolder(v *viper.Viper, base RateLimitConfig, log *zap.Logger, watch bool) (*RateLimitHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v.SetDefault("ratelimit.default.maxRequests", base.MaxRequests)
	v.SetDefault("ratelimit.default.window", base.Window)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	policy, err := decodeRateLimitPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := &RateLimitHolder{log: log.Named("config.ratelimit")}
	holder.current.Store(policy)

	if watch && found {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			holder.reload(v, e.Name)
		})
	}
	return holder, nil
}

func (h *RateLimitHolder) reload(v *viper.Viper, source string) {
	updated, err := decodeRateLimitPolicy(v)
	if err != nil {
		h.log.Warn("rate limit config ignored", zap.String("source", source), zap.Error(err))
		return
	}
	h.current.Store(updated)
	h.log.Info("rate limit config reloaded", zap.String("source", source))
}

func (h *RateLimitHolder) Get() RateLimitPolicy {
	return h.current.Load().(RateLimitPolicy)
}

func decodeRateLimitPolicy(v *viper.Viper) (RateLimitPolicy, error) {
	var policy RateLimitPolicy
	if err := v.UnmarshalKey("ratelimit", &policy); err != nil {
		return RateLimitPolicy{}, err
	}
	if err := validateRateLimitPolicy(policy); err != nil {
		return RateLimitPolicy{}, err
	}
	return policy, nil
}

func validateRateLimitPolicy(p RateLimitPolicy) error {
	if p.Default.MaxRequests <= 0 {
		return errors.New("ratelimit.default.maxRequests must be positive")
	}
	if p.Default.Window <= 0 {
		return errors.New("ratelimit.default.window must be positive")
	}
	for route, l := range p.Endpoints {
		if l.MaxRequests <= 0 || l.Window <= 0 {
			return errors.New("ratelimit.endpoints." + route + " must be positive")
		}
	}
	return nil
}
