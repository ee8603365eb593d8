package config

import (
	"hash/fnv"
	"reflect"
	"strings"

	logx "almanac/pkg/logx"
)

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// SummarizeChange lists the sections that differ between two configs and
// returns log fields describing the new values. Tokens are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot != nt {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(nt.Token) != ""),
			logx.String("telegram.default_target", nt.DefaultTarget),
			logx.Int("telegram.rate_per_sec", nt.RatePerSec),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}

	if oldCfg.Driver != newCfg.Driver {
		changed = append(changed, "driver")
		attrs = append(attrs,
			logx.String("driver.tick", newCfg.Driver.Tick),
			logx.String("driver.delivery_timeout", newCfg.Driver.DeliveryTimeout),
		)
	}

	if oldCfg.Defaults != newCfg.Defaults {
		changed = append(changed, "defaults")
		attrs = append(attrs, logx.String("defaults.timezone", newCfg.Defaults.Timezone))
	}

	om, nm := oldCfg.Metrics, newCfg.Metrics
	if om.Enabled != nm.Enabled || om.Addr != nm.Addr || om.Path != nm.Path ||
		om.AllowInsecure != nm.AllowInsecure || om.Token != nm.Token {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", nm.Enabled),
			logx.String("metrics.addr", nm.Addr),
			logx.Bool("metrics.token_set", nm.Token != ""),
		)
	}

	if oldCfg.Extensions != newCfg.Extensions {
		changed = append(changed, "extensions")
		attrs = append(attrs,
			logx.Bool("extensions.calendar", newCfg.Extensions.Calendar.Enabled),
			logx.Bool("extensions.weather", newCfg.Extensions.Weather.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Tenants, newCfg.Tenants) {
		changed = append(changed, "tenants")
		attrs = append(attrs, logx.Int("tenants.count", len(newCfg.Tenants)))
	}

	return changed, attrs
}

// RestartRequired reports changes that only take effect on a process restart.
func RestartRequired(oldCfg, newCfg *Config) bool {
	if oldCfg == nil || newCfg == nil {
		return false
	}
	return oldCfg.Storage != newCfg.Storage ||
		oldCfg.Extensions != newCfg.Extensions ||
		oldCfg.Driver != newCfg.Driver ||
		oldCfg.Defaults != newCfg.Defaults ||
		oldCfg.Telegram != newCfg.Telegram
}
