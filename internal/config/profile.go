package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

// ProfileNames lists the configured profile names.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for n := range c.Profiles {
		names = append(names, n)
	}
	return names
}

// lookupProfile matches name exactly, then case-insensitively.
func (c *Config) lookupProfile(name string) (Profile, string, bool) {
	if p, ok := c.Profiles[name]; ok {
		return p, name, true
	}
	for n, p := range c.Profiles {
		if strings.EqualFold(n, name) {
			return p, n, true
		}
	}
	return Profile{}, "", false
}

// WithProfile returns a copy of c with the named overlay applied. The
// second result is the matched profile name, empty when none matched; c is
// returned unchanged in that case.
func (c *Config) WithProfile(name string) (*Config, string, error) {
	if name == "" {
		return c, "", nil
	}
	p, matched, ok := c.lookupProfile(name)
	if !ok {
		return c, "", nil
	}
	out := *c
	out.LogLevels = maps.Clone(c.LogLevels)
	if err := overlay(p.Settings, &out.Settings); err != nil {
		return nil, "", fmt.Errorf("profile %q settings: %w", matched, err)
	}
	if err := overlay(p.Discord, &out.Discord); err != nil {
		return nil, "", fmt.Errorf("profile %q discord: %w", matched, err)
	}
	if err := overlay(p.Telegram, &out.Telegram); err != nil {
		return nil, "", fmt.Errorf("profile %q telegram: %w", matched, err)
	}
	if len(p.LogLevels) > 0 {
		if out.LogLevels == nil {
			out.LogLevels = make(map[string]int, len(p.LogLevels))
		}
		maps.Copy(out.LogLevels, p.LogLevels)
	}
	out.applyDefaults()
	return &out, matched, nil
}

// overlay decodes raw onto dst so only the keys present in raw change.
func overlay(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
