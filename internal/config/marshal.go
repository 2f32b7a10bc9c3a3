// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"encoding/json"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"gopkg.in/yaml.v3"
)

// Format names an output encoding for Marshal.
type Format string

const (
	FormatHCL  Format = "hcl"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// MarshalHCL renders c as an HCL document. Nil blocks are omitted.
func (c *Config) MarshalHCL() []byte {
	f := hclwrite.NewEmptyFile()
	gohcl.EncodeIntoBody(c, f.Body())
	return hclwrite.Format(f.Bytes())
}

// Marshal renders c in the requested format. The output of each format
// loads back through the matching Load function.
func (c *Config) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(c, "", "  ")
	case FormatYAML:
		return yaml.Marshal(c)
	default:
		return c.MarshalHCL(), nil
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	if c.Tools != nil {
		t := *c.Tools
		out.Tools = &t
	}
	if c.Mitigation != nil {
		m := *c.Mitigation
		out.Mitigation = &m
	}
	if c.Hostapd != nil {
		h := *c.Hostapd
		h.Hardening = append([]string(nil), c.Hostapd.Hardening...)
		out.Hostapd = &h
	}
	if c.Webapp != nil {
		w := *c.Webapp
		w.Extensions = append([]string(nil), c.Webapp.Extensions...)
		out.Webapp = &w
	}
	if c.Reset != nil {
		r := *c.Reset
		r.Interfaces = append([]string(nil), c.Reset.Interfaces...)
		out.Reset = &r
	}
	if c.ActionLog != nil {
		a := *c.ActionLog
		out.ActionLog = &a
	}
	if c.API != nil {
		a := *c.API
		out.API = &a
	}
	if c.Logging != nil {
		l := *c.Logging
		if c.Logging.Syslog != nil {
			s := *c.Logging.Syslog
			l.Syslog = &s
		}
		out.Logging = &l
	}
	if c.Notifications != nil {
		n := *c.Notifications
		n.Channels = make([]NotificationChannel, len(c.Notifications.Channels))
		for i, ch := range c.Notifications.Channels {
			ch.To = append([]string(nil), ch.To...)
			if ch.Headers != nil {
				h := make(map[string]string, len(ch.Headers))
				for k, v := range ch.Headers {
					h[k] = v
				}
				ch.Headers = h
			}
			n.Channels[i] = ch
		}
		out.Notifications = &n
	}
	return &out
}
