package authdb

import (
	"fmt"
	"time"
)

// LintWarning is a valid but questionable setting.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint flags settings that pass Validate but weaken the deployment. It never
// fails; callers decide whether to log or reject.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if c.Password.Algorithm == AlgorithmPBKDF2 {
		if c.Password.Digest == "sha1" {
			add("digest_sha1", "pbkdf2 uses sha1; prefer sha256 or sha512 for new deployments")
		}
		if c.Password.Iterations < 100000 {
			add("iterations_low", "pbkdf2 iterations %d is below 100000", c.Password.Iterations)
		}
	}
	if !c.Password.Required {
		add("password_optional", "users may be created without a password")
	}
	if c.Password.MinLength < 8 {
		add("password_min_short", "password MinLength %d is below 8", c.Password.MinLength)
	}
	if c.Session.DefaultTTL > 30*24*time.Hour {
		add("session_ttl_long", "default session ttl %s exceeds 30 days", c.Session.DefaultTTL)
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "audit events are not emitted")
	}
	if c.Audit.Enabled && c.Audit.DropIfFull {
		add("audit_drop_if_full", "audit events are dropped under backpressure")
	}
	if !c.Timestamps.AutoStamp {
		add("timestamps_disabled", "records are not stamped with createdAt/updatedAt")
	}

	return ws
}
