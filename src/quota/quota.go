// Package quota decides whether a download may happen and, if so, records it.
// Deciding and recording are one atomic step so concurrent requests can never
// push a client past its daily limit.
package quota

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/illustory/gallery/src/auditlog"
	"github.com/illustory/gallery/src/config"
	"github.com/illustory/gallery/src/models"
	"github.com/illustory/gallery/src/oops"
)

type DenyReason string

const (
	ReasonNetworkLimit    DenyReason = "NETWORK_LIMIT"
	ReasonIdentifierLimit DenyReason = "IDENTIFIER_LIMIT"
)

// The grant would have been fine quota-wise, but there is nothing visible to
// download. Nothing is recorded in this case.
var ErrUnknownIllustration = errors.New("unknown illustration")

type Ledger interface {
	// Checks every axis the policy enables and, only if all of them have room,
	// records the download. Any error means nothing was recorded.
	CheckAndGrant(ctx context.Context, req GrantRequest) (Decision, error)
	Remaining(ctx context.Context, identifier, networkAddress string) (Usage, error)
}

type GrantRequest struct {
	IllustrationID int64
	Identifier     string
	NetworkAddress string
	Format         models.Format
}

func (r GrantRequest) validate() error {
	if r.IllustrationID <= 0 {
		return oops.New(nil, "invalid illustration id %d", r.IllustrationID)
	}
	if _, ok := models.ParseFormat(string(r.Format)); !ok {
		return oops.New(nil, "invalid download format %q", r.Format)
	}
	if r.NetworkAddress == "" {
		return oops.New(nil, "grant request has no network address")
	}
	return nil
}

func (r GrantRequest) axisValue(axis auditlog.Axis) string {
	if axis == auditlog.AxisIdentifier {
		return r.Identifier
	}
	return r.NetworkAddress
}

func (r GrantRequest) logEntry(at time.Time) models.DownloadLog {
	var identifier *string
	if r.Identifier != "" {
		id := r.Identifier
		identifier = &id
	}
	return models.DownloadLog{
		IllustrationID: r.IllustrationID,
		UserIdentifier: identifier,
		IPAddress:      r.NetworkAddress,
		DownloadType:   r.Format,
		CreatedAt:      at,
	}
}

type Decision struct {
	Granted bool
	Reason  DenyReason

	// The recorded log entry, if granted.
	Entry *models.DownloadLog
}

func denied(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

type Usage struct {
	Limit     int `json:"limit"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

func newUsage(limit, used int) Usage {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Usage{Limit: limit, Used: used, Remaining: remaining}
}

// Which keys a client's downloads are counted against.
type Policy string

const (
	PolicyNetwork    Policy = "network"
	PolicyIdentifier Policy = "identifier"
	PolicyUnion      Policy = "union"
)

func ParsePolicy(s string) (Policy, bool) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyNetwork:
		return PolicyNetwork, true
	case PolicyIdentifier:
		return PolicyIdentifier, true
	case PolicyUnion, "":
		return PolicyUnion, true
	}
	return "", false
}

// The axes to check, in order. The network axis is checked first so that its
// denial reason wins when both are exhausted. A client with no identifier is
// only counted by network address.
func (p Policy) Axes(identifier string) []auditlog.Axis {
	switch {
	case identifier == "":
		return []auditlog.Axis{auditlog.AxisNetwork}
	case p == PolicyNetwork:
		return []auditlog.Axis{auditlog.AxisNetwork}
	case p == PolicyIdentifier:
		return []auditlog.Axis{auditlog.AxisIdentifier}
	default:
		return []auditlog.Axis{auditlog.AxisNetwork, auditlog.AxisIdentifier}
	}
}

func reasonFor(axis auditlog.Axis) DenyReason {
	if axis == auditlog.AxisIdentifier {
		return ReasonIdentifierLimit
	}
	return ReasonNetworkLimit
}

type Settings struct {
	DailyLimit int
	Policy     Policy
}

func SettingsFromConfig(cfg config.QuotaConfig) Settings {
	policy, ok := ParsePolicy(cfg.Policy)
	if !ok {
		policy = PolicyUnion
	}
	limit := cfg.DailyLimit
	if limit <= 0 {
		limit = config.DefaultDailyLimit
	}
	return Settings{DailyLimit: limit, Policy: policy}
}

// Local midnight of the day containing now, in now's location.
func WindowStart(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// The calendar day of now, as a UTC midnight. This is how days are keyed in
// storage so the server's zone never leaks into the key.
func Day(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
