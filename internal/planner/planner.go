// Package planner holds the pure planning helpers of a polling run: zip
// normalization, target deduplication, boundary arithmetic, change detection
// and subscriber matching. Nothing in this package performs I/O.
package planner

import (
	"sort"
	"strconv"
	"strings"

	"rainout-go/internal/domain"
)

const (
	// DefaultIntervalMinutes is the polling interval used when none is configured.
	DefaultIntervalMinutes = 30

	zipLength = 5
	keySep    = "::"
)

// NormalizeZip strips every non-digit and returns the first five digits, or ""
// when fewer than five remain.
func NormalizeZip(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == zipLength {
				return b.String()
			}
		}
	}
	return ""
}

// BuildUniqueZipPollPlan buckets enabled subscriptions by (tenant, zip) and
// returns one target per bucket, sorted by tenant then zip.
func BuildUniqueZipPollPlan(subs []domain.Subscription) []domain.PollTarget {
	buckets := make(map[string]*domain.PollTarget)
	for i := range subs {
		sub := &subs[i]
		if !sub.IsEnabled() {
			continue
		}
		tenantID := strings.TrimSpace(sub.TenantID)
		zip := NormalizeZip(sub.Zip)
		if tenantID == "" || zip == "" {
			continue
		}

		key := tenantID + keySep + zip
		target, ok := buckets[key]
		if !ok {
			target = &domain.PollTarget{
				TenantID:        tenantID,
				Zip:             zip,
				SubscriptionIDs: []string{},
			}
			buckets[key] = target
		}
		target.SubscriberCount++
		if id := strings.TrimSpace(sub.ID); id != "" {
			target.SubscriptionIDs = append(target.SubscriptionIDs, id)
		}
	}

	plan := make([]domain.PollTarget, 0, len(buckets))
	for _, target := range buckets {
		plan = append(plan, *target)
	}
	sort.Slice(plan, func(i, j int) bool {
		if plan[i].TenantID != plan[j].TenantID {
			return plan[i].TenantID < plan[j].TenantID
		}
		return plan[i].Zip < plan[j].Zip
	})
	return plan
}

// NextPollTimeMs returns the first interval boundary at or after nowMs.
// Boundaries are multiples of the interval since the Unix epoch, so runs stay
// aligned to the wall clock however late they are invoked.
func NextPollTimeMs(nowMs int64, intervalMinutes int) int64 {
	step := int64(max(intervalMinutes, 1)) * 60_000
	rem := nowMs % step
	switch {
	case rem == 0:
		return nowMs
	case rem > 0:
		return nowMs - rem + step
	default:
		// Go truncates toward zero, so negative instants already round up.
		return nowMs - rem
	}
}

// IsOnBoundary reports whether nowMs is exactly a polling boundary.
func IsOnBoundary(nowMs int64, intervalMinutes int) bool {
	return NextPollTimeMs(nowMs, intervalMinutes) == nowMs
}

// HasRainoutStatusChanged reports whether next is a new observation relative
// to the stored snapshot. Only status and UpdatedAt are compared.
func HasRainoutStatusChanged(prev *domain.RainoutState, next domain.SourceEvent) bool {
	if prev == nil {
		return true
	}
	if normalizeStatus(prev.Status) != normalizeStatus(next.Status) {
		return true
	}
	return next.UpdatedAt > prev.UpdatedAt
}

// MatchEventToSubscribers returns the subscriptions interested in ev.
func MatchEventToSubscribers(ev domain.SourceEvent, subs []domain.Subscription) []domain.Subscription {
	tenantID := strings.TrimSpace(ev.TenantID)
	zip := NormalizeZip(ev.Zip)
	if tenantID == "" || zip == "" {
		return nil
	}
	facilityID := strings.TrimSpace(ev.FacilityID)

	var matched []domain.Subscription
	for _, sub := range subs {
		if strings.TrimSpace(sub.TenantID) != tenantID {
			continue
		}
		if NormalizeZip(sub.Zip) != zip {
			continue
		}
		if subFacility := strings.TrimSpace(sub.FacilityID); subFacility != "" && subFacility != facilityID {
			continue
		}
		matched = append(matched, sub)
	}
	return matched
}

// NormalizeEvent trims identifiers, normalizes the zip, lower-cases the status
// and falls back to ID when SourceEventID is absent.
func NormalizeEvent(ev domain.SourceEvent) domain.SourceEvent {
	sourceEventID := strings.TrimSpace(ev.SourceEventID)
	if sourceEventID == "" {
		sourceEventID = strings.TrimSpace(ev.ID)
	}
	return domain.SourceEvent{
		ID:            strings.TrimSpace(ev.ID),
		TenantID:      strings.TrimSpace(ev.TenantID),
		Zip:           NormalizeZip(ev.Zip),
		FacilityID:    strings.TrimSpace(ev.FacilityID),
		SourceEventID: sourceEventID,
		Status:        normalizeStatus(ev.Status),
		UpdatedAt:     ev.UpdatedAt,
	}
}

// StateKey identifies the stored snapshot for an event: tenant::sourceEventID
// when the upstream supplies an id, zip::facility otherwise.
func StateKey(ev domain.SourceEvent) string {
	ev = NormalizeEvent(ev)
	if ev.SourceEventID != "" {
		return ev.TenantID + keySep + ev.SourceEventID
	}
	return ev.Zip + keySep + ev.FacilityID
}

// IdempotencyKey identifies one observed change of one event.
func IdempotencyKey(ev domain.SourceEvent) string {
	ev = NormalizeEvent(ev)
	return strings.Join([]string{
		ev.TenantID,
		ev.Zip,
		ev.FacilityID,
		ev.SourceEventID,
		ev.Status,
		strconv.FormatInt(ev.UpdatedAt, 10),
	}, keySep)
}

// CorrelationID threads every log line and collaborator call of one target.
func CorrelationID(runID string, target domain.PollTarget) string {
	return runID + ":" + target.TenantID + ":" + target.Zip
}

// UniqueSubscribers returns the de-duplicated subscription and user ids of
// matched, in first-seen order.
func UniqueSubscribers(matched []domain.Subscription) (subscriptionIDs, userIDs []string) {
	subscriptionIDs = []string{}
	userIDs = []string{}
	seenSubs := make(map[string]struct{}, len(matched))
	seenUsers := make(map[string]struct{}, len(matched))
	for _, sub := range matched {
		if id := strings.TrimSpace(sub.ID); id != "" {
			if _, ok := seenSubs[id]; !ok {
				seenSubs[id] = struct{}{}
				subscriptionIDs = append(subscriptionIDs, id)
			}
		}
		if id := strings.TrimSpace(sub.UserID); id != "" {
			if _, ok := seenUsers[id]; !ok {
				seenUsers[id] = struct{}{}
				userIDs = append(userIDs, id)
			}
		}
	}
	return subscriptionIDs, userIDs
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}
