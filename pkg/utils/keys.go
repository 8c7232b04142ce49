package utils

import (
	"fmt"
	"strings"
)

// PrefKey builds the preference-index key for a (partner, type, subtype)
// triple. An empty subtype produces the subtype-agnostic key.
func PrefKey(partnerID int, alertType, subtype string) string {
	return fmt.Sprintf("%d|%s|%s", partnerID, alertType, subtype)
}

// TaskKey builds the uniqueness key for a (alert, user, channel) delivery
// triple.
func TaskKey(alertUUID string, userID int64, channel string) string {
	return fmt.Sprintf("%s|%d|%s", alertUUID, userID, channel)
}

// NormalizeURL lowercases and trims a feed URL so that the same endpoint
// always maps to the same source_url value.
func NormalizeURL(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
