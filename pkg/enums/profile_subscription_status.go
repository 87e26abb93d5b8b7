package enums

// ProfileSubscriptionStatus is the boolean-ish projection of the latest
// subscription snapshot persisted on the profile.
type ProfileSubscriptionStatus string

const (
	ProfileSubscriptionActive   ProfileSubscriptionStatus = "active"
	ProfileSubscriptionInactive ProfileSubscriptionStatus = "inactive"
)

// ProjectSubscriptionStatus collapses a provider status onto the profile flag.
func ProjectSubscriptionStatus(status SubscriptionStatus) ProfileSubscriptionStatus {
	if status.IsActive() {
		return ProfileSubscriptionActive
	}
	return ProfileSubscriptionInactive
}

// IsValid reports whether the value is known.
func (s ProfileSubscriptionStatus) IsValid() bool {
	return s == ProfileSubscriptionActive || s == ProfileSubscriptionInactive
}
