package models

// Roles attached to the auth session as custom claims.
const (
	RoleFreeUser             = "free_user"
	RolePackCustomer         = "pack_customer"
	RoleSubscriptionCustomer = "subscription_customer"
)

// Claims is the denormalized entitlement snapshot stored on the user's auth token.
// UI code may read it for instant gating; export decisions never do.
type Claims struct {
	Role               string `json:"role"`
	SubscriptionActive bool   `json:"subscriptionActive"`
	HasCredits         bool   `json:"hasCredits"`
	StripeCustomerID   string `json:"stripeCustomerId,omitempty"`
}

// AsMap converts the claims to the map form expected by Firebase custom claims.
func (c Claims) AsMap() map[string]interface{} {
	m := map[string]interface{}{
		"role":               c.Role,
		"subscriptionActive": c.SubscriptionActive,
		"hasCredits":         c.HasCredits,
	}
	if c.StripeCustomerID != "" {
		m["stripeCustomerId"] = c.StripeCustomerID
	}
	return m
}
