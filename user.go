package flagship

import "github.com/TimurManjosov/flagship-go-sdk/internal/user"

// User identifies who a decision is for. ID is the primary identifier; UserID
// and DeviceID are optional secondary identifiers used by experiments keyed on
// them. Properties feed audience targeting.
type User struct {
	ID         string
	UserID     string
	DeviceID   string
	Properties map[string]any
}

// resolve maps the public user onto the internal identity, attaching the host
// platform as a system property.
func (u User) resolve(platform string) user.User {
	identifiers := make(map[string]string, 3)
	if u.ID != "" {
		identifiers[user.IdentifierTypeID] = u.ID
	}
	if u.UserID != "" {
		identifiers[user.IdentifierTypeUser] = u.UserID
	}
	if u.DeviceID != "" {
		identifiers[user.IdentifierTypeDevice] = u.DeviceID
	}
	return user.User{
		Identifiers: identifiers,
		Properties:  u.Properties,
		SystemProperties: map[string]any{
			"platform": platform,
		},
	}
}
