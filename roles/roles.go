// Package roles defines the four portal roles of the platform and the
// per-role wiring (backend endpoint paths, storage namespace, portal login
// route) that the session machinery is parameterized over.
package roles

import "fmt"

// Role identifies one of the four independent portal scopes.
type Role string

const (
	RoleUser       Role = "user"       // Customer portal
	RoleAdmin      Role = "admin"      // Admin portal
	RoleRestaurant Role = "restaurant" // Restaurant owner portal
	RoleDelivery   Role = "delivery"   // Delivery partner portal
)

// Config carries everything role-specific the session layer needs. The four
// canonical configs share no state; every other package treats a Config as
// read-only.
type Config struct {
	Role Role

	// Backend endpoint paths, relative to the API base URL.
	LoginPath   string
	SignupPath  string
	ProfilePath string
	LogoutPath  string

	// AllowSignup is true only for roles that self-register. Restaurant and
	// delivery accounts go through an out-of-band registration-and-approval
	// flow owned by the backend.
	AllowSignup bool

	// IdentityKey is the field under the response envelope's "data" object
	// that holds this role's identity payload.
	IdentityKey string

	// StoragePrefix namespaces this role's credential record. The persisted
	// fields are <prefix>Token and <prefix>Data.
	StoragePrefix string

	// LoginRoute is where the access guard sends unauthenticated requests.
	LoginRoute string
}

func (c Config) String() string { return string(c.Role) }

// Validate reports a misconfigured role Config.
func (c Config) Validate() error {
	switch {
	case c.Role == "":
		return fmt.Errorf("role config: missing role")
	case c.LoginPath == "" || c.ProfilePath == "" || c.LogoutPath == "":
		return fmt.Errorf("role config %q: missing endpoint path", c.Role)
	case c.AllowSignup && c.SignupPath == "":
		return fmt.Errorf("role config %q: signup allowed but no signup path", c.Role)
	case c.StoragePrefix == "":
		return fmt.Errorf("role config %q: missing storage prefix", c.Role)
	case c.LoginRoute == "":
		return fmt.Errorf("role config %q: missing login route", c.Role)
	}
	return nil
}

// User returns the customer portal config.
func User() Config {
	return Config{
		Role:          RoleUser,
		LoginPath:     "/auth/user/login",
		SignupPath:    "/auth/user/signup",
		ProfilePath:   "/auth/user/profile",
		LogoutPath:    "/auth/user/logout",
		AllowSignup:   true,
		IdentityKey:   "user",
		StoragePrefix: "user",
		LoginRoute:    "/portal/user/login",
	}
}

// Admin returns the admin portal config. Admin logins are the one role whose
// backend may answer a rejection with a structured OTP challenge.
func Admin() Config {
	return Config{
		Role:          RoleAdmin,
		LoginPath:     "/auth/admin/login",
		SignupPath:    "/auth/admin/signup",
		ProfilePath:   "/auth/admin/profile",
		LogoutPath:    "/auth/admin/logout",
		AllowSignup:   true,
		IdentityKey:   "admin",
		StoragePrefix: "admin",
		LoginRoute:    "/portal/admin/login",
	}
}

// Restaurant returns the restaurant portal config.
func Restaurant() Config {
	return Config{
		Role:          RoleRestaurant,
		LoginPath:     "/auth/restaurant/login",
		ProfilePath:   "/auth/restaurant/profile",
		LogoutPath:    "/auth/restaurant/logout",
		IdentityKey:   "restaurant",
		StoragePrefix: "restaurant",
		LoginRoute:    "/portal/restaurant/login",
	}
}

// Delivery returns the delivery partner portal config.
func Delivery() Config {
	return Config{
		Role:          RoleDelivery,
		LoginPath:     "/auth/delivery/login",
		ProfilePath:   "/auth/delivery/profile",
		LogoutPath:    "/auth/delivery/logout",
		IdentityKey:   "deliveryPartner",
		StoragePrefix: "delivery",
		LoginRoute:    "/portal/delivery/login",
	}
}

// All returns the four canonical role configs in a stable order.
func All() []Config {
	return []Config{User(), Admin(), Restaurant(), Delivery()}
}

// ByRole looks up one of the canonical configs.
func ByRole(r Role) (Config, bool) {
	for _, c := range All() {
		if c.Role == r {
			return c, true
		}
	}
	return Config{}, false
}
