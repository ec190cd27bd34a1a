package roles_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mealroute/session-gateway/roles"
)

func TestCanonicalConfigsAreValid(t *testing.T) {
	all := roles.All()
	require.Len(t, all, 4)

	seenPrefixes := map[string]bool{}
	for _, c := range all {
		require.NoError(t, c.Validate(), "role %s", c.Role)
		require.False(t, seenPrefixes[c.StoragePrefix], "storage prefix %q reused", c.StoragePrefix)
		seenPrefixes[c.StoragePrefix] = true
	}
}

func TestSignupRoles(t *testing.T) {
	require.True(t, roles.User().AllowSignup)
	require.True(t, roles.Admin().AllowSignup)
	require.False(t, roles.Restaurant().AllowSignup)
	require.False(t, roles.Delivery().AllowSignup)
}

func TestByRole(t *testing.T) {
	c, ok := roles.ByRole(roles.RoleDelivery)
	require.True(t, ok)
	require.Equal(t, "deliveryPartner", c.IdentityKey)

	_, ok = roles.ByRole(roles.Role("rider"))
	require.False(t, ok)
}

func TestValidate(t *testing.T) {
	c := roles.User()
	c.LoginRoute = ""
	require.Error(t, c.Validate())

	c = roles.User()
	c.SignupPath = ""
	require.Error(t, c.Validate())
}
