package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// holding answers hasRole with true only for the given roles.
func holding(roles ...Role) viewFunc {
	return func(args []interface{}) ([]interface{}, error) {
		id := args[0].(common.Hash)
		for _, r := range roles {
			if roleIDs[r] == id {
				return []interface{}{true}, nil
			}
		}
		return []interface{}{false}, nil
	}
}

func TestRoleIDs(t *testing.T) {
	id, err := RoleEmployer.ID()
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256Hash([]byte("EMPLOYER_ROLE")), id)

	id, err = RolePauser.ID()
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256Hash([]byte("PAUSER_ROLE")), id)

	_, err = RoleNone.ID()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseRole(t *testing.T) {
	for raw, want := range map[string]Role{
		"employer":      RoleEmployer,
		"EMPLOYEE_ROLE": RoleEmployee,
		" Admin ":       RoleAdmin,
		"pauser_role":   RolePauser,
	} {
		got, err := ParseRole(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := ParseRole("owner")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRegisterAsEmployerNeverSubmittedForEmployee(t *testing.T) {
	fx := newFixture()
	fx.roles.viewFn("hasRole", holding(RoleEmployee))

	_, err := newTestService(t, fx).RegisterAsEmployer(context.Background())
	require.Error(t, err)
	assert.True(t, IsGuardViolation(err))
	assert.Equal(t, "Failed to register as employer: You cannot register as an employer because you are already an employee", err.Error())
	assert.Empty(t, fx.roles.transactions())
	assert.Empty(t, fx.roles.estimated)
}

func TestRegisterAsEmployerAlreadyEmployer(t *testing.T) {
	fx := newFixture()
	fx.roles.viewFn("hasRole", holding(RoleEmployer, RoleEmployee))

	_, err := newTestService(t, fx).RegisterAsEmployer(context.Background())
	assert.ErrorIs(t, err, ErrGuard)
	assert.Contains(t, err.Error(), "You are already registered as an employer")
	assert.Empty(t, fx.roles.transactions())
}

func TestRegisterAsEmployerPrecheck(t *testing.T) {
	fx := newFixture()
	fx.roles.estimateErr = errors.New("execution reverted: not allowed")

	_, err := newTestService(t, fx).RegisterAsEmployer(context.Background())
	require.Error(t, err)
	assert.True(t, IsGuardViolation(err))
	assert.Equal(t, "Failed to register as employer: Pre-check failed: You may not meet the requirements to register as an employer", err.Error())
	assert.Equal(t, []string{"registerAsEmployer"}, fx.roles.estimated)
	assert.Empty(t, fx.roles.transactions())
}

func TestRegisterAsEmployerPrecheckNetworkError(t *testing.T) {
	fx := newFixture()
	fx.roles.estimateErr = errors.New("dial tcp: lookup rpc: no such host")

	_, err := newTestService(t, fx).RegisterAsEmployer(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
	assert.False(t, IsGuardViolation(err))
}

func TestRegisterAsEmployerSubmits(t *testing.T) {
	fx := newFixture()
	receipt, err := newTestService(t, fx).RegisterAsEmployer(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, receipt)
	assert.Equal(t, []string{"registerAsEmployer"}, fx.roles.transactions())
}

func TestRegisterAsEmployeeGuards(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(*fixture)
		reason string
	}{
		{"already employee", func(fx *fixture) { fx.roles.viewFn("hasRole", holding(RoleEmployee)) }, msgAlreadyEmployee},
		{"already employer", func(fx *fixture) { fx.roles.viewFn("hasRole", holding(RoleEmployer)) }, msgEmployerNotEmployee},
		{"unknown employer", func(fx *fixture) { fx.roles.view("isEmployer", false) }, msgUnknownEmployer},
		{"gas estimate", func(fx *fixture) { fx.roles.estimateErr = errors.New("execution reverted") }, msgEmployeePrecheck},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture()
			tc.setup(fx)

			_, err := newTestService(t, fx).RegisterAsEmployee(context.Background(), employee.Hex())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrGuard)
			assert.Equal(t, "Failed to register as employee: "+tc.reason, err.Error())
			assert.Empty(t, fx.roles.transactions())
		})
	}
}

func TestRegisterAsEmployeeSubmits(t *testing.T) {
	fx := newFixture()
	var checked common.Address
	fx.roles.viewFn("isEmployer", func(args []interface{}) ([]interface{}, error) {
		checked = args[0].(common.Address)
		return []interface{}{true}, nil
	})

	_, err := newTestService(t, fx).RegisterAsEmployee(context.Background(), employee.Hex())
	require.NoError(t, err)
	assert.Equal(t, employee, checked)
	assert.Equal(t, []string{"registerAsEmployee"}, fx.roles.estimated)
	assert.Equal(t, []string{"registerAsEmployee"}, fx.roles.transactions())
}

func TestRegisterAsEmployeeAcceptsXDCPrefix(t *testing.T) {
	fx := newFixture()
	var checked common.Address
	fx.roles.viewFn("isEmployer", func(args []interface{}) ([]interface{}, error) {
		checked = args[0].(common.Address)
		return []interface{}{true}, nil
	})

	_, err := newTestService(t, fx).RegisterAsEmployee(context.Background(), "xdc"+employee.Hex()[2:])
	require.NoError(t, err)
	assert.Equal(t, employee, checked)
	assert.Equal(t, []string{"registerAsEmployee"}, fx.roles.transactions())

	_, err = newTestService(t, newFixture()).RegisterAsEmployee(context.Background(), "xdc-nope")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestResolveRole(t *testing.T) {
	cases := []struct {
		employer, employee bool
		want               Role
	}{
		{true, false, RoleEmployer},
		{false, true, RoleEmployee},
		{true, true, RoleEmployer},
		{false, false, RoleNone},
	}
	for _, tc := range cases {
		fx := newFixture()
		fx.roles.view("isEmployer", tc.employer).view("isEmployee", tc.employee)

		got, err := newTestService(t, fx).ResolveRole(context.Background(), signer)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestCheckRoleUsesRoleID(t *testing.T) {
	fx := newFixture()
	fx.roles.viewFn("hasRole", holding(RoleAdmin))
	s := newTestService(t, fx)

	admin, err := s.CheckRole(context.Background(), RoleAdmin, signer)
	require.NoError(t, err)
	assert.True(t, admin)

	pauser, err := s.CheckRole(context.Background(), RolePauser, signer)
	require.NoError(t, err)
	assert.False(t, pauser)

	_, err = s.CheckRole(context.Background(), Role("owner"), signer)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
