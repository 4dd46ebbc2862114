package actions

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trustpay/internal/config"
	"trustpay/internal/contracts"
)

// Role names an access-control role on the role manager.
type Role string

const (
	RoleEmployer Role = "employer"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
	RolePauser   Role = "pauser"
	RoleNone     Role = "none"
)

var roleIDs = map[Role]common.Hash{
	RoleEmployer: crypto.Keccak256Hash([]byte("EMPLOYER_ROLE")),
	RoleEmployee: crypto.Keccak256Hash([]byte("EMPLOYEE_ROLE")),
	RoleAdmin:    crypto.Keccak256Hash([]byte("ADMIN_ROLE")),
	RolePauser:   crypto.Keccak256Hash([]byte("PAUSER_ROLE")),
}

// ID returns the keccak256 identifier of the role, e.g. keccak256("EMPLOYER_ROLE").
func (r Role) ID() (common.Hash, error) {
	id, ok := roleIDs[r]
	if !ok {
		return common.Hash{}, invalid("unknown role %q", string(r))
	}
	return id, nil
}

// ParseRole accepts a role by name, case-insensitively, with or without the _ROLE suffix.
func ParseRole(raw string) (Role, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "_role")
	role := Role(name)
	if _, ok := roleIDs[role]; !ok {
		return "", invalid("unknown role %q", raw)
	}
	return role, nil
}

const (
	msgAlreadyEmployer     = "You are already registered as an employer"
	msgEmployeeNotEmployer = "You cannot register as an employer because you are already an employee"
	msgAlreadyEmployee     = "You are already registered as an employee"
	msgEmployerNotEmployee = "You cannot register as an employee because you are already an employer"
	msgUnknownEmployer     = "The provided address is not registered as an employer"
	msgEmployerPrecheck    = "Pre-check failed: You may not meet the requirements to register as an employer"
	msgEmployeePrecheck    = "Unable to estimate gas. The transaction might fail or the employer address might be invalid."
)

// signerRoles reads whether the bound signer already holds the employer and
// employee roles.
func (s *Service) signerRoles(ctx context.Context, set *contracts.HandleSet, prefix string) (employer, employee bool, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.call(gctx, set, prefix, roleManager, "hasRole", roleIDs[RoleEmployer], set.From)
		if err != nil {
			return err
		}
		employer, err = decode[bool](prefix, out, 0)
		return err
	})
	g.Go(func() error {
		out, err := s.call(gctx, set, prefix, roleManager, "hasRole", roleIDs[RoleEmployee], set.From)
		if err != nil {
			return err
		}
		employee, err = decode[bool](prefix, out, 0)
		return err
	})
	err = g.Wait()
	return employer, employee, err
}

// precheck dry-runs a registration. A failed gas estimate becomes the given
// guard message; anything else is returned classified.
func (s *Service) precheck(ctx context.Context, set *contracts.HandleSet, prefix, reason, method string, args ...interface{}) error {
	if _, err := set.RoleManager.Estimate(ctx, method, args...); err != nil {
		code := estimateCode(err)
		if code == CodeUnpredictableGas {
			s.logger.Info("registration pre-check failed", zap.String("method", method), zap.Error(err))
			return &Error{Prefix: prefix, Err: guard(reason)}
		}
		return &Error{Prefix: prefix, Code: code, Err: err}
	}
	return nil
}

// RegisterAsEmployer registers the signer as an employer. It is never
// submitted when the signer already holds either role.
func (s *Service) RegisterAsEmployer(ctx context.Context) (*types.Receipt, error) {
	const prefix = "Failed to register as employer"
	set, err := s.bind(ctx, prefix)
	if err != nil {
		return nil, err
	}

	isEmployer, isEmployee, err := s.signerRoles(ctx, set, prefix)
	if err != nil {
		return nil, err
	}
	if isEmployer {
		return nil, &Error{Prefix: prefix, Err: guard(msgAlreadyEmployer)}
	}
	if isEmployee {
		return nil, &Error{Prefix: prefix, Err: guard(msgEmployeeNotEmployer)}
	}

	if err := s.precheck(ctx, set, prefix, msgEmployerPrecheck, "registerAsEmployer"); err != nil {
		return nil, err
	}
	return s.send(ctx, set, prefix, roleManager, "registerAsEmployer")
}

// parseEmployer accepts 0x and xdc prefixed addresses.
func parseEmployer(prefix, raw string) (common.Address, error) {
	normalized := config.NormalizeAddress(raw)
	if !common.IsHexAddress(normalized) {
		return common.Address{}, &Error{Prefix: prefix, Err: invalid("Invalid employer address format")}
	}
	return common.HexToAddress(normalized), nil
}

// RegisterAsEmployee registers the signer under employer, which must already
// hold the employer role.
func (s *Service) RegisterAsEmployee(ctx context.Context, employer string) (*types.Receipt, error) {
	const prefix = "Failed to register as employee"
	employerAddr, err := parseEmployer(prefix, employer)
	if err != nil {
		return nil, err
	}

	set, err := s.bind(ctx, prefix)
	if err != nil {
		return nil, err
	}

	isEmployer, isEmployee, err := s.signerRoles(ctx, set, prefix)
	if err != nil {
		return nil, err
	}
	if isEmployee {
		return nil, &Error{Prefix: prefix, Err: guard(msgAlreadyEmployee)}
	}
	if isEmployer {
		return nil, &Error{Prefix: prefix, Err: guard(msgEmployerNotEmployee)}
	}

	out, err := s.call(ctx, set, prefix, roleManager, "isEmployer", employerAddr)
	if err != nil {
		return nil, err
	}
	valid, err := decode[bool](prefix, out, 0)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, &Error{Prefix: prefix, Err: guard(msgUnknownEmployer)}
	}

	if err := s.precheck(ctx, set, prefix, msgEmployeePrecheck, "registerAsEmployee", employerAddr); err != nil {
		return nil, err
	}
	return s.send(ctx, set, prefix, roleManager, "registerAsEmployee", employerAddr)
}

func (s *Service) CheckEmployerRole(ctx context.Context, account common.Address) (bool, error) {
	return s.readBool(ctx, "Failed to check employer role", roleManager, "isEmployer", account)
}

func (s *Service) CheckEmployeeRole(ctx context.Context, account common.Address) (bool, error) {
	return s.readBool(ctx, "Failed to check employee role", roleManager, "isEmployee", account)
}

func (s *Service) GetEmployerAddress(ctx context.Context, employee common.Address) (common.Address, error) {
	const prefix = "Failed to get employer address"
	out, err := s.read(ctx, prefix, roleManager, "getEmployerOf", employee)
	if err != nil {
		return common.Address{}, err
	}
	return decode[common.Address](prefix, out, 0)
}

func (s *Service) CheckRole(ctx context.Context, role Role, account common.Address) (bool, error) {
	const prefix = "Failed to check role"
	id, err := role.ID()
	if err != nil {
		return false, &Error{Prefix: prefix, Err: err}
	}
	return s.readBool(ctx, prefix, roleManager, "hasRole", id, account)
}

func (s *Service) RevokeRole(ctx context.Context, role Role, account common.Address) (*types.Receipt, error) {
	const prefix = "Failed to revoke role"
	id, err := role.ID()
	if err != nil {
		return nil, &Error{Prefix: prefix, Err: err}
	}
	return s.submit(ctx, prefix, roleManager, "revokeRole", id, account)
}

func (s *Service) RenounceRole(ctx context.Context, role Role, account common.Address) (*types.Receipt, error) {
	const prefix = "Failed to renounce role"
	id, err := role.ID()
	if err != nil {
		return nil, &Error{Prefix: prefix, Err: err}
	}
	return s.submit(ctx, prefix, roleManager, "renounceRole", id, account)
}

func (s *Service) PauseContract(ctx context.Context) (*types.Receipt, error) {
	return s.submit(ctx, "Failed to pause contract", roleManager, "pause")
}

func (s *Service) UnpauseContract(ctx context.Context) (*types.Receipt, error) {
	return s.submit(ctx, "Failed to unpause contract", roleManager, "unpause")
}

// ResolveRole reports which of the two exclusive roles account holds. The
// employer role wins if the chain ever reports both.
func (s *Service) ResolveRole(ctx context.Context, account common.Address) (Role, error) {
	const prefix = "Failed to resolve role"
	set, err := s.bind(ctx, prefix)
	if err != nil {
		return "", err
	}

	var employer, employee bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.call(gctx, set, prefix, roleManager, "isEmployer", account)
		if err != nil {
			return err
		}
		employer, err = decode[bool](prefix, out, 0)
		return err
	})
	g.Go(func() error {
		out, err := s.call(gctx, set, prefix, roleManager, "isEmployee", account)
		if err != nil {
			return err
		}
		employee, err = decode[bool](prefix, out, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	switch {
	case employer:
		return RoleEmployer, nil
	case employee:
		return RoleEmployee, nil
	}
	return RoleNone, nil
}

// IsGuardViolation reports whether err was a client-side role guard.
func IsGuardViolation(err error) bool { return errors.Is(err, ErrGuard) }

func (r Role) String() string { return string(r) }
