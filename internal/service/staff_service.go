package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"church-pos/internal/model"
	"church-pos/internal/repository"
	"church-pos/pkg/jwt"

	"github.com/google/uuid"
)

type StaffService interface {
	ListActive(ctx context.Context) ([]model.EphemeralStaff, error)
	Deactivate(ctx context.Context, actor *model.Actor, id uuid.UUID) error
	ExpireStale(ctx context.Context) (int64, error)
	Authorize(ctx context.Context, staffID uuid.UUID) (*model.EphemeralStaff, error)
	Login(ctx context.Context, req *StaffLoginRequest) (*StaffSession, error)
}

type StaffLoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	PIN      string `json:"pin" validate:"required"`
}

// StaffSession is a bearer token valid until the login's cutoff
type StaffSession struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expires_at"`
	Staff     *model.EphemeralStaff `json:"staff"`
}

type staffService struct {
	staffRepo repository.StaffRepository
	clock     Clock
	notifier  Notifier
}

func NewStaffService(staffRepo repository.StaffRepository, clock Clock, notifier Notifier) StaffService {
	return &staffService{
		staffRepo: staffRepo,
		clock:     clockOrNow(clock),
		notifier:  notifierOrNop(notifier),
	}
}

func (s *staffService) ListActive(ctx context.Context) ([]model.EphemeralStaff, error) {
	staff, err := s.staffRepo.FindActive(ctx, s.clock().UTC())
	if err != nil {
		return nil, internalErr("failed to list staff", err)
	}
	return staff, nil
}

func (s *staffService) Deactivate(ctx context.Context, actor *model.Actor, id uuid.UUID) error {
	if err := requirePrivilege(actor, model.PrivShiftManage); err != nil {
		return err
	}
	rows, err := s.staffRepo.Deactivate(ctx, id, actor.AuditID())
	if err != nil {
		return internalErr("failed to deactivate staff", err)
	}
	if rows == 0 {
		return ErrStaffNotFound
	}

	s.notifier.Publish("staff_deactivated", map[string]interface{}{
		"staff_id": id,
	}, fmt.Sprintf("%s deactivated a staff login", actor.Name))
	return nil
}

// ExpireStale deactivates every login whose window has elapsed
func (s *staffService) ExpireStale(ctx context.Context) (int64, error) {
	count, err := s.staffRepo.DeactivateExpired(ctx, s.clock().UTC())
	if err != nil {
		return 0, internalErr("failed to expire staff", err)
	}
	if count > 0 {
		log.Printf("Expired %d staff login(s)", count)
	}
	return count, nil
}

// Authorize confirms that a staff token still maps to a usable login
func (s *staffService) Authorize(ctx context.Context, staffID uuid.UUID) (*model.EphemeralStaff, error) {
	staff, err := s.staffRepo.FindByID(ctx, staffID)
	if err != nil {
		return nil, notFoundOr(err, ErrStaffInactive, "failed to load staff")
	}
	if !staff.IsValidAt(s.clock().UTC()) {
		return nil, ErrStaffInactive
	}
	return staff, nil
}

// Login exchanges a shift username and PIN for a token that carries the waiter role
func (s *staffService) Login(ctx context.Context, req *StaffLoginRequest) (*StaffSession, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	staff, err := s.staffRepo.FindActiveByUsername(ctx, req.Username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, internalErr("failed to load staff", err)
	}
	if !staff.CheckPIN(req.PIN) {
		return nil, ErrInvalidCredentials
	}
	now := s.clock().UTC()
	if !staff.IsValidAt(now) {
		return nil, ErrStaffInactive
	}

	name := staff.DisplayName
	if name == "" {
		name = staff.Username
	}
	ttl := staff.ValidUntil.Sub(now)
	token, err := jwt.GenerateToken(jwt.Claims{
		UserID:     staff.ID,
		Name:       name,
		RoleCode:   model.RoleWaiter,
		Kind:       jwt.KindEphemeral,
		Privileges: model.PrivilegesForRole(model.RoleWaiter),
	}, ttl)
	if err != nil {
		return nil, internalErr("failed to sign token", err)
	}

	log.Printf("Staff login: %s (%s)", staff.Username, staff.ID)
	return &StaffSession{Token: token, ExpiresAt: staff.ValidUntil, Staff: staff}, nil
}
