// Package driverauth implements the REST-only OTP-bootstrap flow a driver
// client uses before it ever opens the realtime gateway (spec §4.9):
// request a one-time code against a registered phone number, then redeem it
// for a bearer token and the driver's full profile.
package driverauth

import (
	"context"
	"strings"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/user"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/authsecret"
	"ride-hail/internal/general/jwt"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"
)

// Service exposes the two auth-bootstrap operations.
type Service struct {
	drivers ports.DriverRepository
	jwt     *jwt.Manager
	logger  *logger.Logger
	otps    *otpRegistry
}

// NewService wires the driver auth-bootstrap service.
func NewService(drivers ports.DriverRepository, jwtManager *jwt.Manager, log *logger.Logger) *Service {
	return &Service{drivers: drivers, jwt: jwtManager, logger: log, otps: newOTPRegistry()}
}

// RequestOTP issues a one-time code for the driver registered at phoneNumber,
// storing only its bcrypt hash and "sending" it via a log line — no SMS
// provider is wired, mirroring the push package's logging stand-in.
func (s *Service) RequestOTP(ctx context.Context, phoneNumber string) (driverID string, err error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return "", apperr.New(apperr.InvalidInput, "phoneNumber is required", nil)
	}

	d, err := s.drivers.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return "", apperr.New(apperr.NotFound, "no driver registered with this phone number", err)
	}

	code, err := authsecret.Generate()
	if err != nil {
		return "", apperr.New(apperr.Internal, "failed to generate otp", err)
	}
	hash, err := authsecret.Hash(code)
	if err != nil {
		return "", apperr.New(apperr.Internal, "failed to hash otp", err)
	}
	s.otps.put(phoneNumber, hash)

	s.logger.Info(ctx, "driver_otp_issued", "Issued driver bootstrap OTP", map[string]any{
		"driver_id": d.ID, "code": code, "expires_in": otpTTL.String(),
	})
	return d.ID, nil
}

// CompleteInfo redeems a one-time code for an access token and the driver's
// full profile.
func (s *Service) CompleteInfo(ctx context.Context, phoneNumber, code string) (string, *driver.Driver, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	code = strings.TrimSpace(code)
	if phoneNumber == "" || code == "" {
		return "", nil, apperr.New(apperr.InvalidInput, "phoneNumber and otp are required", nil)
	}

	hash, ok := s.otps.take(phoneNumber)
	if !ok {
		return "", nil, apperr.New(apperr.Unauthenticated, "otp expired or never issued", nil)
	}
	if err := authsecret.Verify(hash, code); err != nil {
		return "", nil, apperr.New(apperr.Unauthenticated, "otp does not match", err)
	}

	d, err := s.drivers.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return "", nil, apperr.New(apperr.NotFound, "no driver registered with this phone number", err)
	}

	token, _, err := s.jwt.IssueUserToken(d.ID, user.RoleDriver)
	if err != nil {
		return "", nil, apperr.New(apperr.Internal, "failed to issue access token", err)
	}
	return token, d, nil
}
