package main

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"rentflow/agreement"
	"rentflow/identity"
	"rentflow/payment"
	"rentflow/query"
	"rentflow/rental"
)

type rentalService interface {
	Create(ctx context.Context, caller identity.Identity, in rental.CreateInput) (rental.Rental, error)
	Get(ctx context.Context, id string) (rental.Rental, error)
	List(ctx context.Context, params query.Params) ([]rental.Rental, query.Meta, error)
	ListByLandlord(ctx context.Context, caller identity.Identity, params query.Params) ([]rental.Rental, query.Meta, error)
	Update(ctx context.Context, caller identity.Identity, id string, in rental.UpdateInput) (rental.Rental, error)
	Delete(ctx context.Context, caller identity.Identity, id string) error
}

type agreementService interface {
	RequestAgreement(ctx context.Context, caller identity.Identity, in agreement.RequestInput) (agreement.Agreement, error)
	SetAgreementStatus(ctx context.Context, caller identity.Identity, agreementID string, next agreement.Status) (agreement.Agreement, error)
	SetLandlordContact(ctx context.Context, caller identity.Identity, agreementID, contactNo string) (agreement.Agreement, error)
	DeleteAgreement(ctx context.Context, caller identity.Identity, agreementID string) error
	AllAgreements(ctx context.Context, caller identity.Identity, params query.Params) ([]agreement.Agreement, query.Meta, error)
	LandlordAgreements(ctx context.Context, caller identity.Identity, params query.Params) ([]agreement.Agreement, query.Meta, error)
	TenantAgreements(ctx context.Context, caller identity.Identity, params query.Params) ([]agreement.Agreement, query.Meta, error)
}

type paymentService interface {
	CreatePayment(ctx context.Context, caller identity.Identity, in payment.CreateInput) (payment.Checkout, error)
	Reconcile(ctx context.Context, caller identity.Identity, transactionID string) (payment.Payment, error)
	ChangePaymentStatus(ctx context.Context, caller identity.Identity, paymentID string, next payment.Status) (payment.Payment, error)
	GetPaymentDetails(ctx context.Context, caller identity.Identity, paymentID string) (payment.Payment, error)
	AllPayments(ctx context.Context, caller identity.Identity, params query.Params) ([]payment.Payment, query.Meta, error)
	LandlordPayments(ctx context.Context, caller identity.Identity, params query.Params) ([]payment.Payment, query.Meta, error)
	TenantPayments(ctx context.Context, caller identity.Identity, params query.Params) ([]payment.Payment, query.Meta, error)
}

type userService interface {
	ListUsers(ctx context.Context, caller identity.Identity, params query.Params) ([]identity.User, query.Meta, error)
	ChangeRole(ctx context.Context, caller identity.Identity, userID string, role identity.Role) (identity.User, error)
	ChangeStatus(ctx context.Context, caller identity.Identity, userID string, status identity.UserStatus) (identity.User, error)
}

// Server exposes the rental, agreement and payment workflows and the admin user
// directory over HTTP.
type Server struct {
	rentals    rentalService
	agreements agreementService
	payments   paymentService
	users      userService
	verifier   tokenVerifier
	logger     ectologger.Logger
	// ready reports database health for /healthz; nil means always healthy.
	ready func(ctx context.Context) error
}

// Handler builds the echo instance with middleware and routes.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(s.logger)

	e.Use(otelecho.Middleware("rentflow"))
	e.Use(requestContext())
	e.Use(httpMetrics())
	e.Use(requestLogger(s.logger))

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	auth := authenticate(s.verifier)

	rentals := api.Group("/rentals")
	rentals.GET("", s.handleListRentals)
	rentals.GET("/landlord", s.handleLandlordRentals, auth)
	rentals.GET("/:id", s.handleGetRental)
	rentals.POST("", s.handleCreateRental, auth)
	rentals.PATCH("/:id", s.handleUpdateRental, auth)
	rentals.DELETE("/:id", s.handleDeleteRental, auth)

	agreements := api.Group("/agreements", auth)
	agreements.POST("", s.handleRequestAgreement)
	agreements.GET("", s.handleAllAgreements)
	agreements.GET("/landlord", s.handleLandlordAgreements)
	agreements.GET("/tenant", s.handleTenantAgreements)
	agreements.PUT("/status/:id", s.handleAgreementStatus)
	agreements.PATCH("/landlord-contact-no/:id", s.handleLandlordContact)
	agreements.DELETE("/:id", s.handleDeleteAgreement)

	payments := api.Group("/payments", auth)
	payments.POST("", s.handleCreatePayment)
	payments.GET("", s.handleAllPayments)
	payments.GET("/landlord", s.handleLandlordPayments)
	payments.GET("/tenant", s.handleTenantPayments)
	payments.GET("/details/:paymentId", s.handlePaymentDetails)
	payments.PATCH("/validate", s.handleValidatePayment)
	payments.PATCH("/:paymentId/status", s.handlePaymentStatus)

	users := api.Group("/users", auth)
	users.GET("", s.handleListUsers)
	users.PUT("/change-role/:id", s.handleChangeRole)
	users.PUT("/change-status/:id", s.handleChangeStatus)

	return e
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.ready != nil {
		if err := s.ready(c.Request().Context()); err != nil {
			s.logger.WithContext(c.Request().Context()).WithError(err).Warn("health check failed")
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
