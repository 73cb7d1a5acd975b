package main

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"rentflow/payment"
	"rentflow/query"
)

type createPaymentRequest struct {
	Agreement string   `json:"agreement" validate:"required,uuid"`
	Months    []string `json:"months"`
}

type paymentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Paid Failed"`
}

func (s *Server) handleCreatePayment(c echo.Context) error {
	var req createPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	checkout, err := s.payments.CreatePayment(c.Request().Context(), callerFrom(c), payment.CreateInput{
		AgreementID: req.Agreement,
		Months:      req.Months,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Payment initiated successfully!", checkout)
}

func (s *Server) handleValidatePayment(c echo.Context) error {
	rec, err := s.payments.Reconcile(c.Request().Context(), callerFrom(c), c.QueryParam("tran_id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Payment validated successfully!", rec)
}

func (s *Server) handlePaymentStatus(c echo.Context) error {
	id, err := pathID(c, "paymentId", "Payment")
	if err != nil {
		return err
	}
	var req paymentStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rec, err := s.payments.ChangePaymentStatus(c.Request().Context(), callerFrom(c), id, payment.Status(req.Status))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Payment status updated successfully!", rec)
}

func (s *Server) handlePaymentDetails(c echo.Context) error {
	id, err := pathID(c, "paymentId", "Payment")
	if err != nil {
		return err
	}
	rec, err := s.payments.GetPaymentDetails(c.Request().Context(), callerFrom(c), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Payment details retrieved successfully!", rec)
}

func (s *Server) handleAllPayments(c echo.Context) error {
	recs, meta, err := s.payments.AllPayments(c.Request().Context(), callerFrom(c), query.FromValues(c.QueryParams()))
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "Payments retrieved successfully!", recs, meta)
}

func (s *Server) handleLandlordPayments(c echo.Context) error {
	recs, meta, err := s.payments.LandlordPayments(c.Request().Context(), callerFrom(c), query.FromValues(c.QueryParams()))
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "Payments retrieved successfully!", recs, meta)
}

func (s *Server) handleTenantPayments(c echo.Context) error {
	recs, meta, err := s.payments.TenantPayments(c.Request().Context(), callerFrom(c), query.FromValues(c.QueryParams()))
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "Payments retrieved successfully!", recs, meta)
}
