package main

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"rentflow/identity"
	"rentflow/query"
)

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=tenant landlord"`
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active blocked"`
}

func (s *Server) handleListUsers(c echo.Context) error {
	recs, meta, err := s.users.ListUsers(c.Request().Context(), callerFrom(c), query.FromValues(c.QueryParams()))
	if err != nil {
		return err
	}
	return respondList(c, http.StatusOK, "Users retrieved successfully!", recs, meta)
}

func (s *Server) handleChangeRole(c echo.Context) error {
	id, err := pathID(c, "id", "User")
	if err != nil {
		return err
	}
	var req changeRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rec, err := s.users.ChangeRole(c.Request().Context(), callerFrom(c), id, identity.Role(req.Role))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Role is updated successfully!", rec)
}

func (s *Server) handleChangeStatus(c echo.Context) error {
	id, err := pathID(c, "id", "User")
	if err != nil {
		return err
	}
	var req changeStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rec, err := s.users.ChangeStatus(c.Request().Context(), callerFrom(c), id, identity.UserStatus(req.Status))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Status is updated successfully!", rec)
}
