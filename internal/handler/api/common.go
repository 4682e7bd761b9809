package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIResponse is the JSON envelope all ops endpoints answer with.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}
