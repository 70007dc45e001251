package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tire-storage-bonus/internal/service"
)

func TestErrorStatus(t *testing.T) {
	cases := map[error]int{
		service.ErrUserNotFound:                            http.StatusNotFound,
		fmt.Errorf("wrap: %w", service.ErrCellNotFound):    http.StatusNotFound,
		service.ErrSettingNotFound:                         http.StatusBadRequest,
		service.ErrInvalidAmount:                           http.StatusBadRequest,
		service.ErrInvalidInput:                            http.StatusBadRequest,
		fmt.Errorf("x: %w", service.ErrAssignmentConflict): http.StatusConflict,
		service.ErrConflict:                                http.StatusConflict,
		service.ErrForbidden:                               http.StatusForbidden,
		fmt.Errorf("qr codes: %w", service.ErrUnavailable): http.StatusServiceUnavailable,
		errors.New("connection refused"):                   http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, errorStatus(err), err.Error())
	}
}
