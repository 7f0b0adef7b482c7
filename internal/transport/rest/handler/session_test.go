package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"voxpop/internal/model"
)

func TestWritePipelineErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: empty message", model.ErrInvalidInput), http.StatusBadRequest},
		{model.ErrSessionNotFound, http.StatusNotFound},
		{model.ErrSessionNotActive, http.StatusConflict},
		{model.ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: SAFETY", model.ErrContentFiltered), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: backend status 503", model.ErrTransient), http.StatusServiceUnavailable},
		{errors.New("something else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		writePipelineError(w, tc.err)
		assert.Equal(t, tc.want, w.Code, "error %v", tc.err)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	}
}
