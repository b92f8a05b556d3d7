package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/static/errs"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errs.Malformed("bad"), http.StatusBadRequest},
		{fmt.Errorf("%w: empty", errs.InvalidArgument), http.StatusBadRequest},
		{errs.BatchNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: v1 is sealed", errs.BatchNotOpen), http.StatusConflict},
		{fmt.Errorf("x: %w", errs.BaselineMisconfiguration), http.StatusConflict},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusOf(tc.err), tc.err.Error())
	}
}

func TestFromErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(rec, errors.New("pq: password authentication failed"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Internal Server Error", body.Message)
}
