package apperr

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestAs_FindsWrappedError(t *testing.T) {
	base := NotFound("tracking code not found")
	err := errors.Wrap(base, "get by code")

	require.Equal(t, KindNotFound, KindOf(err))
	require.True(t, Is(err, KindNotFound))
	require.Equal(t, http.StatusNotFound, HTTPStatus(KindOf(err)))
}

func TestAs_UnknownErrorIsBackend(t *testing.T) {
	err := errors.New("connection refused")
	e := As(err)
	require.Equal(t, KindBackend, e.Kind)
	require.ErrorIs(t, e, err)
	require.Equal(t, http.StatusServiceUnavailable, HTTPStatus(e.Kind))
}

func TestNil(t *testing.T) {
	require.Nil(t, As(nil))
	require.Equal(t, Kind(""), KindOf(nil))
	require.False(t, Is(nil, KindBackend))
}

func TestConstructors(t *testing.T) {
	c := As(Conflict("tracking code already exists", "tracking_code"))
	require.Equal(t, KindConflict, c.Kind)
	require.Equal(t, "tracking code already exists", c.Fields["tracking_code"])
	require.Equal(t, http.StatusConflict, HTTPStatus(c.Kind))

	a := As(Auth("invalid email or password", nil))
	require.Contains(t, a.Fields, "password")
	require.Equal(t, http.StatusUnauthorized, HTTPStatus(a.Kind))

	v := As(Validation("bad", map[string]string{"status": "Status is required"}))
	require.Equal(t, http.StatusBadRequest, HTTPStatus(v.Kind))
	require.Equal(t, "bad", v.Error())
}
