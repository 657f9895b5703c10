package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{NotFound("x"), http.StatusNotFound},
		{Validation("x"), http.StatusBadRequest},
		{Conflict("x"), http.StatusConflict},
		{Forbidden("x"), http.StatusForbidden},
		{Unauthorized("x"), http.StatusUnauthorized},
		{Internal("x"), http.StatusInternalServerError},
		{Gone("x"), http.StatusGone},
		{TooManyRequests("x"), http.StatusTooManyRequests},
		{Unavailable("x", errors.New("boom")), http.StatusBadGateway},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Errorf("kind %d: expected %d, got %d", tc.err.Kind, tc.want, got)
		}
	}
}

func TestGetKindLooksThroughWrapping(t *testing.T) {
	base := Conflict("reference already used").WithOp("requests.Create")
	wrapped := fmt.Errorf("create request: %w", base)

	if !Is(wrapped, KindConflict) {
		t.Fatalf("expected wrapped error to keep conflict kind")
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatalf("expected unknown kind for plain error")
	}
	if base.Error() != "requests.Create: reference already used" {
		t.Fatalf("unexpected message %q", base.Error())
	}
}
