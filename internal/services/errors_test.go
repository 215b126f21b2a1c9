package services_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"scribe/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "invoke", "run", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"invoke", "run", "failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

type nativeError struct{ msg string }

func (e *nativeError) Error() string { return e.msg }

func TestOpaqueHidesNativeType(t *testing.T) {
	native := &nativeError{msg: "CUDA out of memory"}
	err := services.Opaque(services.ErrTranscription, "invoke", "run", native)
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription marker, got %v", err)
	}
	var target *nativeError
	if errors.As(err, &target) {
		t.Fatal("native error type must not be reachable")
	}
	if !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Fatalf("expected original message preserved, got %q", err.Error())
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{services.Wrap(services.ErrValidation, "intake", "validate", "too small", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrModelLoad, "model", "load", "tiny", nil), http.StatusServiceUnavailable},
		{services.Wrap(services.ErrTranscription, "invoke", "run", "", nil), http.StatusInternalServerError},
		{services.Wrap(services.ErrNotFound, "history", "get", "", nil), http.StatusNotFound},
		{services.Wrap(services.ErrTransient, "daemon", "enqueue", "queue full", nil), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if got := services.HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestKindLabels(t *testing.T) {
	if got := services.Kind(services.Wrap(services.ErrModelLoad, "", "", "", nil)); got != "model_load" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := services.Kind(services.Wrap(nil, "daemon", "", "", nil)); got != "transient" {
		t.Fatalf("nil marker should default to transient, got %q", got)
	}
	if got := services.Kind(errors.New("other")); got != "internal" {
		t.Fatalf("unexpected kind %q", got)
	}
}
