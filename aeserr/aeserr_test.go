package aeserr

import (
	"errors"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(StreamNotFound, "stream abc123", errors.New("underlying"))
	if !errors.Is(err, New(StreamNotFound, "")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if errors.Is(err, New(StreamDuplicate, "")) {
		t.Fatal("expected errors.Is to not match different code")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("socket refused")
	err := Wrap(NetworkSocket, "bind failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach the wrapped cause")
	}
}

func TestNewHasNoCause(t *testing.T) {
	err := New(Generic, "bad parameter")
	if err.Unwrap() != nil {
		t.Fatal("expected nil cause for New")
	}
}
