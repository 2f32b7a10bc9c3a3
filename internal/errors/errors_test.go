// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindValidation, "invalid mac")
	if err.Error() != "invalid mac" {
		t.Errorf("expected 'invalid mac', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindExecution, "iptables failed")
	if wrapped.Error() != "iptables failed: invalid mac" {
		t.Errorf("unexpected message '%s'", wrapped.Error())
	}

	if Wrap(nil, KindExecution, "nothing") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestGetKind(t *testing.T) {
	err := Errorf(KindTimeout, "tc timed out after %s", "10s")
	if GetKind(err) != KindTimeout {
		t.Errorf("expected KindTimeout, got %v", GetKind(err))
	}
	if !IsTimeout(fmt.Errorf("outer: %w", err)) {
		t.Error("IsTimeout should see through fmt wrapping")
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown for plain errors")
	}
	if !IsUnavailable(New(KindUnavailable, "no netlink")) {
		t.Error("expected IsUnavailable")
	}
}

func TestKindString(t *testing.T) {
	if KindExecution.String() != "execution" {
		t.Errorf("got %q", KindExecution.String())
	}
	if Kind(99).String() != "unknown" {
		t.Errorf("got %q", Kind(99).String())
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindExecution, "exit status 1")
	err = Attr(err, "tool", "tc")
	err = Attr(err, "interface", "wlan0")

	attrs := GetAttributes(err)
	if attrs["tool"] != "tc" || attrs["interface"] != "wlan0" {
		t.Errorf("missing attributes: %v", attrs)
	}

	wrapped := Wrap(err, KindInternal, "rate limit")
	wrapped = Attr(wrapped, "step", "rate_limit")

	all := GetAttributes(wrapped)
	if all["tool"] != "tc" || all["step"] != "rate_limit" {
		t.Errorf("missing chained attributes: %v", all)
	}

	plain := Attr(errors.New("boom"), "k", 1)
	if GetKind(plain) != KindInternal {
		t.Errorf("plain error should become KindInternal, got %v", GetKind(plain))
	}
}
