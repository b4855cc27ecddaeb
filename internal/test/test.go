package test

import (
	"reflect"
	"testing"
)

func Equal(t *testing.T, expected, actual any, msg string) {
	t.Helper()

	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("%s\nexpected: %#v\n  actual: %#v", msg, expected, actual)
	}
}

func True(t *testing.T, cond bool, msg string) {
	t.Helper()

	if !cond {
		t.Error(msg)
	}
}
