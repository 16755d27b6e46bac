package infra

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorStack_New(t *testing.T) {
	err := NewErrorStack("[infra] boom")
	require.Error(t, err)
	require.Equal(t, "[infra] boom", err.Error())
}

func TestErrorStack_WrapKeepsCause(t *testing.T) {
	cause := errors.New("[infra] root cause")
	err := WrapErrorStack(cause, "[infra] outer")
	require.Error(t, err)
	require.True(t, errors.Is(err, cause))
	require.Equal(t, "[infra] outer: [infra] root cause", err.Error())

	var stack *ErrorStack
	require.True(t, errors.As(err, &stack))
}

func TestErrorStack_WrapNil(t *testing.T) {
	require.NoError(t, WrapErrorStack(nil))
	require.NoError(t, WrapErrorStack(nil, "ignored"))
}

func TestErrorStack_VerboseFormatCarriesFrames(t *testing.T) {
	err := WrapErrorStack(errors.New("cause"))
	verbose := fmt.Sprintf("%+v", err)
	require.True(t, strings.Contains(verbose, "err_stack_test.go"))
}
