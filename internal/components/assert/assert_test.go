package assert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotNil(t *testing.T) {
	require.Panics(t, func() { NotNil(nil) })

	var ptr *int
	require.Panics(t, func() { NotNil(ptr) })

	var m map[string]string
	require.Panics(t, func() { NotNil(m) })

	value := 5
	require.NotPanics(t, func() { NotNil(&value) })
	require.NotPanics(t, func() { NotNil("x") })
}

func TestNotEmptyStr(t *testing.T) {
	require.Panics(t, func() { NotEmptyStr("") })
	require.NotPanics(t, func() { NotEmptyStr("bca") })
}
