package collector

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestIdentifier(t *testing.T) {
	params := map[string]string{"account_id": "7", "branch": "001"}
	first := Identifier(params, "TRANSFER|TO JOHN", "DB", "1000.00", "5000.00")

	for i := 0; i < 20; i++ {
		// map iteration order must not matter
		again := Identifier(map[string]string{"branch": "001", "account_id": "7"}, "TRANSFER|TO JOHN", "DB", "1000.00", "5000.00")
		require.Equal(t, first, again)
	}

	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(5), parsed.Version())

	require.Equal(t, first, Identifier(params, " TRANSFER|TO JOHN ", "DB", "1000.00", "5000.00"))
	require.NotEqual(t, first, Identifier(map[string]string{"account_id": "8", "branch": "001"}, "TRANSFER|TO JOHN", "DB", "1000.00", "5000.00"))
	require.NotEqual(t, first, Identifier(params, "TRANSFER|TO JOHN", "CR", "1000.00", "5000.00"))

	require.Equal(t, "account_id=7&branch=001", SerializeParams(params))
}

func TestValidAmount(t *testing.T) {
	require.True(t, ValidAmount("1000.00"))
	require.True(t, ValidAmount("0.5"))
	require.False(t, ValidAmount(""))
	require.False(t, ValidAmount("1,000.00"))
	require.False(t, ValidAmount("abc"))
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{nil, KindGeneric},
		{errors.New("boom"), KindGeneric},
		{Precondition("use Landing() first"), KindConfiguration},
		{fmt.Errorf("login: %w", ErrLoginFailure), KindLoginFailure},
		{fmt.Errorf("landing: %w", ErrExtendedProcess), KindExtendedProcess},
		{ParsingError("table #%d not found", 4), KindParsing},
		{&TransportError{Method: "GET", URL: "https://bank", Status: 500}, KindTransport},
		{ErrUnderMaintenance, KindUnderMaintenance},
	}
	for _, c := range cases {
		require.Equal(t, c.kind, KindOf(c.err), fmt.Sprint(c.err))
	}
	require.Equal(t, "login_failure", KindLoginFailure.String())
}

func TestRegistry(t *testing.T) {
	registry := Registry{
		"bca": func() (Collector, error) { return nil, nil },
	}
	require.Equal(t, []string{"bca"}, registry.Names())

	_, err := registry.New("bni")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestSettings(t *testing.T) {
	var s Settings
	require.ErrorIs(t, s.CheckBaseUri(), ErrConfiguration)
	require.ErrorIs(t, s.CheckCredential(), ErrConfiguration)

	s.SetBaseUri("https://ibank.example.com/")
	require.Equal(t, "https://ibank.example.com", s.BaseUri)

	params := map[string]string{"account_id": "3"}
	s.SetAdditionalEntityParams(params)
	params["account_id"] = "4"
	require.Equal(t, "3", s.AccountID())

	s.SetCredential("alice", "")
	require.ErrorIs(t, s.CheckCredential(), ErrConfiguration)
}
