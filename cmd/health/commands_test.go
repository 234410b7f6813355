package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-scanner/internal/config"
	"rpc-scanner/internal/domain/capability"
	"rpc-scanner/internal/pkg/apperrors"
)

func TestProbeDefinitions(t *testing.T) {
	matrix := capability.Default(capability.Bindings{Account: "someguy123", PubPrefix: "STM"})

	all, err := probeDefinitions(matrix, nil, "[]")
	require.NoError(t, err)
	assert.Len(t, all, matrix.TotalProbes())

	defs, err := probeDefinitions(matrix, []string{"condenser_api.get_accounts", "database_api.get_version"}, "{}")
	require.NoError(t, err)
	require.Len(t, defs, 2)

	known, _, _ := matrix.Lookup("condenser_api.get_accounts")
	assert.Equal(t, known, defs[0])
	assert.Equal(t, "database_api.get_version", defs[1].Method)
	assert.Equal(t, "{}", defs[1].Params)

	_, err = probeDefinitions(matrix, []string{"database_api.get_version"}, "{not json")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSessionExit(t *testing.T) {
	s := &session{cfg: &config.Config{Health: config.HealthConfig{GoodReturnCode: 0, BadReturnCode: 8}}}

	assert.NoError(t, s.exit(true))

	err := s.exit(false)
	var exitErr *exitCodeError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 8, exitErr.code)
}
