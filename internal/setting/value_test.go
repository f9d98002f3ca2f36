package setting

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValueKinds(t *testing.T) {
	require.Equal(t, TypeHex, parseValue("0x1F").Kind)
	require.Equal(t, int64(31), parseValue("0x1F").Int)
	require.Equal(t, TypeHex, parseValue("1Fh").Kind)
	require.Equal(t, int64(31), parseValue("1Fh").Int)
	require.Equal(t, TypeBool, parseValue("1").Kind)
	require.True(t, parseValue("1").Bool)
	require.Equal(t, TypeBool, parseValue("0").Kind)
	require.False(t, parseValue("0").Bool)
	require.Equal(t, TypeInt, parseValue("42").Kind)
	require.Equal(t, TypeFloat, parseValue("3.14").Kind)
	require.Equal(t, TypeString, parseValue("Enabled").Kind)
}

func TestFormatValuePreservesHex(t *testing.T) {
	out, err := formatValue(31, "0x1F")
	require.NoError(t, err)
	require.Equal(t, "0x1F", out)

	out, err = formatValue(255, "0Ah")
	require.NoError(t, err)
	require.Equal(t, "0xFF", out)
}

func TestFormatValueBool(t *testing.T) {
	out, err := formatValue(true, "0")
	require.NoError(t, err)
	require.Equal(t, "1", out)

	out, err = formatValue(false, "1")
	require.NoError(t, err)
	require.Equal(t, "0", out)
}

func TestFormatValueDecimal(t *testing.T) {
	out, err := formatValue(70, "65")
	require.NoError(t, err)
	require.Equal(t, "70", out)
}

func TestHashFallbackDeterministic(t *testing.T) {
	require.Equal(t, hashFallback("Auto"), hashFallback("Auto"))
	require.True(t, hashFallback("Auto") < 10000)
}
