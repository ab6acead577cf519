package models

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestCommaSeparatedStrings(t *testing.T) {
	type testCase struct {
		stored   interface{}
		expected CommaSeparatedStrings
	}

	run := func(t *testing.T, tc testCase) {
		var actual CommaSeparatedStrings
		err := actual.Scan(tc.stored)
		assert.NilError(t, err)
		assert.DeepEqual(t, actual, tc.expected)
	}

	testCases := map[string]testCase{
		"empty":    {stored: "", expected: CommaSeparatedStrings{}},
		"nil":      {stored: nil, expected: CommaSeparatedStrings{}},
		"single":   {stored: "connect", expected: CommaSeparatedStrings{"connect"}},
		"multiple": {stored: []byte("connect,transfer"), expected: CommaSeparatedStrings{"connect", "transfer"}},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			run(t, tc)
		})
	}

	value, err := CommaSeparatedStrings{"connect", "transfer"}.Value()
	assert.NilError(t, err)
	assert.Equal(t, value, "connect,transfer")

	assert.Assert(t, CommaSeparatedStrings{"connect", "transfer"}.Includes("transfer"))
	assert.Assert(t, !CommaSeparatedStrings{"connect"}.Includes("transfer"))
}

func TestJSONMap(t *testing.T) {
	value, err := JSONMap{"charset": "utf-8"}.Value()
	assert.NilError(t, err)
	assert.Equal(t, value, `{"charset":"utf-8"}`)

	var m JSONMap
	assert.NilError(t, m.Scan(`{"charset":"utf-8","backspaceAsCtrlH":true}`))
	assert.DeepEqual(t, m, JSONMap{"charset": "utf-8", "backspaceAsCtrlH": true})

	assert.NilError(t, m.Scan(nil))
	assert.DeepEqual(t, m, JSONMap{})

	assert.ErrorContains(t, m.Scan("{not json"), "json decoding field")
}
