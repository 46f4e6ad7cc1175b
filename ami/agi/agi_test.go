package agi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuotesEachArgument(t *testing.T) {
	got := Build(SayAlpha, "hi there")
	assert.Equal(t, `SAY ALPHA "hi there"`, got)
}

func TestBuildEscapesEmbeddedQuotes(t *testing.T) {
	got := Build(StreamFile, `weird"file`, "")
	assert.Equal(t, `STREAM FILE "weird\"file" ""`, got)
}

func TestBuildWithNoArgs(t *testing.T) {
	got := Build(Answer)
	assert.Equal(t, "ANSWER", got)
}

func TestDigitFromResult(t *testing.T) {
	assert.Equal(t, "5", DigitFromResult('5'))
	assert.Equal(t, "", DigitFromResult(0))
	assert.Equal(t, "", DigitFromResult(-1))
}

func TestItoa(t *testing.T) {
	assert.Equal(t, "42", Itoa(42))
}

func TestParseResultSplitsCodeFromRest(t *testing.T) {
	code, rest, err := ParseResult("200 result=1 (speech)")
	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, "result=1 (speech)", rest)
}

func TestParseResultRejectsMissingRest(t *testing.T) {
	_, _, err := ParseResult("200")
	require.Error(t, err)
}

func TestParseResultRejectsNonNumericCode(t *testing.T) {
	_, _, err := ParseResult("nope result=1")
	require.Error(t, err)
}

func TestParseResultToleratesFreeTextOnNon200(t *testing.T) {
	code, rest, err := ParseResult("510 Invalid or unknown command")
	require.NoError(t, err)
	assert.Equal(t, 510, code)
	assert.Equal(t, "Invalid or unknown command", rest)
}

func TestParseParamsSplitsKeyValuePairs(t *testing.T) {
	params, err := ParseParams("result=1 endpos=12345")
	require.NoError(t, err)
	assert.Equal(t, "1", params["result"])
	assert.Equal(t, "12345", params["endpos"])
}

func TestParseParamsRejectsNonKeyValueToken(t *testing.T) {
	_, err := ParseParams("not-key-value")
	require.Error(t, err)
}
