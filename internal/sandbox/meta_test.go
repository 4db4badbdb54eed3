package sandbox

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetaFileMissingStatusIsOk(t *testing.T) {
	res, err := parseMetaFile([]byte("time:0.1\ntime-wall:0.2\nmax-rss:1024\n"))
	require.NoError(t, err)
	assert.Equal(t, statusOk(), res.Status)
	assert.Equal(t, 0.1, res.Time)
	assert.Equal(t, 0.2, res.RealTime)
	assert.Equal(t, int64(1024), res.Memory)
	assert.False(t, res.Killed)
}

func TestParseMetaFileRunTimeError(t *testing.T) {
	res, err := parseMetaFile([]byte("status:RE\nexitcode:1\ntime:0.1\ntime-wall:0.1\nmax-rss:512\n"))
	require.NoError(t, err)
	assert.Equal(t, statusRe(1), res.Status)
}

func TestParseMetaFileTimeout(t *testing.T) {
	res, err := parseMetaFile([]byte("status:TO\ntime:5\ntime-wall:10\nmax-rss:100\n"))
	require.NoError(t, err)
	assert.Equal(t, statusTl(), res.Status)
}

func TestParseMetaFileSignal6And11MapToMl(t *testing.T) {
	for _, sig := range []int{6, 11} {
		res, err := parseMetaFile([]byte(
			"status:SG\nexitsig:" + strconv.Itoa(sig) + "\ntime:0.1\ntime-wall:0.1\nmax-rss:1\n"))
		require.NoError(t, err)
		assert.Equal(t, statusMl(), res.Status, "signal %d should map to Ml", sig)
	}
}

func TestParseMetaFileOtherSignalIsSg(t *testing.T) {
	res, err := parseMetaFile([]byte("status:SG\nexitsig:9\ntime:0.1\ntime-wall:0.1\nmax-rss:1\n"))
	require.NoError(t, err)
	assert.Equal(t, statusSg(9), res.Status)
}

func TestParseMetaFileUnknownStatusIsFatal(t *testing.T) {
	_, err := parseMetaFile([]byte("status:WAT\ntime:0.1\ntime-wall:0.1\nmax-rss:1\n"))
	require.Error(t, err)
	var perr *ErrMetaParse
	assert.ErrorAs(t, err, &perr)
}

func TestParseMetaFileIgnoresUnknownKeysAndTrailingBlankLines(t *testing.T) {
	res, err := parseMetaFile([]byte("time:0.1\ntime-wall:0.1\nmax-rss:1\ncg-mem:999\n\n\n"))
	require.NoError(t, err)
	assert.Equal(t, statusOk(), res.Status)
}

func TestParseMetaFileNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"garbage with no colon",
		"status\n",
		":\n",
		"status:RE\n",
		"killed:1\ntime:1\ntime-wall:1\nmax-rss:1\nstatus:RE\nexitcode:0\n",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			_, _ = parseMetaFile([]byte(in))
		})
	}
}
