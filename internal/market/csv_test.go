package market

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVWithHeader(t *testing.T) {
	data := `timestamp,open,high,low,close,volume
2024-01-02,10,11,9,10.5,1000
2024-01-01,9,10,8,9.5,900
`
	bars, err := ReadCSV(strings.NewReader(data), "AAPL")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	// 输出升序
	assert.InDelta(t, 9.5, bars[0].Close, 1e-9)
	assert.InDelta(t, 10.5, bars[1].Close, 1e-9)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Less(t, bars[0].TS, bars[1].TS)
}

func TestReadCSVUnixTimestamps(t *testing.T) {
	// 10 位按秒、13 位按毫秒
	data := "1704067200,10,11,9,10.5,1000\n1704153600000,11,12,10,11.5,1100\n"
	bars, err := ReadCSV(strings.NewReader(data), "TEST")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int64(1704067200000), bars[0].TS)
	assert.Equal(t, int64(1704153600000), bars[1].TS)
}

func TestReadCSVErrors(t *testing.T) {
	t.Run("EmptySymbol", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("2024-01-01,1,2,0.5,1.5,10\n"), "")
		assert.Error(t, err)
	})

	t.Run("ShortRow", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("2024-01-01,1,2\n"), "TEST")
		assert.Error(t, err)
	})

	t.Run("BadTimestamp", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("someday,1,2,0.5,1.5,10\n"), "TEST")
		assert.Error(t, err)
	})

	t.Run("BadNumber", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("2024-01-01,x,2,0.5,1.5,10\n"), "TEST")
		assert.Error(t, err)
	})
}
