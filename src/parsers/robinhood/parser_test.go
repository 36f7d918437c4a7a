package robinhood

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/optionstaxhub/backend/src/models"
)

const header = "Activity Date,Process Date,Settle Date,Instrument,Description,Trans Code,Quantity,Price,Amount\n"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"$7.70", 7.70},
		{"($732.00)", -732.00},
		{"($2,440.10)", -2440.10},
		{"$1,500.00", 1500.00},
		{"", 0},
		{"  ", 0},
		{"garbage", 0},
		{"-$5.00", 0}, // Robinhood uses parentheses, not minus signs
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseAmount(tc.input), "input %q", tc.input)
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"100", 100},
		{"100S", 100},
		{"2.5", 2.5},
		{"", 0},
		{"S", 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseQuantity(tc.input), "input %q", tc.input)
	}
}

func TestParseDateFormats(t *testing.T) {
	for _, input := range []string{"09/15/2025", "2025-09-15", "09-15-2025"} {
		d, err := parseDate(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, "2025-09-15", d.String())
	}

	_, err := parseDate("")
	assert.Error(t, err)
	_, err = parseDate("15.09.2025")
	assert.Error(t, err)
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, models.AssetTypeOption, determineAssetType(models.TransCodeBTO, ""))
	assert.Equal(t, models.AssetTypeOption, determineAssetType(models.TransCodeOEXP, ""))
	assert.Equal(t, models.AssetTypeOption, determineAssetType(models.TransCodeBuy, "AAPL 1/17/2026 Call $230.00"))
	assert.Equal(t, models.AssetTypeOption, determineAssetType(models.TransCodeSell, "TSLA 6/20/2025 Put $180.00"))
	assert.Equal(t, models.AssetTypeStock, determineAssetType(models.TransCodeBuy, "Apple"))
	// "call" only counts as a whole word
	assert.Equal(t, models.AssetTypeStock, determineAssetType(models.TransCodeBuy, "Recall Holdings"))
}

func TestParseFullExport(t *testing.T) {
	csv := header +
		`09/15/2025,09/16/2025,09/17/2025,AAPL,Apple,Buy,100,$150.00,"($15,000.00)"` + "\n" +
		`10/01/2025,10/02/2025,10/03/2025,AAPL,Apple,Sell,40,$160.00,"$6,400.00"` + "\n" +
		`10/05/2025,10/06/2025,10/07/2025,tsla,TSLA 1/16/2026 Call $300.00,BTO,2,$3.50,($700.00)` + "\n"

	p := NewParser()
	txns, fallback, warnings, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Nil(t, fallback)
	assert.Empty(t, warnings)
	require.Len(t, txns, 3)

	buy := txns[0]
	assert.Equal(t, "AAPL", buy.Instrument)
	assert.Equal(t, models.TransCodeBuy, buy.TransCode)
	assert.Equal(t, "2025-09-15", buy.ActivityDate.String())
	assert.Equal(t, 100.0, buy.Quantity)
	assert.Equal(t, 150.0, buy.Price)
	assert.Equal(t, -15000.0, buy.Amount)
	assert.Equal(t, models.AssetTypeStock, buy.AssetType)
	require.NotNil(t, buy.ProcessDate)
	assert.Equal(t, "2025-09-16", buy.ProcessDate.String())
	require.NotNil(t, buy.SettleDate)
	assert.Equal(t, "2025-09-17", buy.SettleDate.String())

	sell := txns[1]
	assert.Equal(t, models.TransCodeSell, sell.TransCode)
	assert.Equal(t, 6400.0, sell.Amount)

	opt := txns[2]
	assert.Equal(t, "TSLA", opt.Instrument, "instrument is uppercased")
	assert.Equal(t, models.TransCodeBTO, opt.TransCode)
	assert.Equal(t, models.AssetTypeOption, opt.AssetType)
	assert.Equal(t, 3.50, opt.Price)
	assert.Equal(t, -700.0, opt.Amount)
}

func TestParseSkipsAccountActivitySilently(t *testing.T) {
	csv := header +
		`09/15/2025,,,,ACH Deposit,ACH,,,"$5,000.00"` + "\n" +
		`09/16/2025,,,,Interest,RTP,,,$1.23` + "\n" +
		`09/17/2025,,,AAPL,Stock Split,SPR,100S,,` + "\n" +
		`09/18/2025,,,AAPL,Apple,Buy,10,$150.00,"($1,500.00)"` + "\n"

	txns, _, warnings, err := NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransCodeBuy, txns[0].TransCode)
}

func TestParseSkipsEmptyInstrumentSilently(t *testing.T) {
	csv := header +
		`09/15/2025,,,,Gold Subscription,GOLD,,,($5.00)` + "\n"

	txns, _, warnings, err := NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Empty(t, warnings)
}

func TestParseWarnsOnUnknownCode(t *testing.T) {
	csv := header +
		`09/15/2025,,,AAPL,Apple,XYZ,10,$150.00,($1500.00)` + "\n"

	txns, _, warnings, err := NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Empty(t, txns)
	require.Len(t, warnings, 1)
	assert.Equal(t, `Row 2: unknown Trans Code "XYZ" for AAPL`, warnings[0])
}

func TestParseWarnsOnBadDate(t *testing.T) {
	csv := header +
		`not-a-date,,,AAPL,Apple,Buy,10,$150.00,($1500.00)` + "\n" +
		`09/16/2025,,,MSFT,Microsoft,Buy,5,$400.00,($2000.00)` + "\n"

	txns, _, warnings, err := NewParser().Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "MSFT", txns[0].Instrument)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Row 2: missing or invalid Activity Date", warnings[0])
}

func TestParseFailsOnMissingHeader(t *testing.T) {
	_, _, _, err := NewParser().Parse(strings.NewReader(""))
	assert.Error(t, err)
}
