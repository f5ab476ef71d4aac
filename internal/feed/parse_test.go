package feed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleTextFeed = `Tanggal : 2024-06-01 10:02
Kredit : 1.500.000
Brand : GOPAY
------------------------
Tanggal : 2024-06-01 10:05
Kredit : 50.150
Brand : OVO
------------------------
Tanggal : 2024-06-01 10:07
Debet : 20.000
Brand : DANA`

func TestParseFreeTextBlocks(t *testing.T) {
	t.Parallel()

	txs := Parse([]byte(sampleTextFeed))
	require.Len(t, txs, 2) // the credit-less block is discarded

	require.Equal(t, int64(1500000), txs[0].Amount)
	require.Equal(t, "2024-06-01 10:02", txs[0].Label)
	require.Equal(t, "GOPAY", txs[0].Counterparty)

	require.Equal(t, int64(50150), txs[1].Amount)
	require.Equal(t, "OVO", txs[1].Counterparty)
}

func TestParseFreeTextMissingOptionalFields(t *testing.T) {
	t.Parallel()

	txs := Parse([]byte("Kredit : 75.000"))
	require.Len(t, txs, 1)
	require.Equal(t, int64(75000), txs[0].Amount)
	require.Equal(t, "-", txs[0].Label)
	require.Equal(t, "-", txs[0].Counterparty)
}

func TestParseStructuredDataKey(t *testing.T) {
	t.Parallel()

	payload := `{"status":"ok","data":[
		{"kredit":"50.150","tanggal":"2024-06-01","brand":"GOPAY"},
		{"amount":25000,"date":"2024-06-02","merchant":"OVO"},
		{"keterangan":"no amount here"}
	]}`
	txs := Parse([]byte(payload))
	require.Len(t, txs, 2)
	require.Equal(t, int64(50150), txs[0].Amount)
	require.Equal(t, "GOPAY", txs[0].Counterparty)
	require.Equal(t, int64(25000), txs[1].Amount)
	require.Equal(t, "2024-06-02", txs[1].Label)
}

func TestParseStructuredResultFallback(t *testing.T) {
	t.Parallel()

	payload := `{"result":[{"nominal":"1.000.000"}]}`
	txs := Parse([]byte(payload))
	require.Len(t, txs, 1)
	require.Equal(t, int64(1000000), txs[0].Amount)
}

func TestParseStructuredBareArray(t *testing.T) {
	t.Parallel()

	payload := `[{"jumlah":42000},{"total":"13.500"}]`
	txs := Parse([]byte(payload))
	require.Len(t, txs, 2)
	require.Equal(t, int64(42000), txs[0].Amount)
	require.Equal(t, int64(13500), txs[1].Amount)
}

func TestParseAmountKeyPrecedence(t *testing.T) {
	t.Parallel()

	// kredit wins over the later keys when both parse
	payload := `{"data":[{"kredit":"50.150","total":"99.999"}]}`
	txs := Parse([]byte(payload))
	require.Len(t, txs, 1)
	require.Equal(t, int64(50150), txs[0].Amount)

	// an unparsable kredit falls through to the next key
	payload = `{"data":[{"kredit":"pending","nominal":"20.000"}]}`
	txs = Parse([]byte(payload))
	require.Len(t, txs, 1)
	require.Equal(t, int64(20000), txs[0].Amount)
}

func TestParseUnrecognizedShapesYieldEmpty(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{
		``,
		`{}`,
		`{"data":"not a list"}`,
		`{"message":"maintenance"}`,
		`"just a string"`,
		`no labeled fields at all`,
	} {
		require.Empty(t, Parse([]byte(payload)), "payload %q", payload)
	}
}

func TestParseAmountStringStripsThousandsSeparators(t *testing.T) {
	t.Parallel()

	n, err := parseAmountString("1.500.000")
	require.NoError(t, err)
	require.Equal(t, int64(1500000), n)

	_, err = parseAmountString("")
	require.Error(t, err)
}
