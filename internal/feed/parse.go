package feed

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Transaction is one settled incoming payment as reported by the feed.
// Records are produced fresh on every fetch and discarded after matching;
// nothing here is persisted.
type Transaction struct {
	Amount       int64  // minor units, thousands separators stripped
	Label        string // provider's date string, informational
	Counterparty string // issuing brand / merchant, informational
}

// textBlockDelimiter separates entries in the provider's free-text report.
const textBlockDelimiter = "------------------------"

var (
	creditRe = regexp.MustCompile(`Kredit\s*:\s*([\d\.]+)`)
	dateRe   = regexp.MustCompile(`Tanggal\s*:\s*(.+)`)
	brandRe  = regexp.MustCompile(`Brand\s*:\s*(.+)`)

	amountKeys = []string{"kredit", "amount", "nominal", "jumlah", "total"}
)

// Parse normalizes a provider payload into transaction records. Structured
// extraction runs first, then the free-text scraper; the first strategy that
// yields anything wins. An unrecognized shape is not an error: it yields nil,
// indistinguishable from a report with no transactions.
func Parse(raw []byte) []Transaction {
	for _, strategy := range []func([]byte) []Transaction{parseStructured, parseTextBlocks} {
		if txs := strategy(raw); len(txs) > 0 {
			return txs
		}
	}
	return nil
}

// parseStructured handles JSON payloads. The transaction list hides under
// "data", then "result", or the payload is already a bare array. Items
// without a resolvable amount are discarded.
func parseStructured(raw []byte) []Transaction {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil
	}

	var items []any
	switch p := payload.(type) {
	case map[string]any:
		if list, ok := p["data"].([]any); ok {
			items = list
		} else if list, ok := p["result"].([]any); ok {
			items = list
		}
	case []any:
		items = p
	}

	var out []Transaction
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		amount, ok := amountField(m, amountKeys...)
		if !ok {
			continue
		}
		out = append(out, Transaction{
			Amount:       amount,
			Label:        stringField(m, "tanggal", "date"),
			Counterparty: stringField(m, "brand", "merchant"),
		})
	}
	return out
}

// parseTextBlocks handles the free-text report: blocks separated by a dashed
// delimiter line, each scanned for labeled credit/date/brand fields. Blocks
// missing the credit field are discarded.
func parseTextBlocks(raw []byte) []Transaction {
	var out []Transaction
	for _, block := range strings.Split(string(raw), textBlockDelimiter) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		credit := creditRe.FindStringSubmatch(block)
		if credit == nil {
			continue
		}
		amount, err := parseAmountString(credit[1])
		if err != nil {
			continue
		}
		tx := Transaction{Amount: amount, Label: "-", Counterparty: "-"}
		if m := dateRe.FindStringSubmatch(block); m != nil {
			tx.Label = strings.TrimSpace(m[1])
		}
		if m := brandRe.FindStringSubmatch(block); m != nil {
			tx.Counterparty = strings.TrimSpace(m[1])
		}
		out = append(out, tx)
	}
	return out
}

// amountField probes keys in order and returns the first value that parses
// to a positive integer amount.
func amountField(m map[string]any, keys ...string) (int64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		n, err := parseAmountValue(v)
		if err != nil || n <= 0 {
			continue
		}
		return n, true
	}
	return 0, false
}

func parseAmountValue(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case string:
		return parseAmountString(n)
	case float64:
		return int64(n), nil
	default:
		return 0, strconv.ErrSyntax
	}
}

// parseAmountString strips the provider's "." thousands separators before
// integer conversion: "1.500.000" -> 1500000.
func parseAmountString(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	return strconv.ParseInt(s, 10, 64)
}
