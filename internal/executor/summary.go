package executor

import (
	"strconv"

	"ezdb/internal/ezerr"
	"ezdb/internal/ezql"
	"ezdb/internal/keystring"
	"ezdb/internal/stats"
	"ezdb/internal/table"
)

// summaryRowOrder fixes the row order of a SUMMARY result table. It must
// be the KeyString-lexicographic order of the names (MEAN < MEDIAN < MODE
// < STDEV < SUM) so the output's primary "Statistic" column satisfies the
// strict-ascending invariant (spec §8.1.3) without a second sort pass.
var summaryRowOrder = []ezql.StatAction{
	ezql.StatMean, ezql.StatMedian, ezql.StatMode, ezql.StatStdev, ezql.StatSum,
}

// sentinelText is the placeholder value for statistics that do not apply
// to a column's type: every text statistic but MODE. Float MODE is
// reported as "0.0" instead.
const sentinelText = "N/A"

func execSummary(pool Pool, q *ezql.Query, prevResult *table.EZTable) (*table.EZTable, error) {
	t, release, err := resolveRead(pool, q, prevResult)
	if err != nil {
		return nil, err
	}
	defer release()

	idxs, err := KeysToIndexes(t, q.Keys)
	if err != nil {
		return nil, err
	}
	idxs, err = FilterKeepers(t, idxs, q.Conditions)
	if err != nil {
		return nil, err
	}

	items := []table.HeaderItem{{Name: "Statistic", Kind: table.ColumnText, Key: table.KeyPrimary}}
	cells := make(map[string][]string, len(q.Statistics))
	for _, stat := range q.Statistics {
		col, ok := t.Header.Find(stat.Column)
		if !ok {
			return nil, ezerr.Newf(ezerr.Query, "statistics: no such column %q", stat.Column)
		}
		items = append(items, table.HeaderItem{Name: col.Name, Kind: table.ColumnText})
		cells[col.Name] = computeColumnStats(t.Columns[col.Name], idxs)
	}

	header, err := table.NewHeader(items)
	if err != nil {
		return nil, err
	}
	out, err := table.New(ezql.ResultRegister, header)
	if err != nil {
		return nil, err
	}

	statCol := out.Columns["Statistic"]
	for _, action := range summaryRowOrder {
		ks, err := keystring.From(string(action))
		if err != nil {
			return nil, err
		}
		statCol.Texts = append(statCol.Texts, ks)
	}
	for name, values := range cells {
		col := out.Columns[name]
		for _, v := range values {
			ks, err := keystring.From(v)
			if err != nil {
				return nil, err
			}
			col.Texts = append(col.Texts, ks)
		}
	}
	return out, nil
}

// computeColumnStats returns the 5 formatted statistic cells for one
// column, in summaryRowOrder (MEAN, MEDIAN, MODE, STDEV, SUM).
func computeColumnStats(col *table.Column, idxs []int) []string {
	switch col.Kind {
	case table.ColumnInt:
		vals := make([]int32, len(idxs))
		for i, idx := range idxs {
			vals[i] = col.Ints[idx]
		}
		return []string{
			formatFloat(stats.MeanInt32(vals)),
			formatFloat(stats.MedianInt32(vals)),
			strconv.FormatInt(int64(stats.ModeInt32(vals)), 10),
			formatFloat(stats.StdevInt32(vals)),
			strconv.FormatInt(stats.SumInt32(vals), 10),
		}
	case table.ColumnFloat:
		vals := make([]float32, len(idxs))
		for i, idx := range idxs {
			vals[i] = col.Floats[idx]
		}
		return []string{
			formatFloat(stats.MeanFloat32(vals)),
			formatFloat(stats.MedianFloat32(vals)),
			"0.0",
			formatFloat(stats.StdevFloat32(vals)),
			formatFloat(stats.SumFloat32(vals)),
		}
	case table.ColumnText:
		vals := make([]string, len(idxs))
		for i, idx := range idxs {
			vals[i] = col.Texts[idx].String()
		}
		return []string{
			sentinelText,
			sentinelText,
			stats.ModeString(vals),
			sentinelText,
			sentinelText,
		}
	default:
		return []string{sentinelText, sentinelText, sentinelText, sentinelText, sentinelText}
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
