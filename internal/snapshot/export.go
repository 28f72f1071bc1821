package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// exportHeader lists the flat columns written by WriteCSV and WriteXLSX.
var exportHeader = []string{
	"rank", "bbl", "address", "neighborhood", "zipcode", "owner_name",
	"portfolio_size", "score", "badges", "last_sale_date", "last_sale_amount",
	"tenure_months", "permits_12m", "complaints_30d", "violations",
	"loan_near_maturity", "remaining_far",
}

func exportRow(rank int, l Lead) []string {
	var sale, tenure string
	if l.LastSaleDate != nil {
		sale = l.LastSaleDate.Format("2006-01-02")
	}
	if l.TenureMonths != nil {
		tenure = strconv.Itoa(*l.TenureMonths)
	}
	return []string{
		strconv.Itoa(rank),
		l.BBL,
		l.Address,
		l.Neighborhood,
		l.ZipCode,
		l.OwnerName,
		strconv.Itoa(l.PortfolioSize),
		fmt.Sprintf("%.1f", l.Score),
		strings.Join(l.SignalBadges, "; "),
		sale,
		formatAmount(l.LastSaleAmount),
		tenure,
		strconv.Itoa(l.Signals.PermitCount12m),
		strconv.Itoa(l.Signals.ComplaintCount30d),
		strconv.Itoa(l.Violations),
		strconv.FormatBool(l.Signals.LoanNearMaturity),
		fmt.Sprintf("%.1f", l.Signals.RemainingFAR),
	}
}

func formatAmount(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

// WriteCSV writes leads to w, one row per lead in rank order.
func WriteCSV(w io.Writer, leads []Lead) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(exportHeader); err != nil {
		return eris.Wrap(err, "snapshot: write CSV header")
	}
	for i, l := range leads {
		if err := cw.Write(exportRow(i+1, l)); err != nil {
			return eris.Wrap(err, "snapshot: write CSV row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "snapshot: flush CSV")
	}
	return nil
}

// WriteXLSX saves leads as a single-sheet workbook at path.
func WriteXLSX(path string, leads []Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "snapshot: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetString(h)
	}
	for i, l := range leads {
		row := sheet.AddRow()
		for j, v := range exportRow(i+1, l) {
			cell := row.AddCell()
			switch exportHeader[j] {
			case "rank", "portfolio_size", "permits_12m", "complaints_30d", "violations":
				n, _ := strconv.Atoi(v)
				cell.SetInt(n)
			case "score", "remaining_far":
				fv, _ := strconv.ParseFloat(v, 64)
				cell.SetFloat(fv)
			default:
				cell.SetString(v)
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "snapshot: save %s", path)
	}
	return nil
}
