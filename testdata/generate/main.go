// Command generate writes a deterministic pair of settlement and releases
// exports for local runs of the reconciler.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

var methods = []string{"visa", "master", "elo", "pix", "bolbradesco", "available_money"}

var (
	settlementHeader = []string{
		"EXTERNAL_REFERENCE", "SOURCE_ID", "TRANSACTION_TYPE", "DESCRIPTION",
		"PAYMENT_METHOD", "PAYMENT_METHOD_TYPE", "TRANSACTION_AMOUNT", "FEE_AMOUNT",
		"SETTLEMENT_NET_AMOUNT", "INSTALLMENTS", "INSTALLMENT_NUMBER",
		"INSTALLMENT_NET_AMOUNT", "APPROVAL_DATE", "MONEY_RELEASE_DATE",
	}
	releasesHeader = []string{
		"RELEASE_DATE", "SOURCE_ID", "EXTERNAL_REFERENCE", "RECORD_TYPE",
		"DESCRIPTION", "NET_CREDIT_AMOUNT", "NET_DEBIT_AMOUNT", "GROSS_AMOUNT",
		"MP_FEE_AMOUNT", "INSTALLMENTS", "PAYMENT_METHOD",
	}
)

type generator struct {
	rng        *rand.Rand
	today      time.Time
	settlement [][]string
	releases   [][]string
}

func main() {
	out := flag.String("out", "data", "output directory; settlement/ and releases/ are created inside")
	orders := flag.Int("orders", 60, "number of orders")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	g := &generator{
		rng:   rand.New(rand.NewSource(*seed)),
		today: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 1; i <= *orders; i++ {
		g.order(i)
	}
	g.orphans(3)
	g.movements()

	if err := write(filepath.Join(*out, "settlement", "settlement.csv"), ';', settlementHeader, g.settlement); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := write(filepath.Join(*out, "releases", "releases.csv"), ',', releasesHeader, g.releases); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d settlement rows and %d release rows in %s\n", len(g.settlement), len(g.releases), *out)
}

// order emits one sale: its settlement total, installment lines, optional
// refund or chargeback, and the releases paid so far.
func (g *generator) order(i int) {
	ref := fmt.Sprintf("ORD-%04d", i)
	src := fmt.Sprintf("%d", 90000000000+i)
	method := methods[g.rng.Intn(len(methods))]
	methodType := "credit_card"
	count := 1 + g.rng.Intn(6)
	switch method {
	case "pix":
		methodType, count = "bank_transfer", 1
	case "bolbradesco":
		methodType, count = "ticket", 1
	case "available_money":
		methodType, count = "account_money", 1
	}

	approved := g.today.AddDate(0, 0, -20-g.rng.Intn(120))
	per := decimal.NewFromInt(int64(30 + g.rng.Intn(300))).Add(decimal.New(int64(g.rng.Intn(100)), -2))
	net := per.Mul(decimal.NewFromInt(int64(count)))
	fee := net.Mul(decimal.New(5, -2)).Round(2)
	gross := net.Add(fee)

	g.settlement = append(g.settlement, []string{
		ref, src, "SETTLEMENT", "", method, methodType, amount(gross), amount(fee),
		amount(net), fmt.Sprint(count), "", "", approved.Format(time.RFC3339), "",
	})

	// 4% of the sales are paid for a slightly different amount.
	mismatch := g.rng.Float64() < 0.04
	advanced := g.rng.Float64() < 0.15

	for n := 1; n <= count; n++ {
		due := approved.AddDate(0, n, 0)
		label := fmt.Sprintf("%d/%d", n, count)
		g.settlement = append(g.settlement, []string{
			ref, src, "SETTLEMENT", "INSTALLMENT", method, methodType, "", "",
			"", fmt.Sprint(count), label, amount(per), "", due.Format("2006-01-02"),
		})

		released := due
		if advanced && n > 1 {
			released = approved.AddDate(0, 0, 30)
		}
		if released.After(g.today) {
			continue
		}
		paid := per
		if mismatch && n == count {
			paid = paid.Add(decimal.NewFromInt(int64(5 + g.rng.Intn(40))))
		}
		g.releases = append(g.releases, []string{
			released.Format("2006-01-02"), src, ref, "release", "payment",
			amount(paid), "0", amount(paid), "0", label, method,
		})
	}

	switch roll := g.rng.Float64(); {
	case roll < 0.05:
		g.settlement = append(g.settlement, []string{
			ref, src, "REFUND", "", method, methodType, "", "", "-" + amount(per), "", "", "", "", "",
		})
	case roll < 0.08:
		g.settlement = append(g.settlement, []string{
			ref, src, "CHARGEBACK", "", method, methodType, "", "", "-" + amount(per), "", "", "", "", "",
		})
		if roll < 0.065 {
			g.settlement = append(g.settlement, []string{
				ref, src, "CHARGEBACK_CANCEL", "", method, methodType, "", "", amount(per), "", "", "", "", "",
			})
		}
	}
}

// orphans emits payments for orders outside the settlement window.
func (g *generator) orphans(n int) {
	for i := 1; i <= n; i++ {
		paid := decimal.NewFromInt(int64(20 + g.rng.Intn(200)))
		g.releases = append(g.releases, []string{
			g.today.AddDate(0, 0, -g.rng.Intn(30)).Format("2006-01-02"),
			fmt.Sprintf("%d", 80000000000+i), fmt.Sprintf("OLD-%04d", i), "release", "payment",
			amount(paid), "0", amount(paid), "0", "1/1", "visa",
		})
	}
}

// movements emits the non-sale rows: payouts, an advance fee and a reserve.
func (g *generator) movements() {
	for m := 1; m <= 3; m++ {
		at := g.today.AddDate(0, -m, 0)
		g.releases = append(g.releases,
			[]string{at.Format("2006-01-02"), fmt.Sprintf("payout-%d", m), "", "release", "payout",
				"0", amount(decimal.NewFromInt(int64(500 + g.rng.Intn(1500)))), "", "", "", ""},
			[]string{at.Format("2006-01-02"), fmt.Sprintf("fee-%d", m), "", "release", "fee-release_in_advance",
				"0", amount(decimal.NewFromInt(int64(5 + g.rng.Intn(20)))), "", "", "", ""},
		)
	}
	g.releases = append(g.releases,
		[]string{g.today.AddDate(0, 0, -10).Format("2006-01-02"), "reserve-1", "", "release", "reserve_for_dispute",
			"0", "150.00", "", "", "", ""},
	)
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func write(path string, comma rune, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = comma
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}
