package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/azerweys/panel/backend/internal/config"
	orderModel "github.com/azerweys/panel/backend/internal/model/order"
	"github.com/azerweys/panel/backend/internal/service/order"
	"github.com/azerweys/panel/backend/internal/storage"
	"github.com/azerweys/panel/backend/pkg/utils"
)

func main() {
	dataDir := pflag.String("data-dir", "", "badger directory (default DATA_DIR)")
	section := pflag.StringP("section", "s", "all", "what to print: totals, hotels, debts, notifications or all")
	company := pflag.String("company", "", "only debts of companies containing this text")
	pflag.Parse()

	utils.SetupLogger("warn", "console")
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *dataDir != "" {
		cfg.Storage.Dir = *dataDir
	}

	db, err := storage.Open(storage.Options{Dir: cfg.Storage.Dir, ReadOnly: true})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer db.Close()

	orders, err := storage.NewOrderStore(db).List(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read orders")
	}

	if err := dump(os.Stdout, orders, *section, *company, time.Now()); err != nil {
		log.Fatal().Err(err).Msg("dump failed")
	}
}

func dump(w io.Writer, orders []orderModel.Order, section, company string, now time.Time) error {
	show := func(name string) bool { return section == "all" || section == name }
	known := map[string]bool{"all": true, "totals": true, "hotels": true, "debts": true, "notifications": true}
	if !known[section] {
		return fmt.Errorf("unknown section %q", section)
	}

	report := order.BuildReport(orders)
	if show("totals") {
		fmt.Fprintf(w, "Orders: %d\n", len(orders))
		table := newTable(w, append([]string{""}, order.ReportCurrencies...))
		table.Append(totalsRow("Alış", report.TotalAlish))
		table.Append(totalsRow("Satış", report.TotalSatish))
		table.Append(totalsRow("Gəlir", report.TotalGelir))
		table.Render()
	}

	if show("hotels") {
		names := make([]string, 0, len(report.ByHotel))
		for name := range report.ByHotel {
			names = append(names, name)
		}
		sort.Strings(names)
		header := []string{"Otel", "Sifariş"}
		for _, c := range order.ReportCurrencies {
			header = append(header, "Gəlir "+c)
		}
		table := newTable(w, header)
		for _, name := range names {
			ht := report.ByHotel[name]
			row := []string{name, strconv.Itoa(ht.OrdersCount)}
			for _, c := range order.ReportCurrencies {
				row = append(row, money(ht.Gelir[c]))
			}
			table.Append(row)
		}
		table.Render()
	}

	if show("debts") {
		table := newTable(w, []string{"Satış №", "Turist", "Şirkət", "Satış", "Son tarix"})
		for _, o := range order.FilterDebts(orders, company) {
			sale, due := "-", "-"
			if o.Sale != nil {
				sale = money(o.Sale.Amount) + " " + o.Sale.Currency
			}
			if o.PaymentDueDate != nil {
				due = *o.PaymentDueDate
			}
			table.Append([]string{o.SaleNo, o.Tourist, o.ForeignCompany, sale, due})
		}
		table.Render()
	}

	if show("notifications") {
		table := newTable(w, []string{"Satış №", "Turist", "Giriş", "Problem"})
		for _, n := range order.BuildNotifications(orders, now) {
			table.Append([]string{n.SaleNo, n.Tourist, n.CheckIn, n.Problem})
		}
		table.Render()
	}
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func totalsRow(label string, t order.Totals) []string {
	row := []string{label}
	for _, c := range order.ReportCurrencies {
		row = append(row, money(t[c]))
	}
	return row
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
