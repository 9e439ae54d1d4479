package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dispomed/dispomed-api/availability"
	"github.com/dispomed/dispomed-api/database"
	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/logging"
	"github.com/dispomed/dispomed-api/repository"
	"github.com/spf13/cobra"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report <product>",
	Short: "Print the availability report of a product",
	Long: `Print the availability of a product since April 2021: days spent in
shortage, tension or discontinuation per year, the resulting score and the
yearly box sales of its presentations.

Examples:
  dispomed report doliprane
  dispomed report doliprane --json`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Output in JSON format")
}

// reportSource is the part of the repository a report reads
type reportSource interface {
	ProductByName(ctx context.Context, name string) (entities.Product, error)
	MaxReportDate(ctx context.Context) (entities.Date, error)
	SalesByCIS(ctx context.Context, cisCodes []string) ([]entities.Sale, error)
}

// ProductReport is the --json output of the report command
type ProductReport struct {
	Product string                  `json:"product"`
	Report  availability.Report     `json:"report"`
	Sales   []availability.CISSales `json:"sales"`
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Close()

	db, err := database.Open(cmd.Context(), databaseOptions(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	return writeReport(cmd.Context(), cmd.OutOrStdout(), repository.New(db), args[0], reportJSON)
}

func buildReport(ctx context.Context, src reportSource, name string) (ProductReport, error) {
	product, err := src.ProductByName(ctx, name)
	if errors.Is(err, repository.ErrProductNotFound) {
		return ProductReport{}, fmt.Errorf("no product named %q", name)
	}
	if err != nil {
		return ProductReport{}, err
	}

	reportDate, err := src.MaxReportDate(ctx)
	if err != nil {
		return ProductReport{}, fmt.Errorf("report date: %w", err)
	}

	result := ProductReport{
		Product: product.AccentedName,
		Report:  availability.Compute(product.Incidents, reportDate),
		Sales:   []availability.CISSales{},
	}
	if result.Product == "" {
		result.Product = product.Name
	}

	if len(product.CISCodes) > 0 {
		sales, err := src.SalesByCIS(ctx, product.CISCodes)
		if err != nil {
			return ProductReport{}, fmt.Errorf("sales: %w", err)
		}
		result.Sales = availability.GroupSales(sales)
	}
	return result, nil
}

func writeReport(ctx context.Context, out io.Writer, src reportSource, name string, asJSON bool) error {
	result, err := buildReport(ctx, src, name)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	r := result.Report
	fmt.Fprintf(out, "%s\n", result.Product)
	fmt.Fprintf(out, "Period %s to %s, score %.1f/100\n\n", r.Start, r.End, r.Score)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Year\tRupture\tTension\tArret\tAvailable\tTotal\t")
	for _, y := range r.Years {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t\n", y.Year, y.RuptureDays, y.TensionDays, y.ArretDays, y.AvailableDays, y.TotalDays)
	}
	fmt.Fprintf(tw, "All\t%d\t%d\t%d\t%d\t%d\t\n", r.RuptureDays, r.TensionDays, r.ArretDays, r.AvailableDays, r.TotalDays)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(result.Sales) == 0 {
		return nil
	}

	years := salesYears(result.Sales)
	fmt.Fprintln(out, "\nBoxes sold")
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := make([]string, len(years))
	for i, y := range years {
		header[i] = strconv.Itoa(y)
	}
	fmt.Fprintf(tw, "Presentation\t%s\tTotal\n", strings.Join(header, "\t"))
	for _, group := range result.Sales {
		fmt.Fprintf(tw, "CIS %s\t%s\t\n", group.CIS, yearCells(group.TotalByYear, years))
		for _, p := range group.Presentations {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", p.DisplayLabel(), yearCells(p.ByYear, years), availability.FormatCount(p.Total))
		}
	}
	return tw.Flush()
}

func salesYears(groups []availability.CISSales) []int {
	seen := make(map[int]struct{})
	for _, g := range groups {
		for y := range g.TotalByYear {
			seen[y] = struct{}{}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func yearCells(byYear map[int]int64, years []int) string {
	cells := make([]string, len(years))
	for i, y := range years {
		cells[i] = availability.FormatCount(byYear[y])
	}
	return strings.Join(cells, "\t")
}
