package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"

	"github.com/angelmondragon/stockcast/internal/aggregate"
	"github.com/angelmondragon/stockcast/internal/analytics"
	"github.com/angelmondragon/stockcast/internal/app"
	"github.com/angelmondragon/stockcast/internal/forecast"
	"github.com/angelmondragon/stockcast/internal/nextpurchase"
	"github.com/angelmondragon/stockcast/pkg/config"
	"github.com/angelmondragon/stockcast/pkg/logger"
)

const dateLayout = "2006-01-02"

// report is everything the report command prints.
type report struct {
	Summary      analytics.Summary         `json:"summary"`
	Movement     aggregate.Summary         `json:"movement"`
	NextPurchase []nextpurchase.Prediction `json:"next_purchase"`
	Forecasts    []forecast.Result         `json:"forecasts"`
}

func runReport(ctx context.Context, cfg *config.Config, logg *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	scopeLimit := fs.Int("scope-limit", cfg.Forecast.DefaultScopeLimit, "number of customers to forecast (0 = all)")
	top := fs.Int("top", cfg.Movement.TopN, "products listed per movement category (0 = all)")
	customers := fs.String("customers", "", "comma separated customer ids to forecast")
	asJSON := fs.Bool("json", false, "print JSON instead of tables")
	quiet := fs.Bool("quiet", false, "hide the progress bar")
	if err := fs.Parse(args); err != nil {
		return err
	}

	progress := newProgress(os.Stderr, *quiet || *asJSON)
	rt, err := app.Build(ctx, cfg, logg, app.Options{SkipRedis: true, Progress: progress.update})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logg.Error(ctx, "error closing runtime", err)
		}
	}()

	var rep report
	if rep.Summary, err = rt.Analytics.Summary(ctx); err != nil {
		return err
	}
	if rep.Movement, err = rt.Analytics.MovementSummary(ctx, *top); err != nil {
		return err
	}
	if rep.NextPurchase, err = rt.Analytics.EstimateNextPurchase(ctx); err != nil {
		return err
	}
	rep.Forecasts, err = rt.Analytics.ForecastStock(ctx, analytics.ForecastRequest{
		ScopeLimit: *scopeLimit,
		Customers:  splitList(*customers),
	})
	progress.finish()
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return writeReport(os.Stdout, rep)
}

// progress lazily creates the bar once the engine reports the scope count.
// The engine calls update from several workers.
type progress struct {
	out      io.Writer
	disabled bool

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgress(out io.Writer, disabled bool) *progress {
	return &progress{out: out, disabled: disabled}
}

func (p *progress) update(done, total int) {
	if p.disabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("forecasting"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	if done > int(p.bar.State().CurrentNum) {
		_ = p.bar.Set(done)
	}
}

func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func writeReport(w io.Writer, rep report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "rows\t%d\tdropped\t%d\tcustomers\t%d\tproducts\t%d\n",
		rep.Summary.Rows, rep.Summary.Dropped, rep.Summary.Customers, rep.Summary.Products)
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "MOVEMENT (median %.2f)\n", rep.Movement.Threshold)
	fmt.Fprintln(tw, "product\tquantity\tcategory")
	for _, m := range append(append([]aggregate.ProductMovement{}, rep.Movement.TopFast...), rep.Movement.TopSlow...) {
		fmt.Fprintf(tw, "%s\t%g\t%s\n", m.Product, m.Quantity, m.Category)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "NEXT PURCHASE")
	fmt.Fprintln(tw, "customer\tproduct\tpurchases\tlast\tnext")
	for _, p := range rep.NextPurchase {
		next := nextpurchase.NotEnoughData
		if p.Sufficient {
			next = p.NextDate.Format(dateLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.CustomerID, p.Product, p.Purchases, p.LastPurchase.Format(dateLayout), next)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "FORECASTS")
	fmt.Fprintln(tw, "customer\tproduct\tforecast\tlabel\toutcome")
	for _, f := range rep.Forecasts {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", f.CustomerID, f.Product, f.PointForecast, f.Label, f.Outcome)
	}
	return tw.Flush()
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
