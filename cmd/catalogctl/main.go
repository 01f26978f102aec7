// Command catalogctl lists, shows, creates, updates and deletes catalog
// products through the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"catalog/internal/apiclient"
	"catalog/internal/cache"
	"catalog/internal/config"
	"catalog/internal/logging"
	"catalog/internal/models"
	"catalog/internal/views"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const usage = `Usage: catalogctl [--api URL] [--timeout DURATION] <command> [flags]

Commands:
  list [--search TEXT]     list products
  show <id>                show one product
  create --name --category --price --description [--rating] [--image-url]
  update <id> [--name] [--category] [--price] [--description] [--rating] [--image-url]
  delete <id>              delete a product and show the remaining list
  health                   check that the API is reachable
`

var (
	// errUsage marks command line mistakes; they exit with status 2.
	errUsage = errors.New("usage error")
	// errShown is returned when the view already printed the failure.
	errShown = errors.New("error already rendered")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	v := viper.New()
	fs := pflag.NewFlagSet("catalogctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.String("api", "", "base URL of the catalog API (env API_BASE_URL)")
	fs.Duration("timeout", 0, "request timeout (env API_TIMEOUT)")
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.Changed("api") {
		_ = v.BindPFlag("API_BASE_URL", fs.Lookup("api"))
	}
	if fs.Changed("timeout") {
		_ = v.BindPFlag("API_TIMEOUT", fs.Lookup("timeout"))
	}

	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger := logging.New(cfg.LogLevel, false)
	logger.SetOutput(stderr)
	store := cache.New(apiclient.NewClient(cfg.APIBaseURL, cfg.APITimeout), cache.Options{
		DisableActiveRefetch: true,
		Logger:               logger,
	})
	defer store.Close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "list":
		err = listCmd(ctx, store, rest, stdout)
	case "show":
		err = showCmd(ctx, store, rest, stdout)
	case "create":
		err = createCmd(ctx, store, rest, stdout)
	case "update":
		err = updateCmd(ctx, store, rest, stdout)
	case "delete":
		err = deleteCmd(ctx, store, rest, stdout)
	case "health":
		err = healthCmd(ctx, cfg, stdout)
	default:
		err = fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	return report(err, stderr)
}

func report(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
		return 2
	}
	if errors.Is(err, pflag.ErrHelp) {
		fmt.Fprint(stderr, usage)
		return 0
	}
	if errors.Is(err, errShown) {
		return 1
	}
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		fmt.Fprintf(stderr, "error: %s\n", apiErr.Message)
		fields := make([]string, 0, len(apiErr.Fields))
		for f := range apiErr.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(stderr, "  %s: %s\n", f, apiErr.Fields[f])
		}
		return 1
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}

func listCmd(ctx context.Context, store *cache.Store, args []string, stdout io.Writer) error {
	fs := newFlagSet("list")
	search := fs.String("search", "", "only show products containing TEXT")
	if err := fs.Parse(args); err != nil {
		return flagError(err)
	}
	st, err := store.List(ctx)
	if rerr := views.RenderList(stdout, st, *search); rerr != nil {
		return rerr
	}
	return shown(st.Status, err)
}

func showCmd(ctx context.Context, store *cache.Store, args []string, stdout io.Writer) error {
	id, err := idArg(args)
	if err != nil {
		return err
	}
	st, err := store.Product(ctx, id)
	if rerr := views.RenderProduct(stdout, st); rerr != nil {
		return rerr
	}
	return shown(st.Status, err)
}

// shown swaps err for errShown when the rendered state already carries it.
func shown(status cache.Status, err error) error {
	if err != nil && status == cache.StatusErrored {
		return errShown
	}
	return err
}

// productFlags registers the editable product fields on fs.
type productFlags struct {
	name, category, description, imageURL *string
	price, rating                         *float64
}

func newProductFlags(fs *pflag.FlagSet) productFlags {
	return productFlags{
		name:        fs.String("name", "", "product name"),
		category:    fs.String("category", "", "product category"),
		description: fs.String("description", "", "product description"),
		imageURL:    fs.String("image-url", "", "product image URL"),
		price:       fs.Float64("price", 0, "price, >= 0"),
		rating:      fs.Float64("rating", 0, "rating between 0 and 5"),
	}
}

// patch keeps only the flags that were set on the command line.
func (pf productFlags) patch(fs *pflag.FlagSet) models.ProductPatch {
	var p models.ProductPatch
	if fs.Changed("name") {
		p.Name = pf.name
	}
	if fs.Changed("category") {
		p.Category = pf.category
	}
	if fs.Changed("description") {
		p.Description = pf.description
	}
	if fs.Changed("image-url") {
		p.ImageURL = pf.imageURL
	}
	if fs.Changed("price") {
		p.Price = pf.price
	}
	if fs.Changed("rating") {
		p.Rating = pf.rating
	}
	return p
}

func createCmd(ctx context.Context, store *cache.Store, args []string, stdout io.Writer) error {
	fs := newFlagSet("create")
	pf := newProductFlags(fs)
	if err := fs.Parse(args); err != nil {
		return flagError(err)
	}
	p := pf.patch(fs)
	input := models.ProductInput{
		Name:        *pf.name,
		Category:    *pf.category,
		Description: *pf.description,
		Price:       p.Price,
		Rating:      p.Rating,
		ImageURL:    p.ImageURL,
	}

	product, err := store.Create(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Product created.")
	return views.RenderProduct(stdout, cache.ProductState{Status: cache.StatusFresh, Data: *product, HasData: true})
}

func updateCmd(ctx context.Context, store *cache.Store, args []string, stdout io.Writer) error {
	fs := newFlagSet("update")
	pf := newProductFlags(fs)
	if err := fs.Parse(args); err != nil {
		return flagError(err)
	}
	id, err := idArg(fs.Args())
	if err != nil {
		return err
	}
	patch := pf.patch(fs)
	if patch.IsEmpty() {
		return fmt.Errorf("%w: update needs at least one field flag", errUsage)
	}

	if _, err := store.Update(ctx, id, patch); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Product updated.")
	st, err := store.RefetchProduct(ctx, id)
	if rerr := views.RenderProduct(stdout, st); rerr != nil {
		return rerr
	}
	return shown(st.Status, err)
}

func deleteCmd(ctx context.Context, store *cache.Store, args []string, stdout io.Writer) error {
	id, err := idArg(args)
	if err != nil {
		return err
	}
	// Load the list first so the delete is applied to it optimistically. A
	// failed load does not stop the delete.
	_, _ = store.List(ctx)
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Product %d deleted.\n", id)

	st, err := store.List(ctx)
	if rerr := views.RenderList(stdout, st, ""); rerr != nil {
		return rerr
	}
	return shown(st.Status, err)
}

func healthCmd(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	if err := apiclient.NewClient(cfg.APIBaseURL, cfg.APITimeout).Health(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "API at %s is healthy.\n", cfg.APIBaseURL)
	return nil
}

// newFlagSet returns a subcommand flag set. Parse errors are reported by run.
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func flagError(err error) error {
	if errors.Is(err, pflag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", errUsage, err)
}

func idArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected exactly one product id", errUsage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid product id %q", errUsage, args[0])
	}
	return id, nil
}
