// Package views renders cache state as plain text for the terminal.
package views

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"catalog/internal/cache"
	"catalog/internal/models"
)

// RenderList writes the product list state to w. A non-empty query keeps only
// products whose name, category or description contain it, ignoring case.
func RenderList(w io.Writer, st cache.ListState, query string) error {
	switch {
	case st.Status == cache.StatusErrored:
		return renderError(w, "Couldn't load products", st)
	case !st.HasData && st.Status == cache.StatusLoading:
		_, err := fmt.Fprintln(w, "Loading products...")
		return err
	case !st.HasData:
		_, err := fmt.Fprintln(w, "Products have not been loaded yet.")
		return err
	}

	products := FilterProducts(st.Data, query)
	if len(products) == 0 {
		msg := "No products yet. Add one with: catalogctl create"
		if strings.TrimSpace(query) != "" {
			msg = fmt.Sprintf("No products match %q.", query)
		}
		_, err := fmt.Fprintln(w, msg)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tRATING")
	for _, p := range products {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, formatPrice(p.Price), formatRating(p.Rating))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if st.Status == cache.StatusLoading || st.Status == cache.StatusInvalidated {
		_, err := fmt.Fprintln(w, "(refreshing...)")
		return err
	}
	return nil
}

// RenderProduct writes one product detail state to w.
func RenderProduct(w io.Writer, st cache.ProductState) error {
	switch {
	case st.Status == cache.StatusErrored:
		return renderError(w, "Couldn't load product", st)
	case !st.HasData && st.Status == cache.StatusLoading:
		_, err := fmt.Fprintln(w, "Loading product...")
		return err
	case !st.HasData:
		_, err := fmt.Fprintln(w, "Product has not been loaded yet.")
		return err
	}

	p := st.Data
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", p.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
	fmt.Fprintf(tw, "Category:\t%s\n", p.Category)
	fmt.Fprintf(tw, "Price:\t%s\n", formatPrice(p.Price))
	fmt.Fprintf(tw, "Rating:\t%s\n", formatRating(p.Rating))
	fmt.Fprintf(tw, "Description:\t%s\n", p.Description)
	if p.ImageURL != nil && *p.ImageURL != "" {
		fmt.Fprintf(tw, "Image:\t%s\n", *p.ImageURL)
	}
	return tw.Flush()
}

// FilterProducts returns the products matching query. An empty query matches everything.
func FilterProducts(products []models.Product, query string) []models.Product {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return products
	}
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		hay := strings.ToLower(p.Name + " " + p.Category + " " + p.Description)
		if strings.Contains(hay, term) {
			out = append(out, p)
		}
	}
	return out
}

func renderError[T any](w io.Writer, title string, st cache.State[T]) error {
	msg := "Unknown error"
	if st.Err != nil && st.Err.Message != "" {
		msg = st.Err.Message
	}
	_, err := fmt.Fprintf(w, "%s: %s\nRun the command again to retry.\n", title, msg)
	return err
}

func formatPrice(price float64) string {
	return fmt.Sprintf("$%.2f", price)
}

func formatRating(rating *float64) string {
	if rating == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f/5", *rating)
}
