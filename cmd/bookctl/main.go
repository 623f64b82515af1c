package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kevinaaaquil/bookdash/config"
	"github.com/kevinaaaquil/bookdash/models"
	"github.com/kevinaaaquil/bookdash/service"
	"github.com/kevinaaaquil/bookdash/store"
	"github.com/kevinaaaquil/bookdash/utils"
)

// printSink writes notifications to the terminal.
type printSink struct {
	w io.Writer
}

func (s printSink) Deliver(n service.Notification) {
	fmt.Fprintf(s.w, "[%s] %s\n", n.Variant, n.Message)
}

type app struct {
	cfg     *config.Config
	apiURL  string
	timeout time.Duration
	gateway *service.Gateway
	coord   *service.Coordinator
}

func (a *app) init() {
	a.gateway = service.NewGateway(a.apiURL, a.timeout)
	cache := store.NewCache(a.gateway.FetchAll)
	notes := service.NewNotifier(a.cfg.NotifyMax, a.cfg.NotifyTTL, printSink{w: os.Stderr})
	a.coord = service.NewCoordinator(a.gateway, cache, notes, nil)
}

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:           "bookctl",
		Short:         "Manage the book collection from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.apiURL, "api", cfg.BooksAPIURL, "books collection URL")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", cfg.BooksAPITimeout, "request timeout")

	root.AddCommand(a.listCmd(), a.addCmd(), a.editCmd(), a.deleteCmd(), a.exportCmd(), sealCmd(cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) listCmd() *cobra.Command {
	var f service.Filters
	var page, size int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books, filtered and paginated like the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := a.gateway.FetchAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch books: %w", err)
			}
			p := service.Derive(books, service.Query{Filters: f, Page: page, PageSize: size})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tGENRE\tYEAR\tSTATUS")
			for _, b := range p.Books {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", b.ID, b.Title, b.Author, b.Genre, b.Year, b.Status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d (%d books)\n", p.Page, p.TotalPages, p.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Search, "search", "", "match title or author (case-insensitive)")
	cmd.Flags().StringVar(&f.Genre, "genre", "", "exact genre")
	cmd.Flags().StringVar(&f.Status, "status", "", "exact status")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "page-size", a.cfg.PageSize, "rows per page")
	return cmd
}

func bookFlags(cmd *cobra.Command, d *models.Draft) {
	cmd.Flags().StringVar(&d.Title, "title", d.Title, "title")
	cmd.Flags().StringVar(&d.Author, "author", d.Author, "author")
	cmd.Flags().StringVar(&d.Genre, "genre", d.Genre, "genre")
	cmd.Flags().IntVar(&d.Year, "year", d.Year, "published year")
	cmd.Flags().StringVar((*string)(&d.Status), "status", string(d.Status), "one of "+statusList())
}

func statusList() string {
	names := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func printValidation(w io.Writer, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		for field, msg := range verr.Fields {
			fmt.Fprintf(w, "  %s: %s\n", field, msg)
		}
		return errors.New("book not saved")
	}
	return err
}

func (a *app) addCmd() *cobra.Command {
	draft := models.NewDraft()
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := a.coord.Submit(cmd.Context(), draft, nil)
			if err != nil {
				return printValidation(cmd.ErrOrStderr(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added book ID %s\n", book.ID)
			return nil
		},
	}
	bookFlags(cmd, &draft)
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var changes models.Draft
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace a book's fields; unset flags keep their stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := a.gateway.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			form := current.Draft()
			fl := cmd.Flags()
			if fl.Changed("title") {
				form.Title = changes.Title
			}
			if fl.Changed("author") {
				form.Author = changes.Author
			}
			if fl.Changed("genre") {
				form.Genre = changes.Genre
			}
			if fl.Changed("year") {
				form.Year = changes.Year
			}
			if fl.Changed("status") {
				form.Status = changes.Status
			}
			if _, err := a.coord.Submit(cmd.Context(), form, &current); err != nil {
				return printValidation(cmd.ErrOrStderr(), err)
			}
			return nil
		},
	}
	bookFlags(cmd, &changes)
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attempted, err := a.coord.Remove(cmd.Context(), args[0], confirmer(yes, cmd.InOrStdin(), cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			if !attempted {
				fmt.Fprintln(cmd.ErrOrStderr(), "Deletion cancelled.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirmer asks on an interactive terminal and refuses otherwise unless yes is set.
func confirmer(yes bool, in io.Reader, out io.Writer) service.ConfirmFunc {
	return func(id string) service.Decision {
		if yes {
			return service.Proceed
		}
		if !term.IsTerminal(int(syscall.Stdin)) {
			fmt.Fprintln(out, "Not a terminal; pass --yes to delete without a prompt.")
			return service.Cancel
		}
		fmt.Fprintf(out, "Are you sure you want to delete book %s? [y/N] ", id)
		line, _ := bufio.NewReader(in).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return service.Proceed
		}
		return service.Cancel
	}
}

func (a *app) exportCmd() *cobra.Command {
	var format string
	var f service.Filters
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered collection as CSV or JSON to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := service.ParseFormat(format)
			if err != nil {
				return err
			}
			books, err := a.gateway.FetchAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch books: %w", err)
			}
			return service.Export(cmd.OutOrStdout(), enc, service.Filter(books, f))
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or json")
	cmd.Flags().StringVar(&f.Search, "search", "", "match title or author (case-insensitive)")
	cmd.Flags().StringVar(&f.Genre, "genre", "", "exact genre")
	cmd.Flags().StringVar(&f.Status, "status", "", "exact status")
	return cmd
}

func sealCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seal",
		Short: "Encrypt a secret (e.g. ALERT_SMTP_PASSWORD) with SECRET_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.SecretKey == nil {
				return errors.New("SECRET_KEY is not set (generate with: openssl rand -base64 32)")
			}
			secret, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sealed, err := utils.Seal(secret, cfg.SecretKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}

// readSecret reads a masked line on a terminal, or the first line of in otherwise.
func readSecret(in io.Reader, out io.Writer) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(out, "Secret: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if s := strings.TrimSpace(line); s != "" {
		return s, nil
	}
	return "", errors.New("empty secret")
}
