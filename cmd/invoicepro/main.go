// cmd/invoicepro/main.go
//
// This is the entry point for the invoicepro CLI. Running `invoicepro` with
// no command opens the TUI in the current directory; the subcommands work on
// the same .invoicepro/ data without a terminal UI.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/kingrea/invoicepro/internal/invoice"
	"github.com/kingrea/invoicepro/internal/session"
	"github.com/kingrea/invoicepro/internal/shellserver"
	"github.com/kingrea/invoicepro/internal/tui"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "invoicepro",
		Usage: "create, edit and export commercial invoices",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"C"},
				Value:   ".",
				Usage:   "project directory holding .invoicepro/",
			},
		},
		Action: runTUI,
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "print saved invoices",
				Action: runList,
			},
			{
				Name:      "show",
				Usage:     "print one invoice with its items",
				ArgsUsage: "<id>",
				Action:    runShow,
			},
			{
				Name:      "export",
				Usage:     "write an invoice to PDF",
				ArgsUsage: "<id>",
				Action:    runExport,
			},
			{
				Name:      "delete",
				Usage:     "delete an invoice",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "skip the confirmation prompt"},
				},
				Action: runDelete,
			},
			{
				Name:  "serve",
				Usage: "serve the web shell through the offline asset cache",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "origin", Usage: "shell origin to proxy (saved to config.yaml)"},
				},
				Action: runServe,
			},
		},
	}
}

// withWorkspace opens the project for the duration of fn.
func withWorkspace(c *cli.Context, fn func(*workspace) error) error {
	rt, err := openWorkspace(c.Context, c.String("dir"))
	if err != nil {
		return err
	}
	err = fn(rt)
	if cerr := rt.Close(); err == nil {
		err = cerr
	}
	return err
}

func runTUI(c *cli.Context) error {
	if c.Args().Present() {
		return fmt.Errorf("unknown command %q", c.Args().First())
	}
	return withWorkspace(c, func(rt *workspace) error {
		app := tui.NewApp(session.New(rt.ledger),
			tui.WithExporter(rt.exporter),
			tui.WithLogbook(rt.journal),
			tui.WithSaveReporter(rt.synchronizer))
		p := tea.NewProgram(app, tea.WithAltScreen())
		_, err := p.Run()
		return err
	})
}

func runList(c *cli.Context) error {
	return withWorkspace(c, func(rt *workspace) error {
		invoices := rt.ledger.List()
		out := c.App.Writer
		if len(invoices) == 0 {
			fmt.Fprintln(out, "You have no saved invoices.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tREF\tDATE\tRECIPIENT\tTOTAL")
		for _, inv := range invoices {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", inv.ID, inv.DisplayRef(), inv.Date, inv.DisplayRecipient(), invoice.FormatAmount(inv.Total()))
		}
		return tw.Flush()
	})
}

func requireID(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", fmt.Errorf("%s: invoice id is required", c.Command.Name)
	}
	return id, nil
}

func runShow(c *cli.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	return withWorkspace(c, func(rt *workspace) error {
		inv, ok := rt.ledger.Get(id)
		if !ok {
			return fmt.Errorf("invoice %s not found", id)
		}
		printInvoice(c.App.Writer, inv)
		return nil
	})
}

func printInvoice(w io.Writer, inv invoice.Invoice) {
	fmt.Fprintf(w, "Ref: %s\nDate: %s\nM/s: %s\nNTN No: %s\n\n", inv.DisplayRef(), inv.Date, inv.DisplayRecipient(), inv.NtnNo)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Sno\tDescription\tQty\tUnit Rate\tAmount\t")
	for _, item := range inv.Items {
		fmt.Fprintf(tw, "%d\t%s\t%g\t%g\t%s\t\n", item.Sno, item.Description, item.Qty, item.UnitRate, invoice.FormatAmount(invoice.LineAmount(item)))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\nTotal Amount: %s\n", invoice.FormatAmount(inv.Total()))
}

func runExport(c *cli.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	return withWorkspace(c, func(rt *workspace) error {
		inv, ok := rt.ledger.Get(id)
		if !ok {
			return fmt.Errorf("invoice %s not found", id)
		}
		path, err := rt.exporter.Export(c.Context, inv)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, path)
		return nil
	})
}

func runDelete(c *cli.Context) error {
	id, err := requireID(c)
	if err != nil {
		return err
	}
	return withWorkspace(c, func(rt *workspace) error {
		var confirm session.Confirmer
		if c.Bool("yes") {
			confirm = session.ConfirmFunc(func(string) bool { return true })
		} else {
			confirm = promptConfirmer{in: os.Stdin, out: c.App.Writer}
		}
		removed, err := session.New(rt.ledger).Delete(id, confirm)
		if err != nil {
			return err
		}
		if removed {
			fmt.Fprintf(c.App.Writer, "Deleted invoice %s\n", id)
		}
		return nil
	})
}

// promptConfirmer asks on the terminal. Anything but y/yes is a no.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func runServe(c *cli.Context) error {
	return withWorkspace(c, func(rt *workspace) error {
		if origin := c.String("origin"); origin != "" {
			if err := rt.cfg.SetShellOrigin(origin); err != nil {
				return err
			}
		}
		settings := shellserver.SettingsFromConfig(rt.cfg)
		srv := shellserver.NewServer(settings, shellserver.WithLogger(rt.log))

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := srv.Start(ctx); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Serving %s at %s (Ctrl+C to stop)\n", settings.Origin, srv.BaseURL())
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
