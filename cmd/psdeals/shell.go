package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-psdeals/pipeline"
	"github.com/aluiziolira/go-scrape-psdeals/scraper"
	"github.com/aluiziolira/go-scrape-psdeals/session"
)

const shellHelp = `Commands:
  regions              list regions
  region <name|code>   set the current region
  search <query>       search the current region
  rows                 show the displayed rows
  select <n>           select row n
  lowest               show the lowest price of the selected row
  add                  add the displayed rows to the export data
  export [file]        write the export data
  clear on|off         clear displayed rows on every search
  quit                 leave the shell`

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Starts an interactive search session.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh := &shell{
				app:     a,
				handler: a.handler(),
				out:     cmd.OutOrStdout(),
				state:   session.New(a.cfg.ClearOnSearch),
			}
			return sh.run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

type shell struct {
	app     *app
	handler *session.Handler
	out     io.Writer
	state   session.Session
}

func (sh *shell) run(ctx context.Context, in io.Reader) error {
	sh.loadRegions(ctx)
	fmt.Fprintln(sh.out, `Type "help" for commands.`)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(sh.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, rest, _ := strings.Cut(line, " ")
		if name == "quit" || name == "exit" {
			return nil
		}
		sh.dispatch(ctx, name, strings.TrimSpace(rest))
	}
}

func (sh *shell) dispatch(ctx context.Context, name, arg string) {
	var err error
	switch name {
	case "help":
		fmt.Fprintln(sh.out, shellHelp)
	case "regions":
		if sh.state.Regions == nil {
			sh.loadRegions(ctx)
			return
		}
		renderRegions(sh.out, sh.state.Regions)
		fmt.Fprintf(sh.out, "Current region: %s\n", sh.state.Region)
	case "region":
		displayName, _, ok := sh.state.ResolveRegion(arg)
		if !ok {
			err = fmt.Errorf("%w: %q", session.ErrUnknownRegion, arg)
			break
		}
		sh.state.Region = displayName
		fmt.Fprintf(sh.out, "Current region: %s\n", displayName)
	case "search":
		err = sh.search(ctx, arg)
	case "rows":
		renderRows(sh.out, sh.state.Displayed, sh.state.Selected)
	case "select":
		err = sh.selectRow(arg)
	case "lowest":
		sh.state, err = sh.handler.LowestPrice(ctx, sh.state)
		if err == nil {
			fmt.Fprintln(sh.out, sh.state.Lowest.String())
		}
	case "add":
		sh.state, err = sh.handler.AddToExport(sh.state)
		if err == nil {
			fmt.Fprintln(sh.out, sh.state.Status)
		}
	case "export":
		err = sh.export(arg)
	case "clear":
		err = sh.setClear(arg)
	default:
		err = fmt.Errorf("unknown command %q", name)
	}
	if err != nil {
		sh.report(err)
	}
}

func (sh *shell) loadRegions(ctx context.Context) {
	var err error
	sh.state, err = sh.handler.LoadRegions(ctx, sh.state)
	if err != nil {
		sh.report(err)
		return
	}
	if sh.state.Status != "" {
		fmt.Fprintln(sh.out, sh.state.Status)
	}
	fmt.Fprintf(sh.out, "Loaded %d regions. Current region: %s\n", sh.state.Regions.Len(), sh.state.Region)
}

func (sh *shell) search(ctx context.Context, query string) error {
	if sh.state.Regions == nil {
		sh.loadRegions(ctx)
		if sh.state.Regions == nil {
			return nil
		}
	}
	next, err := sh.handler.Search(ctx, sh.state, "", query)
	sh.state = next
	if err != nil {
		return err
	}
	if len(sh.state.Displayed) > 0 && sh.state.Status != session.StatusNoGames {
		renderRows(sh.out, sh.state.Displayed, sh.state.Selected)
	}
	fmt.Fprintln(sh.out, sh.state.Status)
	return nil
}

func (sh *shell) selectRow(arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("select needs a row number: %w", err)
	}
	next, err := sh.handler.Select(sh.state, n-1)
	if err != nil {
		return err
	}
	sh.state = next
	row, _ := sh.state.SelectedRow()
	fmt.Fprintf(sh.out, "Selected %s\n", row.Title)
	return nil
}

func (sh *shell) export(file string) error {
	cfg := sh.app.cfg
	if file == "" {
		file = cfg.OutputFile
	}
	if len(sh.state.ExportRows) == 0 {
		return session.ErrNothingToExport
	}
	writer, err := pipeline.NewWriter(cfg.OutputFormat, file)
	if err != nil {
		return err
	}
	sh.state, err = sh.handler.Export(sh.state, writer)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "%s (%s)\n", sh.state.Status, file)
	return nil
}

func (sh *shell) setClear(arg string) error {
	switch arg {
	case "on":
		sh.state.ClearOnSearch = true
	case "off":
		sh.state.ClearOnSearch = false
	default:
		return fmt.Errorf("clear takes on or off")
	}
	fmt.Fprintf(sh.out, "Clear on search: %s\n", arg)
	return nil
}

func (sh *shell) report(err error) {
	switch {
	case errors.Is(err, session.ErrCoolingDown):
		fmt.Fprintln(sh.out, "Please wait a moment before retrying.")
	case errors.Is(err, scraper.ErrConnectivity):
		fmt.Fprintln(sh.out, session.StatusNoConnection)
	default:
		fmt.Fprintf(sh.out, "Error: %v\n", err)
	}
}
