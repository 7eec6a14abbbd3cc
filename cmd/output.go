package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/chat"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/explorer"
	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/render"
)

// tableFlags drive an explorer over a table printed by a command.
type tableFlags struct {
	search string
	filter []string // column=value
	sort   string
	desc   bool
	page   int
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.search, "search", "", "only rows containing this text")
	cmd.Flags().StringArrayVar(&f.filter, "filter", nil, "column=value filter, repeatable")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sort by this column")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&f.page, "page", 1, "page to print")
}

// view applies the flags to a fresh explorer over data.
func (f *tableFlags) view(data explorer.TableData, rowsPerPage int) (*explorer.Explorer, error) {
	ex := explorer.New(data)
	if err := ex.SetRowsPerPage(rowsPerPage); err != nil {
		return nil, err
	}
	if f.search != "" {
		ex.SetSearchQuery(f.search)
	}
	for _, kv := range f.filter {
		col, value, ok := strings.Cut(kv, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid --filter %q, want column=value", kv)
		}
		if err := ex.SetFilterValue(col, value); err != nil {
			return nil, fmt.Errorf("--filter %s: %w", col, err)
		}
	}
	if f.sort != "" {
		if !slices.Contains(ex.Headers(), f.sort) {
			return nil, fmt.Errorf("--sort %s: %w", f.sort, explorer.ErrUnknownColumn)
		}
		ex.SetSort(f.sort)
		if f.desc {
			ex.SetSort(f.sort)
		}
	}
	ex.SetPage(f.page)
	return ex, nil
}

func (f *tableFlags) print(w io.Writer, data explorer.TableData, rowsPerPage int) error {
	ex, err := f.view(data, rowsPerPage)
	if err != nil {
		return err
	}
	render.Table(w, ex.View(), render.TableOptions{
		Sort:   ex.Sort(),
		Focus:  -1,
		Footer: true,
	})
	return nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printAnswer writes a bot message: the text (markdown-rendered on a
// terminal), then its table and image link.
func (a *app) printAnswer(ctx context.Context, w io.Writer, msg chat.Message, tf *tableFlags) error {
	if msg.Content != "" {
		text := msg.Content
		if a.cfg.Markdown && isTerminal(w) {
			width := 80
			if f, ok := w.(*os.File); ok {
				if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
					width = cols
				}
			}
			if md, err := render.NewMarkdown(width); err == nil {
				text = md.Render(text)
			}
		}
		fmt.Fprintln(w, text)
	}
	if msg.HasTable() {
		fmt.Fprintln(w)
		if err := tf.print(w, *msg.Table, a.cfg.RowsPerPage); err != nil {
			return err
		}
	}
	if msg.Image != "" {
		ref := chat.ImageRef(ctx, a.client, msg.Image, time.Now())
		fmt.Fprintf(w, "image: %s\n", a.client.URL(ref))
	}
	return nil
}
