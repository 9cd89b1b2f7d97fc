// cmd/server/files.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Corphon/StoryMap/internal/exchange"
	"github.com/Corphon/StoryMap/internal/models"
	"github.com/Corphon/StoryMap/internal/storymap"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// readBoard decodes a JSON or CSV file into a normalized board.
func readBoard(path string) (storymap.Board, error) {
	format, err := exchange.FormatFromPath(path)
	if err != nil {
		return storymap.Board{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return storymap.Board{}, err
	}
	ds, err := exchange.Decode(format, data, nil)
	if err != nil {
		return storymap.Board{}, fmt.Errorf("%s: %w", path, err)
	}
	return storymap.NewBoard(ds.PlotThreads, ds.Scenes, storymap.DefaultPlacement()), nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]
	format, err := exchange.FormatFromPath(out)
	if err != nil {
		return err
	}
	board, err := readBoard(in)
	if err != nil {
		return err
	}
	data, err := exchange.Encode(format, models.Dataset{
		PlotThreads: board.Threads(),
		Scenes:      board.SortedScenes(),
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d scenes to %s\n", len(board.Scenes()), out)
	return nil
}

func runGraph(cmd *cobra.Command, args []string) error {
	board, err := readBoard(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(board.Graph())
}

func runInspect(cmd *cobra.Command, args []string) error {
	board, err := readBoard(args[0])
	if err != nil {
		return err
	}
	renderBoard(cmd.OutOrStdout(), board)
	return nil
}

// renderBoard prints one table of threads and one of scenes. Thread names
// are drawn in their own color.
func renderBoard(w io.Writer, board storymap.Board) {
	threads := board.Threads()
	colored := make(map[string]string, len(threads))
	threadRows := make([][]string, 0, len(threads))
	for _, t := range threads {
		name := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color)).Render(t.Name)
		colored[t.ID] = name
		main := ""
		if t.IsMain {
			main = "yes"
		}
		threadRows = append(threadRows, []string{name, t.ID, t.Color, main})
	}

	scenes := board.SortedScenes()
	sceneRows := make([][]string, 0, len(scenes))
	for _, s := range scenes {
		names := make([]string, 0, len(s.PlotThreads))
		for _, id := range s.PlotThreads {
			if name, ok := colored[id]; ok {
				names = append(names, name)
			} else {
				names = append(names, mutedStyle.Render(id))
			}
		}
		pos := ""
		if s.Position != nil {
			pos = fmt.Sprintf("%g, %g", s.Position.X, s.Position.Y)
		}
		sceneRows = append(sceneRows, []string{
			fmt.Sprint(s.Order), s.Title, string(s.Type()), strings.Join(names, ", "), pos,
		})
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Plot threads (%d)", len(threads))))
	fmt.Fprintln(w, newTable([]string{"Name", "ID", "Color", "Main"}, threadRows))
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Scenes (%d)", len(scenes))))
	fmt.Fprintln(w, newTable([]string{"#", "Title", "Type", "Threads", "Position"}, sceneRows))
}

func newTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}
