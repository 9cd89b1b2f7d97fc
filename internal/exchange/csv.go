// internal/exchange/csv.go
package exchange

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Corphon/StoryMap/internal/errors"
	"github.com/Corphon/StoryMap/internal/models"
	"github.com/Corphon/StoryMap/internal/storymap"
)

// CSVHeader is the column layout of the scene-only CSV format.
var CSVHeader = []string{"ID", "Order", "Title", "Description", "Plot Threads", "Type", "Position X", "Position Y"}

const (
	colID = iota
	colOrder
	colTitle
	colDescription
	colThreads
	colType
	colX
	colY
)

const (
	threadSeparator = ";"
	fallbackXStep   = 200
	fallbackY       = 300
)

var utf8BOM = []byte("\xef\xbb\xbf")

// ColorFunc produces colors for placeholder threads.
type ColorFunc func() string

// RandomColor returns a random #rrggbb color.
func RandomColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(0x1000000))
}

// CSVOptions tunes DecodeCSV.
type CSVOptions struct {
	// Existing threads are kept; ids referenced by rows but not present here
	// get placeholder threads.
	Existing []models.PlotThread
	Color    ColorFunc
}

// DecodeCSV parses scene rows. Every field defaults on its own when missing
// or unparsable: id is generated, order is the row index + 1, title is
// "Scene {n}", x is index*200 and y is 300. The Type column is ignored.
// Blank lines are skipped and a leading header row is optional.
func DecodeCSV(data []byte, opts CSVOptions) (models.Dataset, error) {
	if opts.Color == nil {
		opts.Color = RandomColor
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var scenes []models.Scene
	seen := map[string]bool{}
	first := true
	index := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.Dataset{}, apperrors.NewValidationError("invalid CSV dataset", err)
		}
		if blankRecord(record) {
			continue
		}
		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}

		s := sceneFromRecord(record, index)
		index++
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		scenes = append(scenes, s)
	}
	if scenes == nil {
		scenes = []models.Scene{}
	}

	return models.Dataset{
		Scenes:      scenes,
		PlotThreads: withPlaceholders(opts.Existing, scenes, opts.Color),
	}, nil
}

// EncodeCSV writes scenes in ascending order with the CSV header.
func EncodeCSV(scenes []models.Scene) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, apperrors.NewProcessingError("encode CSV header", err)
	}

	ordered := slices.Clone(scenes)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	for _, s := range ordered {
		x, y := "", ""
		if s.Position != nil {
			x = formatFloat(s.Position.X)
			y = formatFloat(s.Position.Y)
		}
		row := []string{
			s.ID,
			strconv.Itoa(s.Order),
			s.Title,
			s.Description,
			strings.Join(s.PlotThreads, threadSeparator),
			string(s.Type()),
			x,
			y,
		}
		if err := w.Write(row); err != nil {
			return nil, apperrors.NewProcessingError("encode CSV row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperrors.NewProcessingError("encode CSV", err)
	}
	return buf.Bytes(), nil
}

func sceneFromRecord(record []string, index int) models.Scene {
	field := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	s := models.Scene{
		ID:          field(colID),
		Title:       field(colTitle),
		Description: field(colDescription),
		PlotThreads: []string{},
	}
	if s.ID == "" {
		s.ID = storymap.NewSceneID()
	}
	if s.Title == "" {
		s.Title = fmt.Sprintf("Scene %d", index+1)
	}
	if threads := field(colThreads); threads != "" {
		parts := strings.Split(threads, threadSeparator)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		s.PlotThreads = storymap.DedupeThreadIDs(parts)
	}

	s.Order = index + 1
	if o, err := strconv.Atoi(field(colOrder)); err == nil && o > 0 {
		s.Order = o
	}

	pos := models.Position{X: float64(index * fallbackXStep), Y: fallbackY}
	if x, err := strconv.ParseFloat(field(colX), 64); err == nil {
		pos.X = x
	}
	if y, err := strconv.ParseFloat(field(colY), 64); err == nil {
		pos.Y = y
	}
	s.Position = &pos
	return s
}

// withPlaceholders keeps existing threads and appends one placeholder per
// unknown id, in order of first reference.
func withPlaceholders(existing []models.PlotThread, scenes []models.Scene, color ColorFunc) []models.PlotThread {
	threads := make([]models.PlotThread, 0, len(existing))
	known := map[string]bool{}
	for _, t := range existing {
		threads = append(threads, t)
		known[t.ID] = true
	}
	for _, s := range scenes {
		for _, id := range s.PlotThreads {
			if known[id] {
				continue
			}
			known[id] = true
			threads = append(threads, models.PlotThread{
				ID:     id,
				Name:   placeholderThreadName(id),
				Color:  color(),
				IsMain: false,
			})
		}
	}
	return threads
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[colID]), CSVHeader[colID]) &&
		(len(record) < 2 || strings.EqualFold(strings.TrimSpace(record[colOrder]), CSVHeader[colOrder]))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
