package board

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/HatiCode/viewcast/pkg/engine"
	"github.com/HatiCode/viewcast/pkg/features"
)

//go:embed templates/*.html
var templateFS embed.FS

// Copy is the user-facing text of the board pages. Variants differ only in
// copy, never in logic.
type Copy struct {
	Lang    string
	Title   string
	Heading string
	Intro   string

	// Columns are the table headers: duration, type, platform, day, views,
	// revenue, decision.
	Columns [7]string

	// Decisions maps engine decision labels to display text.
	Decisions map[string]string

	// Types maps canonical video types to display text. Days holds the
	// weekday names in code order, Monday first.
	Types map[string]string
	Days  [7]string

	Currency string

	NavBoard        string
	NavAbout        string
	AboutTitle      string
	AboutParagraphs []string
	Summary         string // fmt pattern: recommended, total
}

// Locales holds the built-in copy variants keyed by language code.
var Locales = map[string]Copy{
	"en": {
		Lang:    "en",
		Title:   "Video Idea Board",
		Heading: "Simulated Video Ideas",
		Intro:   "Each row is a hypothetical video scored by a regression model fitted on past performance.",
		Columns: [7]string{"Duration (s)", "Type", "Platform", "Day", "Estimated Views", "Estimated Revenue", "Decision"},
		Decisions: map[string]string{
			engine.DecisionRecord: "RECORD",
			engine.DecisionSkip:   "DO NOT RECORD",
		},
		Types:      map[string]string{"short": "Short", "long": "Long"},
		Days:       [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
		Currency:   "$",
		NavBoard:   "Board",
		NavAbout:   "About",
		AboutTitle: "About the video idea board",
		AboutParagraphs: []string{
			"The board estimates whether a short video is worth producing before you spend time on it.",
			"A linear regression fitted on historical videos predicts views from duration, format, platform and publication day.",
			"Revenue is estimated from a fixed CPM per platform: 2.00 per thousand views on YouTube and 0.50 on TikTok.",
			"Ideas that reach the revenue threshold are marked RECORD. Everything else is marked DO NOT RECORD.",
		},
		Summary: "%d of %d ideas recommended",
	},
	"es": {
		Lang:    "es",
		Title:   "Tablero de Ideas de Video",
		Heading: "Tablero de Ideas de Video Simuladas",
		Intro:   "Cada fila es un video hipotético evaluado con un modelo de regresión ajustado sobre resultados anteriores.",
		Columns: [7]string{"Duración", "Tipo", "Plataforma", "Día", "Vistas Estimadas", "Ingreso Estimado", "Decisión"},
		Decisions: map[string]string{
			engine.DecisionRecord: "GRABAR",
			engine.DecisionSkip:   "NO GRABAR",
		},
		Types:      map[string]string{"short": "Corto", "long": "Largo"},
		Days:       [7]string{"lunes", "martes", "miércoles", "jueves", "viernes", "sábado", "domingo"},
		Currency:   "$",
		NavBoard:   "Tablero",
		NavAbout:   "Acerca de",
		AboutTitle: "Acerca del tablero de ideas",
		AboutParagraphs: []string{
			"El tablero estima si vale la pena producir un video corto antes de invertir tiempo en él.",
			"Una regresión lineal ajustada con videos históricos predice las vistas a partir de la duración, el formato, la plataforma y el día de publicación.",
			"El ingreso se estima con un CPM fijo por plataforma: 2,00 por cada mil vistas en YouTube y 0,50 en TikTok.",
			"Las ideas que alcanzan el umbral de ingreso se marcan GRABAR; las demás, NO GRABAR.",
		},
		Summary: "%d de %d ideas recomendadas",
	},
}

// LocaleNames returns the supported locale codes, sorted.
func LocaleNames() []string {
	names := make([]string, 0, len(Locales))
	for k := range Locales {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Page renders the board and about pages for one copy variant.
type Page struct {
	copy  Copy
	board *template.Template
	about *template.Template
}

// NewPage parses the embedded templates for the given locale.
func NewPage(locale string) (*Page, error) {
	c, ok := Locales[locale]
	if !ok {
		return nil, fmt.Errorf("unknown locale %q (supported: %v)", locale, LocaleNames())
	}

	funcs := template.FuncMap{
		"revenue": func(d decimal.Decimal) string {
			return d.StringFixed(engine.RevenueDecimals)
		},
		"seconds": func(f float64) string {
			return strconv.FormatFloat(f, 'f', -1, 64)
		},
		"decision": func(label string) string {
			if text, ok := c.Decisions[label]; ok {
				return text
			}
			return label
		},
		"videoType": func(name string) string {
			if text, ok := c.Types[strings.ToLower(strings.TrimSpace(name))]; ok {
				return text
			}
			return name
		},
		"day": func(name string) string {
			if code, err := features.EncodeDay(name); err == nil && c.Days[code] != "" {
				return c.Days[code]
			}
			return name
		},
		"summary": func(b Batch) string {
			return fmt.Sprintf(c.Summary, b.Recommended(), len(b.Results))
		},
	}

	board, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/board.html")
	if err != nil {
		return nil, fmt.Errorf("parse board template: %w", err)
	}
	about, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/about.html")
	if err != nil {
		return nil, fmt.Errorf("parse about template: %w", err)
	}

	return &Page{copy: c, board: board, about: about}, nil
}

// Copy returns the text variant the page renders with.
func (p *Page) Copy() Copy {
	return p.copy
}

type pageData struct {
	Copy  Copy
	Batch Batch
}

// RenderBoard writes the HTML table for a batch.
func (p *Page) RenderBoard(w io.Writer, batch Batch) error {
	return p.board.Execute(w, pageData{Copy: p.copy, Batch: batch})
}

// RenderAbout writes the informational page.
func (p *Page) RenderAbout(w io.Writer) error {
	return p.about.Execute(w, pageData{Copy: p.copy})
}
