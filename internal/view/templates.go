package view

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ss-insurance/insurance-manager/internal/shared"
	"github.com/ss-insurance/insurance-manager/web"
)

// AppName is shown in page titles and the navigation bar.
const AppName = "SS Insurance Manager"

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Data        any
}

var moneyPrinter = message.NewPrinter(language.MustParse("en-IN"))

// Funcs returns the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"appName": func() string { return AppName },
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"formatDueDate": FormatDueDate,
		"formatMoney":   FormatMoney,
		"formatPercent": func(v float64) string {
			return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".") + "%"
		},
		"lower":     strings.ToLower,
		"hasPrefix": strings.HasPrefix,
	}
}

// FormatDueDate renders dates as DD/MM/YYYY. It accepts time.Time and
// *time.Time; zero and nil values render as "-".
func FormatDueDate(v any) string {
	var t time.Time
	switch d := v.(type) {
	case time.Time:
		t = d
	case *time.Time:
		if d == nil {
			return "-"
		}
		t = *d
	default:
		return "-"
	}
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}

// FormatMoney renders an amount in rupees with locale grouping.
func FormatMoney(v float64) string {
	return "₹" + moneyPrinter.Sprintf("%.2f", v)
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(Funcs()).ParseFS(web.Templates(), web.TemplatePatterns...)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}
