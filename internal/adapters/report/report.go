// Package report renders operator-facing Markdown summaries of the
// latest committed cycle.
package report

import (
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// Data is everything one doctor performance report needs.
type Data struct {
	GeneratedAt time.Time
	Scores      []model.CompositeScore
	OpenAlerts  []model.Alert
}

const doctorReportTemplate = `# Doctor Performance Report

Generated: {{ .GeneratedAt.Format "2006-01-02 15:04 MST" }}

## Composite Scores

| Rank | Doctor | Composite | NPS % | Readmission % | Avg Wait (min) | Follow-up % | Responses |
|-----:|--------|----------:|------:|--------------:|---------------:|------------:|----------:|
{{- range $i, $s := .Scores }}
| {{ inc $i }} | {{ or $s.SubjectName $s.SubjectID }} | {{ printf "%.1f" $s.Composite }} | {{ printf "%.1f" $s.NPSPct }} | {{ printf "%.2f" $s.ReadmissionPct }} | {{ waitCell $s.AvgWaitMinutes }} | {{ pct $s.FollowupPct }} | {{ $s.ResponsesCount }} |
{{- end }}

## Open Alerts ({{ len .OpenAlerts }})
{{ if not .OpenAlerts }}
None.
{{ else }}
| ID | Severity | Type | Subject | Message |
|---:|----------|------|---------|---------|
{{- range .OpenAlerts }}
| {{ .ID }} | {{ .Severity }} | {{ .Type }} | {{ .ObjectType }} {{ .ObjectID }} | {{ .Message }} |
{{- end }}
{{ end }}`

var doctorReport = template.Must(template.New("doctor_report").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"pct": func(v float64) string { return fmt.Sprintf("%.1f", v*100) },
	"waitCell": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.1f", *v)
	},
}).Parse(doctorReportTemplate))

// RenderDoctorReport writes the Markdown report to w.
func RenderDoctorReport(w io.Writer, d Data) error {
	if err := doctorReport.Execute(w, d); err != nil {
		return fmt.Errorf("rendering doctor report: %w", err)
	}
	return nil
}
