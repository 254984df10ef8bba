package cell_views

import (
	"fmt"
	"html/template"

	"vacuum/server/fastview"
	"vacuum/simulation"

	channerics "github.com/niceyeti/channerics/channels"
)

// TelemetryView is a text panel of the run's counters.
type TelemetryView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewTelemetryView(
	done <-chan struct{},
	rooms <-chan Room,
) (tv *TelemetryView) {
	tv = &TelemetryView{id: "telemetry"}
	tv.updates = channerics.Convert(done, rooms, tv.onUpdate)
	return
}

func (tv *TelemetryView) Updates() <-chan []fastview.EleUpdate {
	return tv.updates
}

// telemetryFields lists the panel's fields in display order.
var telemetryFields = []struct {
	key, label string
	format     func(simulation.Telemetry) string
}{
	{"mode", "Mode", func(t simulation.Telemetry) string { return t.Mode.String() }},
	{"cleaned", "Cleaned", func(t simulation.Telemetry) string { return fmt.Sprint(t.Cleaned) }},
	{"dirt", "Dirt left", func(t simulation.Telemetry) string { return fmt.Sprint(t.DirtRemaining) }},
	{"distance", "Distance", func(t simulation.Telemetry) string { return fmt.Sprintf("%.0f", t.Distance) }},
	{"elapsed", "Elapsed", func(t simulation.Telemetry) string { return fmt.Sprintf("%.1fs", t.ElapsedSeconds) }},
	{"position", "Position", func(t simulation.Telemetry) string { return fmt.Sprintf("(%d, %d)", t.Row, t.Col) }},
	{"phase", "Phase", func(t simulation.Telemetry) string { return t.Phase }},
}

func (tv *TelemetryView) fieldId(key string) string {
	return tv.id + "-" + key
}

func (tv *TelemetryView) onUpdate(room Room) (ops []fastview.EleUpdate) {
	for _, field := range telemetryFields {
		ops = append(ops, fastview.EleUpdate{
			EleId: tv.fieldId(field.key),
			Ops: []fastview.Op{
				{Key: fastview.TextContent, Value: field.format(room.Telemetry)},
			},
		})
	}
	return
}

// Parse defines the panel as a table of labelled values.
func (tv *TelemetryView) Parse(
	t *template.Template,
) (name string, err error) {
	name = tv.id
	rows := ""
	for i, field := range telemetryFields {
		rows += fmt.Sprintf(
			`<tr><td>%s</td><td id="%s">{{ index $values %d }}</td></tr>`,
			field.label, tv.fieldId(field.key), i)
	}

	_, err = t.Funcs(template.FuncMap{
		"telemetryValues": func(t simulation.Telemetry) (values []string) {
			for _, field := range telemetryFields {
				values = append(values, field.format(t))
			}
			return
		},
	}).Parse(
		`{{ define "` + name + `" }}
		{{ $values := telemetryValues .Telemetry }}
		<table id="` + tv.id + `" style="font-family: monospace;">
			` + rows + `
		</table>
		{{ end }}`)
	return
}
