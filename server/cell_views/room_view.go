package cell_views

import (
	"fmt"
	"html/template"

	"vacuum/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// RoomView draws the grid as svg rects with the agent as a circle on top of
// them, and its remaining route as a polyline.
type RoomView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

// NewRoomView returns a room view fed by @rooms until @done is closed.
func NewRoomView(
	done <-chan struct{},
	rooms <-chan Room,
) (rv *RoomView) {
	// Hyphens interfere with html/template's `template` directive.
	rv = &RoomView{id: "room"}
	rv.updates = channerics.Convert(done, rooms, rv.onUpdate)
	return
}

func (rv *RoomView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

func cellId(row, col int) string {
	return fmt.Sprintf("cell-%d-%d", row, col)
}

// Returns the full set of view updates for the room. Every update is complete so
// that a client may drop any of them.
func (rv *RoomView) onUpdate(room Room) (ops []fastview.EleUpdate) {
	for _, row := range room.Cells {
		for _, cell := range row {
			ops = append(ops, fastview.EleUpdate{
				EleId: cellId(cell.Row, cell.Col),
				Ops: []fastview.Op{
					{Key: "fill", Value: cell.Fill},
				},
			})
		}
	}

	ops = append(ops,
		fastview.EleUpdate{
			EleId: rv.id + "-agent",
			Ops: []fastview.Op{
				{Key: "cx", Value: room.AgentX},
				{Key: "cy", Value: room.AgentY},
			},
		},
		fastview.EleUpdate{
			EleId: rv.id + "-route",
			Ops: []fastview.Op{
				{Key: "points", Value: room.Route},
			},
		},
	)
	return
}

// Parse defines the room's svg. Cells carry their indices so the page can turn
// clicks into edits.
func (rv *RoomView) Parse(
	t *template.Template,
) (name string, err error) {
	name = rv.id
	addedMap := template.FuncMap{
		"add": func(i, j int) int { return i + j },
	}
	_, err = t.Funcs(addedMap).Parse(
		`{{ define "` + name + `" }}
		<div id="` + rv.id + `-container">
			<svg id="` + rv.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ add .Width 1 }}px"
				height="{{ add .Height 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ $size := .CellSize }}
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
					<rect id="cell-{{ $cell.Row }}-{{ $cell.Col }}" class="cell"
						data-row="{{ $cell.Row }}" data-col="{{ $cell.Col }}"
						x="{{ $cell.X }}" y="{{ $cell.Y }}"
						width="{{ $size }}" height="{{ $size }}"
						fill="{{ $cell.Fill }}" stroke="lightgray" stroke-width="1"/>
					{{ end }}
				{{ end }}
				<polyline id="` + rv.id + `-route" points="{{ .Route }}"
					fill="none" stroke="steelblue" stroke-width="2" stroke-dasharray="4 3"
					pointer-events="none"/>
				<circle id="` + rv.id + `-agent" cx="{{ .AgentX }}" cy="{{ .AgentY }}" r="{{ .AgentR }}"
					fill="crimson" stroke="black" stroke-width="1" pointer-events="none"/>
			</svg>
		</div>
		{{ end }}`)
	return
}
