package root_view

import (
	"context"
	"html/template"
	"time"

	"vacuum/server/cell_views"
	"vacuum/server/fastview"
	"vacuum/simulation"

	channerics "github.com/niceyeti/channerics/channels"
)

// RootView is the main page's index.html, which is the container for all the
// view components, the wiring for their channels, and the page's controls.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// NewRootView creates the main page and the views it contains, all fed by @snapshots.
func NewRootView(
	ctx context.Context,
	snapshots <-chan simulation.Snapshot,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[simulation.Snapshot, cell_views.Room]().
		WithContext(ctx).
		WithModel(snapshots, cell_views.Convert).
		WithView(func(
			done <-chan struct{},
			rooms <-chan cell_views.Room) fastview.ViewComponent {
			return cell_views.NewRoomView(done, rooms)
		}).
		WithView(func(
			done <-chan struct{},
			rooms <-chan cell_views.Room) fastview.ViewComponent {
			return cell_views.NewTelemetryView(done, rooms)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	return &RootView{
		views:   views,
		updates: fanIn(ctx.Done(), views),
	}, nil
}

// Updates returns the main ele-update channel for all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// The page is executed with a cell_views.Room.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	viewTemplates := []string{}
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(parent)
		if parseErr != nil {
			err = parseErr
			return
		}
		viewTemplates = append(viewTemplates, tname)
	}

	var bodySpec string
	for _, tname := range viewTemplates {
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	// The main template bootstraps the rest: sets up the client websocket, applies
	// pushed ele-updates, and sends edits and controls back over the same socket.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<title>vacuum</title>
			<link rel="icon" href="data:,">
			<style>
				body { font-family: sans-serif; display: flex; gap: 24px; padding: 16px; }
				.cell { cursor: crosshair; }
				#controls button { margin: 2px; }
			</style>
		</head>
		<body>
		<div>` + bodySpec + `</div>
		<div id="controls">
			<div>
				<button data-action="start">Start</button>
				<button data-action="toggle">Pause/Resume</button>
				<button data-action="stop">Stop</button>
				<button data-action="reset">Reset</button>
				<button data-action="seed">Random dirt</button>
			</div>
			<div>
				Brush:
				<label><input type="radio" name="brush" value="dirt" checked>Dirt</label>
				<label><input type="radio" name="brush" value="obstacle">Furniture</label>
				<label><input type="radio" name="brush" value="erase">Erase</label>
			</div>
		</div>
		<script>
			const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
			ws.onopen = function (event) {
				console.log("Web socket opened")
			};

			ws.onerror = function (event) {
				console.log('WebSocket error: ', event);
			};

			// When the server pushes view updates, find these eles and update them.
			ws.onmessage = function (event) {
				const items = JSON.parse(event.data)
				for (const update of items) {
					const ele = document.getElementById(update.EleId)
					if (!ele) {
						continue
					}
					for (const op of update.Ops) {
						if (op.Key === "textContent") {
							ele.textContent = op.Value;
						} else {
							ele.setAttribute(op.Key, op.Value)
						}
					}
				}
			};

			function send(msg) {
				if (ws.readyState === WebSocket.OPEN) {
					ws.send(JSON.stringify(msg))
				}
			}

			function brush() {
				return document.querySelector('input[name="brush"]:checked').value
			}

			let painting = false
			function paint(ele) {
				if (!ele.classList || !ele.classList.contains("cell")) {
					return
				}
				send({type: "edit", row: +ele.dataset.row, col: +ele.dataset.col, mode: brush()})
			}
			document.addEventListener("mousedown", e => { painting = true; paint(e.target) })
			document.addEventListener("mouseover", e => { if (painting) paint(e.target) })
			document.addEventListener("mouseup", () => { painting = false })

			for (const button of document.querySelectorAll("#controls button")) {
				button.addEventListener("click", () => send({type: "control", action: button.dataset.action}))
			}
		</script>
		</body></html>
	{{ end }}
	`

	_, err = parent.Parse(indexTemplate)
	return
}

// fanIn aggregates the views' ele-update channels into a single channel,
// and throttles its output.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		time.Millisecond*20)
}

// batchify batches within the passed time frame before sending, over-writing previously
// received values for the same ele-id. This ensures that redundant updates for the
// same ele-id are not sent, and only the latest values are sent.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		last := time.Time{}
		for updates := range channerics.OrDone(done, source) {
			// Intentionally overwrites pre-existing values for an ele-id within this batch's time frame.
			for _, update := range updates {
				data[update.EleId] = update
			}

			if time.Since(last) > rate && len(data) > 0 {
				select {
				case output <- slicedVals(data):
					data = map[string]fastview.EleUpdate{}
					last = time.Now()
				case <-done:
					return
				}
			}
		}
	}()

	return output
}

// returns the values of a map as a slice
func slicedVals[T1 comparable, T2 any](mp map[T1]T2) (sliced []T2) {
	for _, v := range mp {
		sliced = append(sliced, v)
	}
	return
}
