package cell_views

import (
	"context"
	"html/template"
	"strings"
	"testing"
	"time"

	"vacuum/grid_world"
	"vacuum/simulation"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

func newSnapshot(policy simulation.ReplanPolicy, ticks int, layout ...string) simulation.Snapshot {
	cfg := simulation.DefaultConfig()
	cfg.Layout = layout
	cfg.Home = &grid_world.Cell{Row: 0, Col: 0}
	cfg.ReplanPolicy = policy

	grid, err := cfg.NewGrid()
	if err != nil {
		panic(err)
	}
	engine, err := simulation.NewEngine(cfg, grid, zerolog.Nop())
	if err != nil {
		panic(err)
	}
	if ticks > 0 {
		engine.Start()
		for i := 0; i < ticks; i++ {
			engine.Update(time.Second)
		}
	}
	return engine.Snapshot()
}

func TestConvert(t *testing.T) {
	Convey("When an idle snapshot is converted", t, func() {
		room := Convert(newSnapshot(simulation.ReplanEveryCell, 0,
			".*#",
			"...",
		))

		So(room.CellSize, ShouldEqual, 30)
		So(room.Width, ShouldEqual, 90)
		So(room.Height, ShouldEqual, 60)
		So(len(room.Cells), ShouldEqual, 2)
		So(room.Cells[0][1], ShouldResemble, Cell{Row: 0, Col: 1, X: 30, Y: 0, Fill: "saddlebrown"})
		So(room.Cells[0][2].Fill, ShouldEqual, "dimgray")
		So(room.Cells[1][2], ShouldResemble, Cell{Row: 1, Col: 2, X: 60, Y: 30, Fill: "white"})
		So(room.AgentX, ShouldEqual, "15.0")
		So(room.AgentY, ShouldEqual, "15.0")
		So(room.Route, ShouldBeEmpty)
		So(room.Telemetry.Mode, ShouldEqual, simulation.Idle)
		So(room.Telemetry.DirtRemaining, ShouldEqual, 1)
	})

	Convey("When the agent has a queued route", t, func() {
		// One tick plans the whole corridor and departs toward its first cell.
		room := Convert(newSnapshot(simulation.ReplanOnClean, 1, "...*"))
		So(room.Route, ShouldEqual, "15.0,15.0 45.0,15.0 75.0,15.0 105.0,15.0")
		So(room.Telemetry.Mode, ShouldEqual, simulation.Running)
		So(room.Telemetry.Phase, ShouldEqual, "transiting")
	})
}

func TestViews(t *testing.T) {
	room := Convert(newSnapshot(simulation.ReplanEveryCell, 0,
		"..*",
		"#..",
	))

	Convey("When the room view renders updates", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rooms := make(chan Room, 1)
		rooms <- room

		updates := <-NewRoomView(ctx.Done(), rooms).Updates()
		So(len(updates), ShouldEqual, 6+2)

		byId := map[string]string{}
		for _, update := range updates {
			byId[update.EleId] = update.Ops[0].Value
		}
		So(byId["cell-0-2"], ShouldEqual, "saddlebrown")
		So(byId["cell-1-0"], ShouldEqual, "dimgray")
		So(byId["room-agent"], ShouldEqual, "15.0")
		So(byId, ShouldContainKey, "room-route")
	})

	Convey("When the telemetry view renders updates", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rooms := make(chan Room, 1)
		rooms <- room

		updates := <-NewTelemetryView(ctx.Done(), rooms).Updates()
		byId := map[string]string{}
		for _, update := range updates {
			So(update.Ops[0].Key, ShouldEqual, "textContent")
			byId[update.EleId] = update.Ops[0].Value
		}
		So(byId["telemetry-mode"], ShouldEqual, "idle")
		So(byId["telemetry-dirt"], ShouldEqual, "1")
		So(byId["telemetry-elapsed"], ShouldEqual, "0.0s")
		So(byId["telemetry-position"], ShouldEqual, "(0, 0)")
	})

	Convey("When both views are parsed into one page", t, func() {
		done := make(chan struct{})
		defer close(done)

		page := template.New("page")
		roomName, err := NewRoomView(done, nil).Parse(page)
		So(err, ShouldBeNil)
		telemetryName, err := NewTelemetryView(done, nil).Parse(page)
		So(err, ShouldBeNil)
		_, err = page.Parse(`{{ template "` + roomName + `" . }}{{ template "` + telemetryName + `" . }}`)
		So(err, ShouldBeNil)

		var sb strings.Builder
		So(page.Execute(&sb, room), ShouldBeNil)
		html := sb.String()
		So(html, ShouldContainSubstring, `id="cell-1-2"`)
		So(html, ShouldContainSubstring, `data-row="1"`)
		So(html, ShouldContainSubstring, `id="room-agent"`)
		So(html, ShouldContainSubstring, `width="91px"`)
		So(html, ShouldContainSubstring, `<td id="telemetry-mode">idle</td>`)
	})
}
