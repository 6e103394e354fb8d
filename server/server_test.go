package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rlgym/grid_world"
	"rlgym/reinforcement"
	"rlgym/server/cell_views"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	. "github.com/smartystreets/goconvey/convey"
)

func round(agent string, iter int, reward float64) reinforcement.Round {
	return reinforcement.Round{
		Agent:      agent,
		Iteration:  iter,
		Steps:      iter * 16,
		MeanReward: reward,
		MaxReward:  reward,
	}
}

// valuesOf is the values grid of an agent that learned only the value and action
// of the start state of the fixed-layout board.
func valuesOf(agent string) cell_views.Cells {
	env := grid_world.NewGridWorld(grid_world.RandomPlayer, 1, 0)
	s := env.Reset()
	s.Player = grid_world.Position{Row: 0, Col: 0}
	grid := env.ValueGrid(map[grid_world.State]float64{s: 1.5}, map[grid_world.State]int{s: grid_world.RIGHT})
	return cell_views.Convert(cell_views.Values{Agent: agent, Grid: grid})
}

func TestBoard(t *testing.T) {
	Convey("Given a board", t, func() {
		board := NewBoard()

		Convey("When rounds from several agents are merged into it", func() {
			done := make(chan struct{})
			defer close(done)

			a := make(chan reinforcement.Round, 2)
			b := make(chan reinforcement.Round, 1)
			a <- round("sarsa", 1, -3)
			a <- round("sarsa", 2, 4)
			b <- round("qlearning", 1, 10)
			close(a)
			close(b)

			board.Run(done, channerics.Merge(done, a, b))

			Convey("The snapshot holds the latest round per agent, ordered by name", func() {
				snap := board.Rounds()
				So(len(snap), ShouldEqual, 2)
				So(snap[0].Agent, ShouldEqual, "qlearning")
				So(snap[1].Agent, ShouldEqual, "sarsa")
				So(snap[1].Iteration, ShouldEqual, 2)
				So(board.Snapshot().Values, ShouldBeEmpty)
			})

			Convey("Results carry each agent's reward curve", func() {
				results := board.Results()
				So(results[1].Rewards, ShouldResemble, []float64{-3, 4})
				So(results[1].Iterations, ShouldEqual, 2)
				So(results[1].Steps, ShouldEqual, 32)
			})

			Convey("Finish records the stop reason", func() {
				board.Finish(reinforcement.Result{Agent: "qlearning", Reason: reinforcement.StopGoalReached})
				st := board.Status()["qlearning"]
				So(st.Done, ShouldBeTrue)
				So(st.Reason, ShouldEqual, "goal reached")
			})
		})

		Convey("Subscribers receive the newest snapshot without blocking the board", func() {
			ctx, cancel := context.WithCancel(context.Background())
			sub := board.Subscribe(ctx)
			for i := 1; i <= 5; i++ {
				board.Observe(round("qlearning", i, float64(i)))
			}
			snap := <-sub
			So(snap.Rounds[0].Iteration, ShouldEqual, 5)

			cancel()
			_, open := <-sub
			So(open, ShouldBeFalse)
		})

		Convey("A late subscriber is primed with the current snapshot", func() {
			board.Observe(round("sarsa", 1, 2))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			snap := <-board.Subscribe(ctx)
			So(snap.Rounds[0].Agent, ShouldEqual, "sarsa")
		})

		Convey("Values grids are merged through the view-model conversion", func() {
			done := make(chan struct{})
			defer close(done)

			env := grid_world.NewGridWorld(grid_world.RandomPlayer, 1, 0)
			env.Reset()
			values := make(chan cell_views.Values, 1)
			values <- cell_views.Values{Agent: "sarsa", Grid: env.ValueGrid(nil, nil)}
			close(values)
			board.RunValues(done, channerics.Convert(done, values, cell_views.Convert))

			grids := board.Grids()
			So(len(grids), ShouldEqual, 1)
			So(grids[0].Agent, ShouldEqual, "sarsa")
			So(len(grids[0].Cells), ShouldEqual, grid_world.GridSize)
		})

		Convey("Snapshots carry element updates for every values grid", func() {
			board.ObserveValues(valuesOf("qlearning"))
			board.ObserveValues(valuesOf("qlearning"))
			board.ObserveValues(valuesOf("sarsa"))

			updates := map[string][]string{}
			for _, update := range board.Snapshot().Values {
				for _, op := range update.Ops {
					updates[update.EleId] = append(updates[update.EleId], op.Key+"="+op.Value)
				}
			}
			// Three elements per cell, per agent; repeated grids replace each other.
			So(len(board.Snapshot().Values), ShouldEqual, 2*3*grid_world.GridSize*grid_world.GridSize)
			So(updates["qlearning-0-0-value-text"], ShouldResemble, []string{"textContent=1.50"})
			So(updates["sarsa-0-0-policy-arrow"], ShouldResemble, []string{"transform=rotate(90)", "visibility=visible"})
			So(updates["sarsa-1-0-policy-arrow"], ShouldResemble, []string{"transform=rotate(0)", "visibility=hidden"})
			So(updates["sarsa-1-1-value-text"], ShouldResemble, []string{"textContent=-"})
			So(updates["sarsa-1-1-cell"], ShouldResemble, []string{"fill=lightsalmon"})
		})
	})
}

func TestServer(t *testing.T) {
	Convey("Given a server over a board with progress", t, func() {
		board := NewBoard()
		board.Observe(round("qlearning", 1, 7))
		board.ObserveValues(valuesOf("qlearning"))
		srv := httptest.NewServer(NewServer("", "BasicGridWorld-v0", board).Handler())
		defer srv.Close()

		get := func(path string) (*http.Response, string) {
			resp, err := http.Get(srv.URL + path)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			So(err, ShouldBeNil)
			return resp, string(body)
		}

		Convey("The index page lists the latest rounds", func() {
			resp, body := get("/")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, "BasicGridWorld-v0")
			So(body, ShouldContainSubstring, "<td>qlearning</td>")
			So(body, ShouldContainSubstring, `id="qlearning-0-0-value-text"`)
			So(body, ShouldContainSubstring, "1.50")
		})

		Convey("The values fragment renders every agent's grid", func() {
			resp, body := get("/values")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body, ShouldContainSubstring, "<h4>qlearning</h4>")
			So(body, ShouldContainSubstring, `id="qlearning-3-3-policy-arrow"`)
			So(body, ShouldNotContainSubstring, "<html>")
		})

		Convey("The status endpoint returns per-agent progress", func() {
			resp, body := get("/status")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			status := map[string]AgentStatus{}
			So(json.Unmarshal([]byte(body), &status), ShouldBeNil)
			So(status["qlearning"].Rewards, ShouldResemble, []float64{7})
		})

		Convey("The chart endpoint renders an echarts page", func() {
			resp, body := get("/chart")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(strings.ToLower(body), ShouldContainSubstring, "echarts")
		})

		Convey("The metrics endpoint is served", func() {
			resp, _ := get("/metrics")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("Websocket clients receive snapshots", func() {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
			ws, _, err := websocket.DefaultDialer.Dial(url, nil)
			So(err, ShouldBeNil)
			defer ws.Close()

			So(ws.SetReadDeadline(time.Now().Add(5*time.Second)), ShouldBeNil)
			var snap Snapshot
			So(ws.ReadJSON(&snap), ShouldBeNil)
			So(len(snap.Rounds), ShouldEqual, 1)
			So(snap.Rounds[0].MeanReward, ShouldEqual, 7.0)
			So(len(snap.Values), ShouldEqual, 3*grid_world.GridSize*grid_world.GridSize)
		})
	})
}
