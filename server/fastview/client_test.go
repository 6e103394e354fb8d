package fastview

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

// syncServer serves a Client over snapshots and reports what Sync returned.
func syncServer(snapshots <-chan int, synced chan<- error) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cli, err := NewClient(snapshots, w, r)
		if err != nil {
			synced <- err
			return
		}
		synced <- cli.Sync()
	}))
}

func dial(srv *httptest.Server) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	return ws, err
}

func waitSync(synced <-chan error) (returned bool, err error) {
	select {
	case err = <-synced:
		return true, err
	case <-time.After(5 * time.Second):
		return false, nil
	}
}

func TestClient(t *testing.T) {
	Convey("Given a client publishing snapshots", t, func() {
		snapshots := make(chan int)
		synced := make(chan error, 1)
		srv := syncServer(snapshots, synced)
		defer srv.Close()

		ws, err := dial(srv)
		So(err, ShouldBeNil)
		defer ws.Close()

		Convey("Bursts are coalesced to the newest snapshot", func() {
			const burst = 50
			for i := 1; i <= burst; i++ {
				snapshots <- i
			}

			So(ws.SetReadDeadline(time.Now().Add(5*time.Second)), ShouldBeNil)
			received := 0
			latest := 0
			for latest != burst {
				So(ws.ReadJSON(&latest), ShouldBeNil)
				received++
			}
			So(received, ShouldBeLessThan, 10)

			close(snapshots)
			returned, err := waitSync(synced)
			So(returned, ShouldBeTrue)
			So(err, ShouldBeNil)
		})

		Convey("A pending snapshot is flushed when the input closes", func() {
			snapshots <- 7
			close(snapshots)

			So(ws.SetReadDeadline(time.Now().Add(5*time.Second)), ShouldBeNil)
			var got int
			So(ws.ReadJSON(&got), ShouldBeNil)
			So(got, ShouldEqual, 7)

			_, _, err := ws.ReadMessage()
			So(websocket.IsCloseError(err, websocket.CloseNormalClosure), ShouldBeTrue)

			returned, err := waitSync(synced)
			So(returned, ShouldBeTrue)
			So(err, ShouldBeNil)
		})

		Convey("A peer that stops answering pings ends Sync with an error", func() {
			// Not reading means pings are never answered with pongs.
			returned, err := waitSync(synced)
			So(returned, ShouldBeTrue)
			So(err, ShouldNotBeNil)
			close(snapshots)
		})
	})
}
