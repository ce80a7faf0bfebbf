package probe_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/scorebridge/internal/adapters/http/api"
	"github.com/okian/scorebridge/internal/adapters/repository"
	service "github.com/okian/scorebridge/internal/app"
	"github.com/okian/scorebridge/internal/probe"
	"github.com/okian/scorebridge/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running scorebridge", t, func() {
		svc := service.New(repository.NewMemoryCollection(), service.WithWorkerCount(4))
		So(svc.Start(context.Background()), ShouldBeNil)
		apiServer := api.NewServer(svc, svc)
		mux := http.NewServeMux()
		apiServer.Register(context.Background(), mux)
		srv := httptest.NewServer(apiServer.Handler(mux))
		defer func() {
			apiServer.Close()
			srv.Close()
			svc.Stop()
		}()

		Convey("When probing with several sessions", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			stats, err := probe.Run(ctx, &probe.Config{
				BaseURL:  srv.URL,
				Sessions: 3,
				Scores:   4,
				Timeout:  5 * time.Second,
				Settle:   200 * time.Millisecond,
			})

			Convey("Then every score is accepted, updated and found", func() {
				So(err, ShouldBeNil)
				So(stats.SessionsOpened, ShouldEqual, 3)
				So(stats.ScoresAccepted, ShouldEqual, 12)
				So(stats.ScoresUpdated, ShouldEqual, 12)
				So(stats.LeaderboardEntries, ShouldEqual, 12)
				So(stats.Missing, ShouldEqual, 0)
			})
		})
	})

	Convey("Given nothing is listening", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		Convey("When probing", func() {
			_, err := probe.Run(context.Background(), &probe.Config{BaseURL: srv.URL, Timeout: time.Second})

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, probe.ErrVerification), ShouldBeFalse)
			})
		})
	})
}
