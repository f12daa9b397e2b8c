package session_test

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ericfisherdev/gosheets/internal/adapter/driven/auth"
	"github.com/ericfisherdev/gosheets/internal/adapter/driven/cassette"
	"github.com/ericfisherdev/gosheets/internal/application"
	"github.com/ericfisherdev/gosheets/internal/config"
	"github.com/ericfisherdev/gosheets/internal/domain/model"
	"github.com/ericfisherdev/gosheets/internal/domain/port/driven"
	"github.com/ericfisherdev/gosheets/internal/session"
	"github.com/ericfisherdev/gosheets/internal/sheetstest"
)

// waitRecorder collects the dispatcher's waits instead of sleeping.
type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (w *waitRecorder) sleep(_ context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.waits = append(w.waits, d)
	return nil
}

func (w *waitRecorder) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waits)
}

func newConfig(srv *sheetstest.Server, dir string, mode model.RecordMode) *config.Config {
	return &config.Config{
		CassetteDir:      dir,
		RecordMode:       mode,
		SheetsBaseURL:    srv.SheetsBaseURL(),
		DriveBaseURL:     srv.DriveBaseURL(),
		RetryWait:        time.Second,
		RequestTimeout:   5 * time.Second,
		SweepConcurrency: 2,
	}
}

var _ = Describe("Session", func() {
	var (
		ctx    context.Context
		srv    *sheetstest.Server
		dir    string
		waits  *waitRecorder
		cfgFor func(model.RecordMode) *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		srv = sheetstest.NewServer(GinkgoT())
		dir = GinkgoT().TempDir()
		waits = &waitRecorder{}
		cfgFor = func(mode model.RecordMode) *config.Config { return newConfig(srv, dir, mode) }
	})

	open := func(cfg *config.Config, name string) *session.Session {
		s, err := session.New(ctx, cfg, name,
			session.WithBaseTransport(srv.Client().Transport),
			session.WithSleeper(waits.sleep),
		)
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	Context("without a service-account key", func() {
		It("uses the stand-in credential", func() {
			tokens, err := session.Credentials(ctx, cfgFor(model.RecordModeNone))
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens).To(Equal(auth.NewDummyCredential()))

			token, err := tokens.Token(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(Equal(model.DummyAccessToken))
		})

		It("fails when the key file cannot be read", func() {
			cfg := cfgFor(model.RecordModeNone)
			cfg.CredsFilename = filepath.Join(dir, "missing.json")

			_, err := session.Credentials(ctx, cfg)
			Expect(err).To(MatchError(ContainSubstring("GS_CREDS_FILENAME")))
		})
	})

	Context("recording and then replaying a cassette", func() {
		const name = "session/test_values_round_trip"

		It("replays the recorded run without touching the server", func() {
			rec := open(cfgFor(model.RecordModeOnce), name)
			Expect(rec.Recorder.Recording()).To(BeTrue())

			sp, cleanup, err := rec.TemporarySpreadsheet(ctx, "SessionTest")
			Expect(err).NotTo(HaveOccurred())
			Expect(sp.Title).To(Equal("Test SessionTest"))

			_, err = rec.Client.UpdateValues(ctx, sp.ID, "Sheet1!A1", [][]any{{application.I18NString}})
			Expect(err).NotTo(HaveOccurred())
			recorded, err := rec.Client.GetValues(ctx, sp.ID, "Sheet1!A1")
			Expect(err).NotTo(HaveOccurred())
			Expect(cleanup(ctx)).To(Succeed())
			Expect(rec.Close(ctx)).To(Succeed())

			served := srv.Requests()
			Expect(filepath.Join(dir, name+".json")).To(BeAnExistingFile())

			replay := open(cfgFor(model.RecordModeOnce), name)
			Expect(replay.Recorder.Recording()).To(BeFalse())

			again, cleanupAgain, err := replay.TemporarySpreadsheet(ctx, "SessionTest")
			Expect(err).NotTo(HaveOccurred())
			Expect(again.ID).To(Equal(sp.ID))

			_, err = replay.Client.UpdateValues(ctx, again.ID, "Sheet1!A1", [][]any{{application.I18NString}})
			Expect(err).NotTo(HaveOccurred())
			replayed, err := replay.Client.GetValues(ctx, again.ID, "Sheet1!A1")
			Expect(err).NotTo(HaveOccurred())
			Expect(replayed).To(Equal(recorded))
			Expect(cleanupAgain(ctx)).To(Succeed())
			Expect(replay.Close(ctx)).To(Succeed())

			Expect(srv.Requests()).To(Equal(served))
		})

		It("never persists the real access token", func() {
			s, err := session.New(ctx, cfgFor(model.RecordModeAll), name,
				session.WithBaseTransport(srv.Client().Transport),
				session.WithTokens(auth.NewStaticCredential("ya29.super-secret", model.DefaultScopes)),
			)
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Client.CreateSpreadsheet(ctx, "Test secret")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close(ctx)).To(Succeed())
			Expect(srv.LastAuthorization()).To(Equal("Bearer ya29.super-secret"))

			cas, err := cassette.NewFileStore(dir, nil).Load(ctx, name)
			Expect(err).NotTo(HaveOccurred())
			Expect(cas.Interactions).To(HaveLen(1))
			Expect(cas.Interactions[0].Request.Headers.Get("Authorization")).To(Equal(model.DummyAccessToken))
		})
	})

	Context("when the API rate limits the recorded run", func() {
		const name = "session/test_rate_limited"

		It("waits once per rate-limited attempt, live and on replay", func() {
			srv.FailNextWithRateLimit(2)

			rec := open(cfgFor(model.RecordModeAll), name)
			sp, err := rec.Client.CreateSpreadsheet(ctx, "Test limited")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Close(ctx)).To(Succeed())
			Expect(waits.count()).To(Equal(2))
			Expect(waits.waits).To(HaveEach(time.Second))

			replay := open(cfgFor(model.RecordModeNone), name)
			again, err := replay.Client.CreateSpreadsheet(ctx, "Test limited")
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(sp))
			Expect(replay.Close(ctx)).To(Succeed())
			Expect(waits.count()).To(Equal(4))
		})
	})

	Context("in replay-only mode", func() {
		It("fails to start without a cassette", func() {
			_, err := session.New(ctx, cfgFor(model.RecordModeNone), "session/missing",
				session.WithBaseTransport(srv.Client().Transport),
			)
			Expect(err).To(MatchError(driven.ErrCassetteNotFound))
			Expect(srv.Requests()).To(BeZero())
		})

		It("refuses to reach the network for unrecorded requests", func() {
			const name = "session/test_replay_miss"
			id := srv.Seed("Test replay miss")

			rec := open(cfgFor(model.RecordModeOnce), name)
			_, err := rec.Client.OpenByKey(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Close(ctx)).To(Succeed())
			served := srv.Requests()

			replay := open(cfgFor(model.RecordModeNone), name)
			_, err = replay.Client.OpenByKey(ctx, "never-recorded")
			Expect(err).To(MatchError(ContainSubstring("no recorded interaction")))
			Expect(srv.Requests()).To(Equal(served))
			Expect(replay.Close(ctx)).To(Succeed())
		})
	})

	Context("with a SQLite cassette store", func() {
		It("records into and replays from the database", func() {
			cfg := cfgFor(model.RecordModeOnce)
			cfg.CassetteDB = filepath.Join(dir, "cassettes.db")
			id := srv.Seed("Test sqlite")

			rec := open(cfg, "sqlite/test_open_by_key")
			sp, err := rec.Client.OpenByKey(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Close(ctx)).To(Succeed())

			store, closeStore, err := session.OpenStore(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			names, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(ConsistOf("sqlite/test_open_by_key"))
			Expect(closeStore()).To(Succeed())

			served := srv.Requests()
			replay := open(cfg, "sqlite/test_open_by_key")
			again, err := replay.Client.OpenByKey(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(sp))
			Expect(replay.Close(ctx)).To(Succeed())
			Expect(srv.Requests()).To(Equal(served))
		})
	})

	Context("sweeping leftovers through a session", func() {
		It("deletes only prefixed spreadsheets", func() {
			keep := srv.Seed("Quarterly report")
			gone := srv.Seed("Test leftover")

			s := open(cfgFor(model.RecordModeAll), "session/test_sweep")
			deleted, err := application.NewSweeper(s.Client, 2, nil).Sweep(ctx, "Test ")
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal([]string{gone}))
			Expect(s.Close(ctx)).To(Succeed())

			Expect(srv.Exists(keep)).To(BeTrue())
			Expect(srv.Exists(gone)).To(BeFalse())
		})
	})
})
