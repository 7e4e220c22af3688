package conn

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"sync"
	"syscall"

	"github.com/chunkdb/chunkdb/internal/config"
	"github.com/chunkdb/chunkdb/internal/engine"
	"github.com/chunkdb/chunkdb/internal/store"
	"github.com/chunkdb/chunkdb/pkg"
)

// Server exposes the datasets under one root directory over a
// websocket, one subdirectory per dataset.
type Server struct {
	Locker sync.RWMutex
	// dataset name -> open dataset
	data   pkg.Map[string, *store.Dataset]
	dir    string
	engine *engine.Engine
	cfg    *config.Config
}

func NewServer(cfg *config.Config) (*Server, error) {
	s := &Server{
		data:   pkg.Map[string, *store.Dataset]{},
		dir:    cfg.DataDir,
		engine: engine.New(cfg.MemoryBudget, cfg.ChunkRows),
		cfg:    cfg,
	}
	if err := s.loadDatasets(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) GetLocker() *sync.RWMutex { return &s.Locker }

// loadDatasets opens every dataset directory under the root. A
// subdirectory without a meta file is skipped, not fatal: aborted
// ingests leave those behind.
func (s *Server) loadDatasets() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(s.dir, 0755)
		}
		return err
	}

	dirs := pkg.Filter(entries, func(e os.DirEntry) bool { return e.IsDir() })
	for _, entry := range dirs {
		d, err := store.Open(path.Join(s.dir, entry.Name()), s.cfg.CacheSize)
		if err != nil {
			pkg.WarnLog("skipping dataset dir", entry.Name(), err)
			continue
		}
		if s.data.Has(d.Name()) {
			// ReadDir sorts, so the first directory claiming a name wins
			pkg.WarnLog("skipping dataset dir", entry.Name(), "duplicate dataset name", d.Name())
			continue
		}
		s.data.Set(d.Name(), d)
		pkg.InfoLog("loaded dataset", d.Name(), "rows", d.TotalRows())
	}
	return nil
}

func (s *Server) Dataset(name string) *store.Dataset { return s.data.Get(name) }

func (s *Server) Register(d *store.Dataset) { s.data.Set(d.Name(), d) }

func (s *Server) DatasetNames() []string { return s.data.Keys() }

func (s *Server) Listen(port int) {
	exit := make(chan os.Signal, 2)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	hs := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  0,
		WriteTimeout: 0,
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	http.HandleFunc("/", s.HandleConnection)

	go func() {
		err := hs.ListenAndServe()
		if err != http.ErrServerClosed {
			pkg.FatalLog(err)
		}
	}()

	pkg.InfoLog("chunkdb listening on port", port)
	<-exit
	pkg.DebugLog("Shutting down...")
	hs.Shutdown(context.Background())
}
