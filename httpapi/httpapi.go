// Package httpapi exposes a Registry of stores over HTTP using chi,
// translating store errors into the status codes spec'd for each error
// kind and query-string parameters into TraverseOptions/Put/Delete options.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/herodb/herodb/core"
	"github.com/herodb/herodb/objectstore"
	"github.com/herodb/herodb/store"
)

// Server wires a store.Registry onto chi routes.
type Server struct {
	registry *store.Registry
	log      *slog.Logger
	router   chi.Router
}

// NewServer builds a Server routing requests against registry.
func NewServer(registry *store.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{registry: registry, log: log}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/stores", s.handleListStores)
	r.Post("/stores/{store}", s.handleCreateStore)
	r.Get("/cache_stats", s.handleCacheStats)
	r.Post("/reset_cache_stats", s.handleResetCacheStats)
	r.Get("/thread_dump", s.handleThreadDump)

	r.Post("/{store}/branch/{branch}", s.handleCreateBranch)
	r.Get("/{store}/branch/{branch}", s.handleBranchHead)
	r.Post("/{store}/merge/{source}", s.handleMerge)
	r.Get("/{store}/diff/{sha}", s.handleDiff)

	r.Get("/{store}/entry", s.handleGetEntry)
	r.Get("/{store}/entry/*", s.handleGetEntry)
	r.Put("/{store}/entry", s.handlePutEntry)
	r.Put("/{store}/entry/*", s.handlePutEntry)
	r.Delete("/{store}/entry", s.handleDeleteEntry)
	r.Delete("/{store}/entry/*", s.handleDeleteEntry)

	r.Get("/{store}/keys", s.handleKeys)
	r.Get("/{store}/keys/*", s.handleKeys)
	r.Get("/{store}/entries", s.handleEntries)
	r.Get("/{store}/entries/*", s.handleEntries)
	r.Get("/{store}/trees", s.handleTrees)
	r.Get("/{store}/trees/*", s.handleTrees)

	return r
}

func entryPath(r *http.Request) string {
	return chi.URLParam(r, "*")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrBackendFailure), errors.Is(err, store.ErrSerializerFailure):
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}

func queryBool(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n != 0
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func identityFromQuery(r *http.Request) core.Identity {
	name := r.URL.Query().Get("author")
	if name == "" {
		name = r.URL.Query().Get("committer")
	}
	if name == "" {
		name = "herodb"
	}
	return core.Identity{Name: name, Email: name + "@herodb.local"}
}

func (s *Server) store(w http.ResponseWriter, r *http.Request) (*store.Store, bool) {
	id := chi.URLParam(r, "store")
	st, err := s.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return st, true
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stores": s.registry.Ids()})
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	txn, err := st.BranchHead(objectstore.MasterBranch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sha": txn.ID})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.QueryCache().Stats()
	writeJSON(w, http.StatusOK, map[string]int64{
		"requests": stats.Requests, "hits": stats.Hits, "misses": stats.Misses,
	})
}

func (s *Server) handleResetCacheStats(w http.ResponseWriter, r *http.Request) {
	s.registry.QueryCache().ResetStats()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleThreadDump(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, 1<<20)
	n := stackTrace(buf)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf[:n])
}

func (s *Server) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	branch := chi.URLParam(r, "branch")
	var from objectstore.Transaction
	if parent := r.URL.Query().Get("parent"); parent != "" {
		from = objectstore.Transaction{ID: parent}
	}
	txn, err := st.CreateBranch(branch, from)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sha": txn.ID})
}

func (s *Server) handleBranchHead(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	branch := chi.URLParam(r, "branch")
	txn, err := st.BranchHead(branch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"branch": branch, "sha": txn.ID})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	source := chi.URLParam(r, "source")
	target := r.URL.Query().Get("target")
	if target == "" {
		target = objectstore.MasterBranch
	}
	message := "Merge " + source + " to " + target
	identity := identityFromQuery(r)
	result, err := st.Merge(source, target, message, &identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sha": result.Transaction.ID})
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	entries, err := st.Diff(chi.URLParam(r, "sha"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"diff": entries})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	opts := store.GetOptions{
		Branch:    r.URL.Query().Get("branch"),
		CommitSHA: r.URL.Query().Get("commit_sha"),
		Shallow:   queryBool(r, "shallow", false),
	}
	value, err := st.Get(entryPath(r), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (s *Server) handlePutEntry(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	var value any
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		http.Error(w, "empty or malformed body", http.StatusInternalServerError)
		return
	}
	identity := identityFromQuery(r)
	opts := store.PutOptions{
		Branch:   r.URL.Query().Get("branch"),
		Flatten:  queryBool(r, "flatten_keys", true),
		Identity: &identity,
	}
	txn, err := st.Put(entryPath(r), value, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sha": txn.ID})
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	identity := identityFromQuery(r)
	opts := store.DeleteOptions{Branch: r.URL.Query().Get("branch"), Identity: &identity}
	txn, err := st.Delete(entryPath(r), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sha": txn.ID})
}

func traverseOptionsFromQuery(r *http.Request) store.TraverseOptions {
	return store.TraverseOptions{
		Path:        entryPath(r),
		Pattern:     r.URL.Query().Get("pattern"),
		MinLevel:    queryInt(r, "min_level", 0),
		MaxLevel:    queryInt(r, "max_level", 0),
		DepthFirst:  queryBool(r, "depth_first", true),
		FilterBy:    r.URL.Query().Get("filter_by"),
		ObjectDepth: queryInt(r, "object_depth", 0),
		Branch:      r.URL.Query().Get("branch"),
		CommitSHA:   r.URL.Query().Get("commit_sha"),
	}
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	keys, err := st.Keys(traverseOptionsFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	opts := traverseOptionsFromQuery(r)
	opts.FilterBy = "" // entries has no filter_by param
	entries, err := st.Entries(opts)
	if err != nil {
		writeError(w, err)
		return
	}
	pairs := make([][2]any, 0, len(entries))
	for _, e := range entries {
		pairs = append(pairs, [2]any{e.Path, e.Value})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": pairs})
}

func (s *Server) handleTrees(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	tree, err := st.Trees(traverseOptionsFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}
