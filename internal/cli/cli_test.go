package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/tesfaldet/haven/internal/logging"
	"github.com/tesfaldet/haven/internal/store"
	"github.com/tesfaldet/haven/pkg/model"
)

// fakeOrc is a minimal in-memory orchestrator speaking the jobs API.
type fakeOrc struct {
	mu      sync.Mutex
	jobs    map[string]string // handle -> wire state
	submits int
	next    int
}

func newFakeOrc() *fakeOrc {
	return &fakeOrc{jobs: make(map[string]string)}
}

func (f *fakeOrc) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func (f *fakeOrc) setAll(state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h := range f.jobs {
		f.jobs[h] = state
	}
}

func (f *fakeOrc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/jobs":
		f.submits++
		f.next++
		handle := fmt.Sprintf("job-%d", f.next)
		f.jobs[handle] = "QUEUED"
		json.NewEncoder(w).Encode(map[string]string{"handle": handle})

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/logs"):
		handle := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/jobs/"), "/logs")
		if _, ok := f.jobs[handle]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, "log text for %s", handle)

	case r.Method == http.MethodGet:
		handle := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
		state, ok := f.jobs[handle]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"handle": handle, "state": state})

	case r.Method == http.MethodDelete:
		handle := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
		if _, ok := f.jobs[handle]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.jobs[handle] = "CANCELLED"
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// testSetup writes config and experiment list files against a fake
// orchestrator and returns everything a command run needs.
func testSetup(t *testing.T) (orc *fakeOrc, cfgPath, listPath, savedirBase string, ids []string) {
	t.Helper()

	orc = newFakeOrc()
	ts := httptest.NewServer(orc)
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	savedirBase = filepath.Join(dir, "runs")

	cfgPath = filepath.Join(dir, "haven.yaml")
	cfg := fmt.Sprintf(`backend:
  base_url: %s
launch:
  savedir_base: %s
  run_command: python train.py -e <exp_id> -s <savedir>
  max_parallel: 4
  job:
    image: pytorch:2.1
`, ts.URL, savedirBase)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	listPath = filepath.Join(dir, "exp_list.yaml")
	list := "- lr: 0.01\n  seed: 1\n- lr: 0.1\n  seed: 2\n"
	if err := os.WriteFile(listPath, []byte(list), 0o644); err != nil {
		t.Fatalf("write experiment list: %v", err)
	}

	specs := []model.ExperimentSpec{
		{"lr": 0.01, "seed": 1},
		{"lr": 0.1, "seed": 2},
	}
	for _, spec := range specs {
		ids = append(ids, spec.ID())
	}
	return orc, cfgPath, listPath, savedirBase, ids
}

func runCommand(t *testing.T, cfgPath, listPath string, args ...string) error {
	t.Helper()
	root := NewRootCmd()
	root.SetArgs(append(args, "--config", cfgPath, "--experiments", listPath, "--log-level", "error"))
	return root.Execute()
}

func openStore(t *testing.T, savedirBase string) *store.FileStore {
	t.Helper()
	st, err := store.NewFileStore(savedirBase, logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func TestLaunch_SubmitsEveryExperiment(t *testing.T) {
	orc, cfgPath, listPath, savedirBase, ids := testSetup(t)

	if err := runCommand(t, cfgPath, listPath, "launch"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if orc.submitCount() != len(ids) {
		t.Errorf("submits = %d, want %d", orc.submitCount(), len(ids))
	}

	st := openStore(t, savedirBase)
	for _, id := range ids {
		rec, err := st.Get(context.Background(), id)
		if err != nil || rec == nil {
			t.Fatalf("record %s missing after launch: %v", id, err)
		}
		if rec.State != model.StateSubmitted {
			t.Errorf("record %s state = %s, want SUBMITTED", id, rec.State)
		}
		if rec.JobHandle == "" {
			t.Errorf("record %s has no job handle", id)
		}
	}
}

func TestLaunch_SecondRunIsNoop(t *testing.T) {
	orc, cfgPath, listPath, _, ids := testSetup(t)

	if err := runCommand(t, cfgPath, listPath, "launch"); err != nil {
		t.Fatalf("first launch: %v", err)
	}
	if err := runCommand(t, cfgPath, listPath, "launch"); err != nil {
		t.Fatalf("second launch: %v", err)
	}
	if orc.submitCount() != len(ids) {
		t.Errorf("submits = %d after two launches, want %d", orc.submitCount(), len(ids))
	}
}

func TestStatus_PollUpdatesRecords(t *testing.T) {
	orc, cfgPath, listPath, savedirBase, ids := testSetup(t)

	if err := runCommand(t, cfgPath, listPath, "launch"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	orc.setAll("RUNNING")

	if err := runCommand(t, cfgPath, listPath, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}

	st := openStore(t, savedirBase)
	for _, id := range ids {
		rec, err := st.Get(context.Background(), id)
		if err != nil || rec == nil {
			t.Fatalf("record %s missing: %v", id, err)
		}
		if rec.State != model.StateRunning {
			t.Errorf("record %s state = %s, want RUNNING", id, rec.State)
		}
	}
}

func TestStatus_LocalSkipsBackend(t *testing.T) {
	orc, cfgPath, listPath, savedirBase, ids := testSetup(t)

	if err := runCommand(t, cfgPath, listPath, "launch"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	orc.setAll("RUNNING")

	if err := runCommand(t, cfgPath, listPath, "status", "--local"); err != nil {
		t.Fatalf("status --local: %v", err)
	}

	st := openStore(t, savedirBase)
	rec, err := st.Get(context.Background(), ids[0])
	if err != nil || rec == nil {
		t.Fatalf("record missing: %v", err)
	}
	if rec.State != model.StateSubmitted {
		t.Errorf("state = %s after --local, want SUBMITTED (no poll)", rec.State)
	}
}

func TestKillThenReset(t *testing.T) {
	_, cfgPath, listPath, savedirBase, ids := testSetup(t)

	if err := runCommand(t, cfgPath, listPath, "launch"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if err := runCommand(t, cfgPath, listPath, "kill"); err != nil {
		t.Fatalf("kill: %v", err)
	}

	st := openStore(t, savedirBase)
	for _, id := range ids {
		rec, _ := st.Get(context.Background(), id)
		if rec == nil || rec.State != model.StateKilled {
			t.Fatalf("record %s not KILLED after kill", id)
		}
	}

	if err := runCommand(t, cfgPath, listPath, "reset"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	for _, id := range ids {
		rec, _ := st.Get(context.Background(), id)
		if rec == nil || rec.State != model.StateNew {
			t.Fatalf("record %s not NEW after reset", id)
		}
		if rec.JobHandle != "" {
			t.Errorf("record %s kept handle %q after reset", id, rec.JobHandle)
		}
	}
}

func TestLogs_FetchesText(t *testing.T) {
	_, cfgPath, listPath, _, ids := testSetup(t)

	if err := runCommand(t, cfgPath, listPath, "launch"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if err := runCommand(t, cfgPath, listPath, "logs", ids[0]); err != nil {
		t.Fatalf("logs: %v", err)
	}
}

func TestLaunch_BadConfigFails(t *testing.T) {
	_, _, listPath, _, _ := testSetup(t)

	dir := t.TempDir()
	bad := filepath.Join(dir, "haven.yaml")
	if err := os.WriteFile(bad, []byte("launch:\n  bogus_key: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := runCommand(t, bad, listPath, "launch"); err == nil {
		t.Fatal("launch with unknown config key succeeded, want error")
	}
}
