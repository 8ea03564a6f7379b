package cli

import (
	"fmt"

	"github.com/tesfaldet/haven/internal/backend"
	"github.com/tesfaldet/haven/internal/config"
	"github.com/tesfaldet/haven/internal/launcher"
	"github.com/tesfaldet/haven/internal/store"
	"github.com/tesfaldet/haven/pkg/model"
)

// workspace bundles the loaded config, the experiment set, and the wired
// components a command works against.
type workspace struct {
	cfg      config.File
	specs    []model.ExperimentSpec
	ids      []string
	store    *store.FileStore
	launcher *launcher.Launcher
}

// openWorkspace loads the config and experiment list files and wires up the
// store and launcher. Commands that never touch the orchestrator still get a
// launcher; its backend client is only exercised on submit/poll/kill.
func openWorkspace() (*workspace, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	specs, err := config.LoadExperimentList(flagExpList)
	if err != nil {
		return nil, err
	}

	st, err := store.NewFileStore(cfg.Launch.SavedirBase, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		ids = append(ids, spec.ID())
	}

	return &workspace{
		cfg:      cfg,
		specs:    specs,
		ids:      ids,
		store:    st,
		launcher: launcher.New(st, backend.NewClient(cfg.Backend, logger), cfg.Launch, logger),
	}, nil
}

// reportOutcomes prints one line per non-noop outcome plus a count summary.
func reportOutcomes(outcomes []launcher.Outcome) {
	counts := make(map[launcher.Action]int)
	for _, out := range outcomes {
		counts[out.Action]++
		switch out.Action {
		case launcher.ActionNoop:
			if out.Err != "" {
				fmt.Printf("  %s: %s (%s)\n", out.ID, out.Action, out.Err)
			}
		case launcher.ActionFailed, launcher.ActionUnknown:
			fmt.Printf("  %s: %s (%s)\n", out.ID, out.Action, out.Err)
		default:
			fmt.Printf("  %s: %s\n", out.ID, out.Action)
		}
	}
	order := []launcher.Action{
		launcher.ActionSubmitted, launcher.ActionRefreshed, launcher.ActionKilled,
		launcher.ActionReset, launcher.ActionSkipped, launcher.ActionDuplicate,
		launcher.ActionNoop, launcher.ActionUnknown, launcher.ActionFailed,
	}
	fmt.Printf("%d experiments:", len(outcomes))
	for _, action := range order {
		if n := counts[action]; n > 0 {
			fmt.Printf(" %d %s", n, action)
		}
	}
	fmt.Println()
}
